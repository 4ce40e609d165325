package place

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jvidalg/albasort/internal/classify"
)

func TestSanitizeIdentifier(t *testing.T) {
	cases := []struct{ in, want string }{
		{"02AL 1.090 9", "02AL10909"},
		{"AB 99.1 2", "AB9912"},
		{"PED-1234", "PED-1234"},
		{"a_b-c", "a_b-c"},
		{"  spaced  ", "spaced"},
		{"ñü€", ""},
		{"", ""},
	}
	for _, c := range cases {
		if got := SanitizeIdentifier(c.in); got != c.want {
			t.Errorf("SanitizeIdentifier(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestSanitizeIdentifier_Idempotent(t *testing.T) {
	for _, s := range []string{"02AL 1.090 9", "PED-1234", "x.y.z", ""} {
		once := SanitizeIdentifier(s)
		twice := SanitizeIdentifier(once)
		if once != twice {
			t.Errorf("not idempotent for %q: %q vs %q", s, once, twice)
		}
	}
}

func TestResolve_ClassifiedDocument(t *testing.T) {
	res := classify.Result{Provider: "ACME", Identifier: "AB 99.1 2", Confidence: classify.High}
	d := Resolve(res, "Acme Corp", "SPLIT_p2_ACME.pdf", "/out")
	if d.Dir != filepath.Join("/out", "Acme Corp") {
		t.Errorf("dir: got %q", d.Dir)
	}
	if d.Filename != "AB9912.pdf" {
		t.Errorf("filename: got %q", d.Filename)
	}
}

func TestResolve_FolderDefaultsToProvider(t *testing.T) {
	res := classify.Result{Provider: "CBM", Identifier: "1234"}
	d := Resolve(res, "", "frag.pdf", "/out")
	if d.Dir != filepath.Join("/out", "CBM") {
		t.Errorf("dir: got %q", d.Dir)
	}
}

func TestResolve_UnclassifiedGoesToManualReview(t *testing.T) {
	cases := []classify.Result{
		{},                    // nothing detected
		{Provider: "CBM"},     // provider but no identifier
		{Identifier: "PED-1"}, // identifier but no provider (defensive)
	}
	for _, res := range cases {
		d := Resolve(res, "", "scan_0042.pdf", "/out")
		if d.Dir != filepath.Join("/out", ManualReviewDir) {
			t.Errorf("%+v: dir got %q", res, d.Dir)
		}
		if d.Filename != "scan_0042.pdf" {
			t.Errorf("%+v: original filename must be kept, got %q", res, d.Filename)
		}
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestMove_CreatesDirectoryAndMoves(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "frag.pdf")
	writeFile(t, src, "pdf bytes")

	d := Decision{Dir: filepath.Join(root, "out", "ACME"), Filename: "AB9912.pdf"}
	got, err := Move(src, d)
	if err != nil {
		t.Fatalf("move: %v", err)
	}
	if got.CollisionResolved {
		t.Error("no collision expected")
	}
	if _, err := os.Stat(got.FinalPath()); err != nil {
		t.Errorf("target missing: %v", err)
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Error("source still present after move")
	}
}

func TestMove_CollisionGetsRandomSuffix(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "ACME")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	existing := filepath.Join(dir, "AB9912.pdf")
	writeFile(t, existing, "the original")

	src := filepath.Join(root, "frag.pdf")
	writeFile(t, src, "the newcomer")

	got, err := Move(src, Decision{Dir: dir, Filename: "AB9912.pdf"})
	if err != nil {
		t.Fatalf("move: %v", err)
	}
	if !got.CollisionResolved {
		t.Error("expected collision_resolved")
	}
	if got.Filename == "AB9912.pdf" {
		t.Error("filename unchanged despite collision")
	}
	if !strings.HasPrefix(got.Filename, "AB9912_") || !strings.HasSuffix(got.Filename, ".pdf") {
		t.Errorf("suffix should sit between stem and extension, got %q", got.Filename)
	}

	// The pre-existing file is untouched.
	data, err := os.ReadFile(existing)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "the original" {
		t.Errorf("existing file was overwritten: %q", data)
	}
	moved, err := os.ReadFile(got.FinalPath())
	if err != nil {
		t.Fatal(err)
	}
	if string(moved) != "the newcomer" {
		t.Errorf("moved content wrong: %q", moved)
	}
}

func TestMove_FailureLeavesSourceInPlace(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "missing-parent", "frag.pdf") // src itself absent
	d := Decision{Dir: filepath.Join(root, "out"), Filename: "x.pdf"}
	if _, err := Move(src, d); err == nil {
		t.Fatal("expected error for missing source")
	}
	if _, err := os.Stat(filepath.Join(root, "out", "x.pdf")); !os.IsNotExist(err) {
		t.Error("target must not exist after failed move")
	}
}
