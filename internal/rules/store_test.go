package rules

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleRules = `{
  "CBM": {
    "signatures": ["CBM SIGNATURE", "C.B.M. Logistics"],
    "extraction_pattern": "PED-(\\d+)"
  },
  "ACME": {
    "signatures": ["ACME"],
    "extraction_pattern": "ORDER\\s+([A-Z0-9 .]+)",
    "destination_folder": "Acme Corp"
  },
  "ZETA": {
    "signatures": [],
    "extraction_pattern": "Z-(\\d+)"
  }
}`

func writeRules(t *testing.T, content string) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "providers.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write rules: %v", err)
	}
	return NewStore(path, nil)
}

func TestLoad_PreservesDeclarationOrder(t *testing.T) {
	s := writeRules(t, sampleRules)
	snap := s.Load()
	if len(snap) != 3 {
		t.Fatalf("expected 3 providers, got %d", len(snap))
	}
	want := []string{"CBM", "ACME", "ZETA"}
	for i, w := range want {
		if snap[i].Key != w {
			t.Errorf("provider[%d]: expected %q, got %q", i, w, snap[i].Key)
		}
	}
	if snap[1].DestinationFolder != "Acme Corp" {
		t.Errorf("expected ACME folder %q, got %q", "Acme Corp", snap[1].DestinationFolder)
	}
}

func TestLoad_MissingFileYieldsEmptySnapshot(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "nope.json"), nil)
	if snap := s.Load(); !snap.Empty() {
		t.Errorf("expected empty snapshot, got %d providers", len(snap))
	}
}

func TestLoad_CorruptFileYieldsEmptySnapshot(t *testing.T) {
	s := writeRules(t, `{"CBM": {"signatures": [`)
	if snap := s.Load(); !snap.Empty() {
		t.Errorf("expected empty snapshot, got %d providers", len(snap))
	}
}

func TestLoad_NonObjectTopLevelYieldsEmptySnapshot(t *testing.T) {
	s := writeRules(t, `[1, 2, 3]`)
	if snap := s.Load(); !snap.Empty() {
		t.Errorf("expected empty snapshot, got %d providers", len(snap))
	}
}

func TestSaveLoad_RoundTripKeepsOrder(t *testing.T) {
	s := writeRules(t, sampleRules)
	snap := s.Load()
	if err := s.Save(snap); err != nil {
		t.Fatalf("save: %v", err)
	}
	again := s.Load()
	if len(again) != len(snap) {
		t.Fatalf("expected %d providers after round trip, got %d", len(snap), len(again))
	}
	for i := range snap {
		if again[i].Key != snap[i].Key {
			t.Errorf("provider[%d]: expected %q, got %q", i, snap[i].Key, again[i].Key)
		}
		if again[i].ExtractionPattern != snap[i].ExtractionPattern {
			t.Errorf("provider[%d]: pattern changed to %q", i, again[i].ExtractionPattern)
		}
	}
}

func TestUpsert_AppendsNewAndUpdatesInPlace(t *testing.T) {
	s := writeRules(t, sampleRules)

	if err := s.Upsert("NOVA", Rule{Signatures: []string{"Nova S.L."}, ExtractionPattern: `N-(\d+)`}); err != nil {
		t.Fatalf("upsert new: %v", err)
	}
	snap := s.Load()
	if len(snap) != 4 || snap[3].Key != "NOVA" {
		t.Fatalf("expected NOVA appended last, got %+v", snap)
	}

	if err := s.Upsert("ACME", Rule{Signatures: []string{"ACME Inc"}, ExtractionPattern: `A-(\d+)`}); err != nil {
		t.Fatalf("upsert existing: %v", err)
	}
	snap = s.Load()
	if snap[1].Key != "ACME" {
		t.Fatalf("expected ACME to keep position 1, got %q", snap[1].Key)
	}
	if snap[1].Signatures[0] != "ACME Inc" {
		t.Errorf("expected updated signature, got %q", snap[1].Signatures[0])
	}
}

func TestDelete_RemovesProvider(t *testing.T) {
	s := writeRules(t, sampleRules)
	if err := s.Delete("ACME"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	snap := s.Load()
	if len(snap) != 2 {
		t.Fatalf("expected 2 providers, got %d", len(snap))
	}
	if _, ok := snap.Lookup("ACME"); ok {
		t.Error("ACME still present after delete")
	}
	// Unknown key is a no-op.
	if err := s.Delete("GHOST"); err != nil {
		t.Errorf("delete unknown: %v", err)
	}
}

func TestSnapshot_FolderDefaultsToKey(t *testing.T) {
	s := writeRules(t, sampleRules)
	snap := s.Load()
	if got := snap.Folder("CBM"); got != "CBM" {
		t.Errorf("expected default folder CBM, got %q", got)
	}
	if got := snap.Folder("ACME"); got != "Acme Corp" {
		t.Errorf("expected Acme Corp, got %q", got)
	}
	if got := snap.Folder("GHOST"); got != "GHOST" {
		t.Errorf("expected unknown key itself, got %q", got)
	}
}
