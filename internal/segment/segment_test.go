package segment

import (
	"context"
	"errors"
	"strings"
	"testing"
)

// pagesOf builds a PageTextFunc over a fixed page list (index 0 = page 1).
func pagesOf(texts ...string) PageTextFunc {
	return func(_ context.Context, page int) (string, error) {
		return texts[page-1], nil
	}
}

// detectBy matches any configured marker as a case-insensitive substring.
func detectBy(markers map[string]string) DetectFunc {
	return func(text string) string {
		lower := strings.ToLower(text)
		for provider, marker := range markers {
			if strings.Contains(lower, strings.ToLower(marker)) {
				return provider
			}
		}
		return ""
	}
}

var testMarkers = map[string]string{
	"CBM":  "CBM SIGNATURE",
	"ACME": "ACME",
}

func TestScan_SignatureThenContinuation(t *testing.T) {
	frags, err := Scan(context.Background(), 3,
		pagesOf(
			"...CBM SIGNATURE...PED-1234...",
			"continuation, no signature",
			"...ACME...ORDER AB 99.1 2...",
		),
		detectBy(testMarkers),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(frags) != 2 {
		t.Fatalf("expected 2 fragments, got %d: %+v", len(frags), frags)
	}
	if frags[0].Provider != "CBM" || frags[0].StartIndex != 0 {
		t.Errorf("fragment 0: got %+v", frags[0])
	}
	if len(frags[0].Pages) != 2 || frags[0].Pages[0] != 1 || frags[0].Pages[1] != 2 {
		t.Errorf("fragment 0 pages: got %v", frags[0].Pages)
	}
	if frags[1].Provider != "ACME" || frags[1].StartIndex != 2 {
		t.Errorf("fragment 1: got %+v", frags[1])
	}
	if len(frags[1].Pages) != 1 || frags[1].Pages[0] != 3 {
		t.Errorf("fragment 1 pages: got %v", frags[1].Pages)
	}
}

func TestScan_OrphanPagesAtStart(t *testing.T) {
	frags, err := Scan(context.Background(), 3,
		pagesOf("no known signature", "also none", "CBM SIGNATURE here"),
		detectBy(testMarkers),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(frags) != 2 {
		t.Fatalf("expected 2 fragments, got %d", len(frags))
	}
	if frags[0].Provider != Unknown {
		t.Errorf("expected orphan fragment, got %q", frags[0].Provider)
	}
	if len(frags[0].Pages) != 2 {
		t.Errorf("orphan fragment pages: got %v", frags[0].Pages)
	}
	if frags[1].Provider != "CBM" || frags[1].StartIndex != 2 {
		t.Errorf("fragment 1: got %+v", frags[1])
	}
}

func TestScan_SameProviderAlwaysCuts(t *testing.T) {
	// Re-detecting the active provider starts a new fragment: one
	// signature page = one document.
	frags, err := Scan(context.Background(), 2,
		pagesOf("CBM SIGNATURE doc one", "CBM SIGNATURE doc two"),
		detectBy(testMarkers),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(frags) != 2 {
		t.Fatalf("expected 2 fragments, got %d", len(frags))
	}
	for i, f := range frags {
		if f.Provider != "CBM" || len(f.Pages) != 1 {
			t.Errorf("fragment %d: got %+v", i, f)
		}
	}
}

func TestScan_ExtractionFailureIsContinuation(t *testing.T) {
	pageText := func(_ context.Context, page int) (string, error) {
		switch page {
		case 1:
			return "CBM SIGNATURE", nil
		case 2:
			return "", errors.New("page unreadable")
		default:
			return "ACME", nil
		}
	}
	frags, err := Scan(context.Background(), 3, pageText, detectBy(testMarkers))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(frags) != 2 {
		t.Fatalf("expected 2 fragments, got %d", len(frags))
	}
	if len(frags[0].Pages) != 2 {
		t.Errorf("failed page should join the open fragment, got %v", frags[0].Pages)
	}
}

func TestScan_EmptyBatch(t *testing.T) {
	frags, err := Scan(context.Background(), 0, pagesOf(), detectBy(testMarkers))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(frags) != 0 {
		t.Errorf("expected no fragments, got %d", len(frags))
	}
}

func TestScan_FragmentsPartitionPages(t *testing.T) {
	texts := []string{
		"noise", "CBM SIGNATURE", "cont", "cont", "ACME", "CBM SIGNATURE", "cont",
	}
	frags, err := Scan(context.Background(), len(texts), pagesOf(texts...), detectBy(testMarkers))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	seen := map[int]bool{}
	next := 1
	prevStart := -1
	for _, f := range frags {
		if f.StartIndex < prevStart {
			t.Errorf("fragments out of order: start %d after %d", f.StartIndex, prevStart)
		}
		prevStart = f.StartIndex
		if f.Pages[0] != f.StartIndex+1 {
			t.Errorf("start index %d does not match first page %d", f.StartIndex, f.Pages[0])
		}
		for _, p := range f.Pages {
			if seen[p] {
				t.Errorf("page %d appears in more than one fragment", p)
			}
			seen[p] = true
			if p != next {
				t.Errorf("pages not contiguous: expected %d, got %d", next, p)
			}
			next++
		}
	}
	if next != len(texts)+1 {
		t.Errorf("pages not exhaustive: covered %d of %d", next-1, len(texts))
	}
}

func TestScan_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Scan(ctx, 5, pagesOf("a", "b", "c", "d", "e"), detectBy(testMarkers))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestFragmentName_SafeProviderKeys(t *testing.T) {
	got := fragmentName(Fragment{Provider: "Acme Corp / ES", StartIndex: 4})
	if got != "SPLIT_p4_Acme_Corp___ES.pdf" {
		t.Errorf("got %q", got)
	}
}
