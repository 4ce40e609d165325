package segment

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// File is one fragment materialized as a standalone PDF in the temp
// directory. A failed cut carries its error here instead of aborting
// the remaining fragments.
type File struct {
	Fragment
	Path string
	Err  error
}

// Cut writes each fragment of batchPath into tmpDir as its own PDF.
// Fragment filenames are deterministic (provider + start page) for
// traceability within a run; they are not a durable contract.
func Cut(batchPath, tmpDir string, fragments []Fragment) []File {
	files := make([]File, 0, len(fragments))
	for _, frag := range fragments {
		out := filepath.Join(tmpDir, fragmentName(frag))
		first, last := frag.PageRange()
		err := api.TrimFile(batchPath, out, []string{fmt.Sprintf("%d-%d", first, last)}, nil)
		if err != nil {
			err = fmt.Errorf("cut pages %d-%d: %w", first, last, err)
		}
		files = append(files, File{Fragment: frag, Path: out, Err: err})
	}
	return files
}

func fragmentName(f Fragment) string {
	return fmt.Sprintf("SPLIT_p%d_%s.pdf", f.StartIndex, safeName(f.Provider))
}

// safeName keeps fragment filenames filesystem-clean; provider keys may
// contain spaces or slashes.
func safeName(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return Unknown
	}
	return b.String()
}
