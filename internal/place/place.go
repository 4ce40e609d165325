// Package place computes the final destination of a classified
// document and performs the collision-safe move.
package place

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/google/uuid"

	"github.com/jvidalg/albasort/internal/classify"
)

// ManualReviewDir receives every document whose provider or identifier
// could not be determined. Nothing is ever dropped.
const ManualReviewDir = "Manual Review"

// Decision is the resolved target of one document.
type Decision struct {
	Dir               string `json:"target_directory"`
	Filename          string `json:"target_filename"`
	CollisionResolved bool   `json:"collision_resolved"`
}

// FinalPath returns the full destination path.
func (d Decision) FinalPath() string {
	return filepath.Join(d.Dir, d.Filename)
}

// Resolve computes where a document belongs. Fully classified documents
// are renamed to their sanitized identifier under the provider folder;
// anything else keeps its original name under the manual-review folder.
func Resolve(res classify.Result, folder, originalName, outputRoot string) Decision {
	if res.Provider != "" && res.Identifier != "" {
		if folder == "" {
			folder = res.Provider
		}
		return Decision{
			Dir:      filepath.Join(outputRoot, folder),
			Filename: SanitizeIdentifier(res.Identifier) + filepath.Ext(originalName),
		}
	}
	return Decision{
		Dir:      filepath.Join(outputRoot, ManualReviewDir),
		Filename: filepath.Base(originalName),
	}
}

// SanitizeIdentifier keeps alphanumerics, '-' and '_' and drops every
// other character. Spaces and dots inside human-typed order numbers
// collapse away: "02AL 1.090 9" becomes "02AL10909". Idempotent.
func SanitizeIdentifier(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Move materializes the decision: creates the target directory, picks a
// collision-free name, and moves src there. The move is a rename where
// the platform allows it, with a copy-and-delete fallback across
// filesystems. On failure src is left in place. The returned decision
// reflects the name actually used.
func Move(src string, d Decision) (Decision, error) {
	if err := os.MkdirAll(d.Dir, 0o755); err != nil {
		return d, fmt.Errorf("create target directory: %w", err)
	}

	target := d.FinalPath()
	if _, err := os.Stat(target); err == nil {
		// Random token, not a counter: two workers racing on a counter
		// would pick the same next name.
		ext := filepath.Ext(d.Filename)
		stem := strings.TrimSuffix(d.Filename, ext)
		d.Filename = fmt.Sprintf("%s_%s%s", stem, uuid.NewString()[:8], ext)
		d.CollisionResolved = true
		target = d.FinalPath()
	}

	if err := rename(src, target); err != nil {
		return d, fmt.Errorf("move to %s: %w", target, err)
	}
	return d, nil
}

func rename(src, dst string) error {
	err := os.Rename(src, dst)
	if err == nil {
		return nil
	}
	var linkErr *os.LinkError
	if errors.As(err, &linkErr) && errors.Is(linkErr.Err, syscall.EXDEV) {
		return copyAndRemove(src, dst)
	}
	return err
}

// copyAndRemove handles moves across devices, where rename fails with
// EXDEV. The copy goes to a temp name first so a crash never leaves a
// half-written file at the final path.
func copyAndRemove(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp := dst + ".part"
	out, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(tmp)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, dst); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Remove(src)
}

// IsTransient reports whether a move failure is worth retrying, such as
// a file still locked by the process that produced it.
func IsTransient(err error) bool {
	return errors.Is(err, syscall.EBUSY) ||
		errors.Is(err, syscall.EAGAIN) ||
		errors.Is(err, syscall.ETXTBSY)
}
