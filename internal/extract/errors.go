package extract

import (
	"errors"
	"fmt"
)

// ErrorKind distinguishes extraction failures so the caller can decide
// whether an optical retry is worth attempting.
type ErrorKind string

const (
	// KindUnreadable covers corrupt or unparseable input.
	KindUnreadable ErrorKind = "unreadable"
	// KindEncrypted means the PDF is password protected.
	KindEncrypted ErrorKind = "encrypted"
	// KindEmptyText means extraction ran but produced no or too little
	// text. Usually a scanned page; optical fallback may help.
	KindEmptyText ErrorKind = "empty_text"
	// KindEngineUnavailable means the optical engine is disabled or not
	// configured.
	KindEngineUnavailable ErrorKind = "engine_unavailable"
	// KindBinaryMissing means an external binary (tesseract, pdftoppm,
	// pdftotext) is not installed.
	KindBinaryMissing ErrorKind = "binary_missing"
)

// Error is a typed extraction failure.
type Error struct {
	Kind ErrorKind
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("extract %s: %s: %v", e.Path, e.Kind, e.Err)
	}
	return fmt.Sprintf("extract %s: %s", e.Path, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Kind returns the ErrorKind of err, or KindUnreadable for errors that
// did not originate here.
func Kind(err error) ErrorKind {
	var ee *Error
	if errors.As(err, &ee) {
		return ee.Kind
	}
	return KindUnreadable
}
