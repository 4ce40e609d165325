package extract

import (
	"context"
	"strings"

	pdflib "github.com/ledongthuc/pdf"
)

// nativePDF reads the text layer of every page, form-feed separated,
// the same shape pdftotext produces.
func (e *Extractor) nativePDF(path string) (string, error) {
	f, reader, err := pdflib.Open(path)
	if err != nil {
		return "", &Error{Kind: pdfOpenKind(err), Path: path, Err: err}
	}
	defer f.Close()

	var buf strings.Builder
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		if i > 1 {
			buf.WriteString("\f")
		}
		buf.WriteString(text)
	}
	return buf.String(), nil
}

func pdfOpenKind(err error) ErrorKind {
	if err == nil {
		return KindUnreadable
	}
	if strings.Contains(strings.ToLower(err.Error()), "encrypt") {
		return KindEncrypted
	}
	return KindUnreadable
}

// pdftotext is the exec fallback for PDFs the Go library chokes on.
func (e *Extractor) pdftotext(ctx context.Context, path string) (string, error) {
	out, errb, err := e.runner.Run(ctx, e.cfg.Pdftotext, "-layout", "-enc", "UTF-8", "-eol", "unix", path, "-")
	if err != nil {
		return "", execError(e.cfg.Pdftotext, path, err, errb)
	}
	return string(out), nil
}

// Batch holds a batch PDF open for the page-by-page scan, so the file
// is parsed once rather than per page.
type Batch struct {
	path   string
	closer interface{ Close() error }
	reader *pdflib.Reader
	e      *Extractor
}

// OpenBatch opens a multi-page batch PDF for sequential scanning.
func (e *Extractor) OpenBatch(path string) (*Batch, error) {
	f, reader, err := pdflib.Open(path)
	if err != nil {
		return nil, &Error{Kind: pdfOpenKind(err), Path: path, Err: err}
	}
	return &Batch{path: path, closer: f, reader: reader, e: e}, nil
}

// PageCount returns the number of pages in the batch.
func (b *Batch) PageCount() int {
	return b.reader.NumPage()
}

// PageText extracts the text of one page (1-based). Native text first;
// if the page yields nothing and the optical engine is enabled, only
// that page is rasterized and recognized.
func (b *Batch) PageText(ctx context.Context, page int) (string, error) {
	text, err := b.NativePageText(page)
	if err == nil {
		return text, nil
	}
	if !b.e.cfg.OCREnabled {
		return "", err
	}
	return b.e.ocrPDF(ctx, b.path, page)
}

// NativePageText reads only the embedded text layer of one page,
// never falling back to the optical engine.
func (b *Batch) NativePageText(page int) (string, error) {
	var text string
	p := b.reader.Page(page)
	if !p.V.IsNull() {
		if t, err := p.GetPlainText(nil); err == nil {
			text = t
		}
	}
	if strings.TrimSpace(text) == "" {
		return "", &Error{Kind: KindEmptyText, Path: b.path}
	}
	return text, nil
}

func (b *Batch) Close() error {
	return b.closer.Close()
}
