// Package extract turns delivery-note files into plain text. The native
// path reads the PDF text layer; the optical path shells out to
// pdftoppm + tesseract for scanned pages. Plain text, Markdown, HTML
// and DOCX files are flattened directly.
package extract

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
)

type Config struct {
	Tesseract string // binary name or absolute path; empty -> "tesseract"
	Pdftoppm  string // empty -> "pdftoppm"
	Pdftotext string // empty -> "pdftotext"

	Lang string // tesseract language, default "spa"
	DPI  int    // rasterization DPI, default 300

	OCREnabled        bool
	PdftotextFallback bool

	// MinTextLen is the threshold below which native extraction counts
	// as empty (scanned page with a stray character or two).
	MinTextLen int
}

// Extractor is the text-extraction collaborator. It is safe for use
// from a single worker; the stats tracker is internally locked.
type Extractor struct {
	cfg    Config
	runner Runner
	log    *slog.Logger
	stats  *Stats
}

func NewExtractor(cfg Config, log *slog.Logger) *Extractor {
	if log == nil {
		log = slog.Default()
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.Pdftotext == "" {
		cfg.Pdftotext = "pdftotext"
	}
	if cfg.Lang == "" {
		cfg.Lang = "spa"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	if cfg.MinTextLen <= 0 {
		cfg.MinTextLen = 10
	}
	return &Extractor{
		cfg:    cfg,
		runner: execRunner{log: log},
		log:    log,
		stats:  NewStats(0),
	}
}

// Stats returns the optical-extraction latency tracker.
func (e *Extractor) Stats() *Stats { return e.stats }

// SupportedExtensions lists file extensions the file-level path handles.
var SupportedExtensions = map[string]bool{
	".pdf":      true,
	".txt":      true,
	".md":       true,
	".markdown": true,
	".html":     true,
	".htm":      true,
	".docx":     true,
}

// IsSupported checks whether a filename can be extracted.
func IsSupported(filename string) bool {
	return SupportedExtensions[strings.ToLower(filepath.Ext(filename))]
}

// File extracts the full text of one file. For PDFs the native text
// layer is tried first; forceOCR (or a too-short native result with OCR
// enabled) switches to the optical path. Failures carry an ErrorKind.
func (e *Extractor) File(ctx context.Context, path string, forceOCR bool) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".pdf":
		return e.pdfFile(ctx, path, forceOCR)
	case ".txt":
		return e.textFile(path)
	case ".md", ".markdown":
		return e.markdownFile(path)
	case ".html", ".htm":
		return e.htmlFile(path)
	case ".docx":
		return e.docxFile(path)
	default:
		return "", &Error{Kind: KindUnreadable, Path: path, Err: errUnsupported(ext)}
	}
}

func (e *Extractor) pdfFile(ctx context.Context, path string, forceOCR bool) (string, error) {
	if forceOCR {
		return e.ocrPDF(ctx, path, 0)
	}

	text, err := e.nativePDF(path)
	if err != nil && e.cfg.PdftotextFallback {
		if t, ferr := e.pdftotext(ctx, path); ferr == nil {
			text, err = t, nil
		}
	}
	if err != nil {
		return "", err
	}
	if len(strings.TrimSpace(text)) < e.cfg.MinTextLen {
		if e.cfg.OCREnabled {
			return e.ocrPDF(ctx, path, 0)
		}
		return "", &Error{Kind: KindEmptyText, Path: path}
	}
	return text, nil
}

type errUnsupported string

func (e errUnsupported) Error() string { return "unsupported file extension: " + string(e) }
