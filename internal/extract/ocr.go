package extract

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// ocrPDF rasterizes and recognizes a PDF. page > 0 restricts the run to
// that single page, which is how the scanner avoids re-rendering the
// whole batch for every scanned page.
func (e *Extractor) ocrPDF(ctx context.Context, path string, page int) (string, error) {
	if !e.cfg.OCREnabled {
		return "", &Error{Kind: KindEngineUnavailable, Path: path}
	}

	start := time.Now()
	text, err := e.rasterizeAndRecognize(ctx, path, page)
	e.stats.Record(time.Since(start).Milliseconds(), page == 0)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", &Error{Kind: KindEmptyText, Path: path}
	}
	return text, nil
}

func (e *Extractor) rasterizeAndRecognize(ctx context.Context, path string, page int) (string, error) {
	tmpDir, err := os.MkdirTemp("", "albasort-ocr-*")
	if err != nil {
		return "", &Error{Kind: KindUnreadable, Path: path, Err: err}
	}
	defer os.RemoveAll(tmpDir)

	prefix := filepath.Join(tmpDir, "page")
	args := []string{"-r", fmt.Sprintf("%d", e.cfg.DPI), "-png"}
	if page > 0 {
		args = append(args, "-f", fmt.Sprintf("%d", page), "-l", fmt.Sprintf("%d", page))
	}
	args = append(args, path, prefix)

	_, errb, err := e.runner.Run(ctx, e.cfg.Pdftoppm, args...)
	if err != nil {
		return "", execError(e.cfg.Pdftoppm, path, err, errb)
	}

	matches, _ := filepath.Glob(prefix + "-*.png")
	sort.Strings(matches)
	if len(matches) == 0 {
		return "", &Error{Kind: KindEmptyText, Path: path, Err: fmt.Errorf("pdftoppm produced no images")}
	}

	var b strings.Builder
	for _, img := range matches {
		txt, err := e.tesseract(ctx, img)
		if err != nil {
			var ee *Error
			if errors.As(err, &ee) && ee.Kind == KindBinaryMissing {
				return "", err
			}
			e.log.Warn("optical recognition failed for page image", "image", img, "error", err)
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\f")
		}
		b.WriteString(txt)
	}
	return b.String(), nil
}

func (e *Extractor) tesseract(ctx context.Context, imgPath string) (string, error) {
	out, errb, err := e.runner.Run(ctx, e.cfg.Tesseract, imgPath, "stdout", "-l", e.cfg.Lang)
	if err != nil {
		return "", execError(e.cfg.Tesseract, imgPath, err, errb)
	}
	return string(out), nil
}

func execError(binary, path string, err error, stderr []byte) error {
	if errors.Is(err, exec.ErrNotFound) {
		return &Error{Kind: KindBinaryMissing, Path: path, Err: fmt.Errorf("%s: %w", binary, err)}
	}
	if len(stderr) > 0 {
		err = fmt.Errorf("%s: %w: %s", binary, err, truncate(string(stderr), 512))
	} else {
		err = fmt.Errorf("%s: %w", binary, err)
	}
	return &Error{Kind: KindUnreadable, Path: path, Err: err}
}
