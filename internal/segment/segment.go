// Package segment implements the guillotine scan: a page-order pass
// over a batch PDF that opens a new document fragment whenever a
// provider signature is detected and appends unsigned pages to the
// fragment currently open.
package segment

import (
	"context"
)

// Unknown marks fragments whose opening page carried no recognizable
// provider signature (a batch starting with continuation pages).
const Unknown = "Unknown"

// Fragment is a contiguous run of batch pages attributed to one
// provider. Pages are 1-based PDF page numbers; StartIndex is the
// zero-based index of the first page.
type Fragment struct {
	Provider   string `json:"provider"`
	StartIndex int    `json:"start_index"`
	Pages      []int  `json:"pages"`
}

// PageTextFunc supplies the text of one page (1-based). An error is
// treated as "no text": the page becomes a continuation page and the
// scan goes on.
type PageTextFunc func(ctx context.Context, page int) (string, error)

// DetectFunc returns the provider key detected in page text, or ""
// when no known signature is present.
type DetectFunc func(text string) string

// Scan walks pages 1..pageCount in order and emits fragments. A
// detected provider always opens a new fragment, even when it matches
// the provider of the fragment already open: one signature page means
// one document. The emitted fragments partition the batch exactly, in
// source order.
//
// The only error Scan returns is context cancellation, checked once
// per page.
func Scan(ctx context.Context, pageCount int, pageText PageTextFunc, detect DetectFunc) ([]Fragment, error) {
	fragments := []Fragment{}
	var current *Fragment

	for page := 1; page <= pageCount; page++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		text, err := pageText(ctx, page)
		if err != nil {
			text = ""
		}
		provider := detect(text)

		switch {
		case provider != "":
			// Signature page: close whatever is open, start fresh.
			if current != nil {
				fragments = append(fragments, *current)
			}
			current = &Fragment{Provider: provider, StartIndex: page - 1, Pages: []int{page}}
		case current != nil:
			// Continuation page.
			current.Pages = append(current.Pages, page)
		default:
			// Batch opens with unsigned pages: orphan fragment.
			current = &Fragment{Provider: Unknown, StartIndex: page - 1, Pages: []int{page}}
		}
	}

	if current != nil {
		fragments = append(fragments, *current)
	}
	return fragments, nil
}

// PageRange returns the first and last page of the fragment.
func (f Fragment) PageRange() (first, last int) {
	if len(f.Pages) == 0 {
		return 0, 0
	}
	return f.Pages[0], f.Pages[len(f.Pages)-1]
}
