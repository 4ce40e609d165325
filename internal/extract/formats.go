package extract

import (
	"os"
	"strings"

	"github.com/fumiama/go-docx"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	gmtext "github.com/yuin/goldmark/text"
	"golang.org/x/net/html"
)

// Delivery notes occasionally arrive as exported text, Markdown, HTML
// or DOCX instead of scans. Classification only needs flat text, so
// these extractors drop all structure.

func (e *Extractor) textFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", &Error{Kind: KindUnreadable, Path: path, Err: err}
	}
	return string(data), nil
}

func (e *Extractor) markdownFile(path string) (string, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return "", &Error{Kind: KindUnreadable, Path: path, Err: err}
	}

	md := goldmark.New()
	doc := md.Parser().Parse(gmtext.NewReader(src))

	var buf strings.Builder
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		t := markdownText(n, src)
		if t == "" {
			continue
		}
		if buf.Len() > 0 {
			buf.WriteString("\n")
		}
		buf.WriteString(t)
	}
	return buf.String(), nil
}

// markdownText gets the text content of a goldmark AST node.
func markdownText(n ast.Node, src []byte) string {
	var buf strings.Builder
	if n.Type() == ast.TypeBlock {
		lines := n.Lines()
		for i := 0; i < lines.Len(); i++ {
			line := lines.At(i)
			buf.Write(line.Value(src))
		}
	}
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if t, ok := c.(*ast.Text); ok {
			buf.Write(t.Value(src))
			if t.HardLineBreak() || t.SoftLineBreak() {
				buf.WriteByte('\n')
			}
		} else {
			buf.WriteString(markdownText(c, src))
		}
	}
	return strings.TrimSpace(buf.String())
}

func (e *Extractor) htmlFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", &Error{Kind: KindUnreadable, Path: path, Err: err}
	}
	defer f.Close()

	doc, err := html.Parse(f)
	if err != nil {
		return "", &Error{Kind: KindUnreadable, Path: path, Err: err}
	}

	var buf strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style":
				return
			}
		}
		if n.Type == html.TextNode {
			t := strings.TrimSpace(n.Data)
			if t != "" {
				if buf.Len() > 0 {
					buf.WriteString("\n")
				}
				buf.WriteString(t)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return buf.String(), nil
}

func (e *Extractor) docxFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", &Error{Kind: KindUnreadable, Path: path, Err: err}
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", &Error{Kind: KindUnreadable, Path: path, Err: err}
	}
	doc, err := docx.Parse(f, info.Size())
	if err != nil {
		return "", &Error{Kind: KindUnreadable, Path: path, Err: err}
	}

	var buf strings.Builder
	for _, item := range doc.Document.Body.Items {
		para, ok := item.(*docx.Paragraph)
		if !ok {
			continue
		}
		t := paragraphText(para)
		if t == "" {
			continue
		}
		if buf.Len() > 0 {
			buf.WriteString("\n")
		}
		buf.WriteString(t)
	}
	return buf.String(), nil
}

func paragraphText(para *docx.Paragraph) string {
	var buf strings.Builder
	for _, child := range para.Children {
		run, ok := child.(*docx.Run)
		if !ok {
			continue
		}
		for _, rc := range run.Children {
			if t, ok := rc.(*docx.Text); ok {
				buf.WriteString(t.Text)
			}
		}
	}
	return strings.TrimSpace(buf.String())
}
