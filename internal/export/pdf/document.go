// Package pdf writes annual reports as minimal PDF documents: one catalog, one
// page tree, a shared Courier font and one content stream per page, followed
// by a cross-reference table whose offsets match the emitted bytes.
package pdf

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

const (
	ContentType     = "application/pdf"
	MaxLinesPerPage = 45
	UnavailableText = "report unavailable"

	pageWidth  = 595
	pageHeight = 842
	marginLeft = 50
	firstLineY = 792
	fontSize   = 10
	leading    = 12

	catalogObject = 1
	pagesObject   = 2
	fontObject    = 3
	firstPageObj  = 4
)

var ErrRender = errors.New("render document")

// Document collects pages of left-aligned monospaced text lines.
type Document struct {
	pages   [][]string
	encoder *encoding.Encoder
}

func NewDocument() *Document {
	return &Document{encoder: encoding.ReplaceUnsupported(charmap.Windows1252.NewEncoder())}
}

// AddPage appends a page. Lines past MaxLinesPerPage are dropped.
func (d *Document) AddPage(lines ...string) {
	if len(lines) > MaxLinesPerPage {
		lines = lines[:MaxLinesPerPage]
	}
	page := make([]string, len(lines))
	copy(page, lines)
	d.pages = append(d.pages, page)
}

// PageCount is the number of pages Bytes will emit.
func (d *Document) PageCount() int {
	return len(d.renderablePages())
}

func (d *Document) renderablePages() [][]string {
	pages := make([][]string, 0, len(d.pages))
	for _, page := range d.pages {
		if len(page) > 0 {
			pages = append(pages, page)
		}
	}
	if len(pages) == 0 {
		pages = append(pages, []string{UnavailableText})
	}
	return pages
}

// Bytes serializes the document. Empty pages are skipped and a document with
// nothing to show gets a single notice page instead.
func (d *Document) Bytes() ([]byte, error) {
	pages := d.renderablePages()
	objectCount := fontObject + 2*len(pages)
	w := &objectWriter{offsets: make([]int, objectCount+1)}

	w.buf.WriteString("%PDF-1.4\n%\xe2\xe3\xcf\xd3\n")

	kids := make([]string, len(pages))
	for i := range pages {
		kids[i] = fmt.Sprintf("%d 0 R", pageObject(i))
	}
	w.object(catalogObject, fmt.Sprintf("<< /Type /Catalog /Pages %d 0 R >>", pagesObject))
	w.object(pagesObject, fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(pages)))
	w.object(fontObject, "<< /Type /Font /Subtype /Type1 /BaseFont /Courier /Encoding /WinAnsiEncoding >>")

	for i, lines := range pages {
		content, err := d.contentStream(lines)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i+1, err)
		}
		w.object(pageObject(i), fmt.Sprintf(
			"<< /Type /Page /Parent %d 0 R /MediaBox [0 0 %d %d] /Resources << /Font << /F1 %d 0 R >> >> /Contents %d 0 R >>",
			pagesObject, pageWidth, pageHeight, fontObject, contentObject(i),
		))
		w.stream(contentObject(i), content)
	}

	w.trailer(objectCount)
	return w.buf.Bytes(), nil
}

func (d *Document) contentStream(lines []string) ([]byte, error) {
	var b bytes.Buffer
	fmt.Fprintf(&b, "BT\n/F1 %d Tf\n%d TL\n%d %d Td\n", fontSize, leading, marginLeft, firstLineY)
	for _, line := range lines {
		encoded, err := d.encoder.String(flatten(line))
		if err != nil {
			return nil, err
		}
		b.WriteString("(")
		b.WriteString(EscapeText(strings.ReplaceAll(encoded, "\x1a", "?")))
		b.WriteString(") Tj\nT*\n")
	}
	b.WriteString("ET")
	return b.Bytes(), nil
}

func pageObject(i int) int {
	return firstPageObj + 2*i
}

func contentObject(i int) int {
	return firstPageObj + 2*i + 1
}

// EscapeText escapes the characters that delimit PDF literal strings.
func EscapeText(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '\\', '(', ')':
			b.WriteByte('\\')
			b.WriteByte(c)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

func flatten(s string) string {
	return strings.Map(func(r rune) rune {
		if r < ' ' || r == 0x7f {
			return ' '
		}
		return r
	}, s)
}

// objectWriter emits indirect objects and remembers where each one starts.
type objectWriter struct {
	buf     bytes.Buffer
	offsets []int
}

func (w *objectWriter) object(num int, body string) {
	w.offsets[num] = w.buf.Len()
	fmt.Fprintf(&w.buf, "%d 0 obj\n%s\nendobj\n", num, body)
}

func (w *objectWriter) stream(num int, content []byte) {
	w.offsets[num] = w.buf.Len()
	fmt.Fprintf(&w.buf, "%d 0 obj\n<< /Length %d >>\nstream\n", num, len(content))
	w.buf.Write(content)
	w.buf.WriteString("\nendstream\nendobj\n")
}

func (w *objectWriter) trailer(objectCount int) {
	xrefOffset := w.buf.Len()
	fmt.Fprintf(&w.buf, "xref\n0 %d\n", objectCount+1)
	w.buf.WriteString("0000000000 65535 f \n")
	for num := 1; num <= objectCount; num++ {
		fmt.Fprintf(&w.buf, "%010d 00000 n \n", w.offsets[num])
	}
	fmt.Fprintf(&w.buf, "trailer\n<< /Size %d /Root %d 0 R >>\nstartxref\n%d\n%%%%EOF\n", objectCount+1, catalogObject, xrefOffset)
}
