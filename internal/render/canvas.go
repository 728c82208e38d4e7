// =============================================================================
// JPK to PDF - Canvas Abstraction
// =============================================================================
//
// The layout code never talks to a PDF library directly. It draws on a Canvas:
// an append-only, page-at-a-time surface with two font faces and baseline
// text placement. Coordinates are in points, x from the left edge and y from
// the bottom edge of the page, so the layout cursor moves down by
// decreasing y.
//
// BACKENDS:
//   - PDFBackend       : real documents (go-pdf/fpdf)
//   - RecordingBackend : records drawing operations (dry runs, tests)
//
// =============================================================================

package render

import (
	"fmt"
	"strings"
)

// FontStyle selects one of the two faces of the template.
type FontStyle int

const (
	Regular FontStyle = iota
	Bold
)

func (s FontStyle) String() string {
	if s == Bold {
		return "bold"
	}
	return "regular"
}

// Canvas is the drawing surface used by the layout algorithm.
type Canvas interface {
	// AddPage starts a new page. Subsequent drawing goes to that page.
	AddPage()

	// SetFont selects the face and size for subsequent text.
	SetFont(style FontStyle, size float64)

	// Text draws s with its baseline starting at (x, y).
	Text(x, y float64, s string)

	// TextRight draws s with its baseline ending at (x, y), so the right edge
	// of the text is anchored regardless of its length.
	TextRight(x, y float64, s string)
}

// Document is a Canvas that can be finalized into bytes.
type Document interface {
	Canvas

	// PageCount returns the number of pages added so far.
	PageCount() int

	// Bytes finalizes the document. It must be called at most once.
	Bytes() ([]byte, error)
}

// Backend creates fresh documents.
type Backend interface {
	NewDocument() (Document, error)

	// Extension is the file extension of the produced documents, with dot.
	Extension() string
}

// =============================================================================
// RECORDING BACKEND
// =============================================================================

// OpKind identifies a recorded drawing operation.
type OpKind string

const (
	OpFont      OpKind = "font"
	OpText      OpKind = "text"
	OpTextRight OpKind = "text-right"
)

// Op is one recorded drawing operation.
type Op struct {
	Kind  OpKind
	Style FontStyle
	Size  float64
	X, Y  float64
	Text  string
}

// Recording is a Document that keeps every operation, grouped per page.
type Recording struct {
	pages [][]Op
}

// RecordingBackend produces Recording documents.
type RecordingBackend struct{}

func (RecordingBackend) NewDocument() (Document, error) { return &Recording{}, nil }

func (RecordingBackend) Extension() string { return ".txt" }

func (r *Recording) AddPage() {
	r.pages = append(r.pages, nil)
}

func (r *Recording) add(op Op) {
	if len(r.pages) == 0 {
		r.AddPage()
	}
	last := len(r.pages) - 1
	r.pages[last] = append(r.pages[last], op)
}

func (r *Recording) SetFont(style FontStyle, size float64) {
	r.add(Op{Kind: OpFont, Style: style, Size: size})
}

func (r *Recording) Text(x, y float64, s string) {
	r.add(Op{Kind: OpText, X: x, Y: y, Text: s})
}

func (r *Recording) TextRight(x, y float64, s string) {
	r.add(Op{Kind: OpTextRight, X: x, Y: y, Text: s})
}

func (r *Recording) PageCount() int { return len(r.pages) }

// Pages returns the recorded operations, one slice per page.
func (r *Recording) Pages() [][]Op { return r.pages }

// Bytes renders a plain-text listing of the recorded operations.
func (r *Recording) Bytes() ([]byte, error) {
	var b strings.Builder
	for i, page := range r.pages {
		fmt.Fprintf(&b, "page %d\n", i+1)
		for _, op := range page {
			switch op.Kind {
			case OpFont:
				fmt.Fprintf(&b, "  font %s %.1f\n", op.Style, op.Size)
			default:
				fmt.Fprintf(&b, "  %s %.2f %.2f %q\n", op.Kind, op.X, op.Y, op.Text)
			}
		}
	}
	return []byte(b.String()), nil
}
