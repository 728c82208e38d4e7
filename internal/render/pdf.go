package render

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"github.com/go-pdf/fpdf"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
)

// fontFamily is the family name the two faces are registered under in every
// generated document.
const fontFamily = "InvoiceSans"

// Fonts holds the TrueType data of the two template faces. It is loaded once
// at process start and only read afterwards, so one value can be shared by
// concurrent renders.
type Fonts struct {
	Regular []byte
	Bold    []byte
}

// DefaultFonts returns the embedded Go fonts, which cover the Latin Extended-A
// characters used in Polish names and addresses.
func DefaultFonts() Fonts {
	return Fonts{Regular: goregular.TTF, Bold: gobold.TTF}
}

// LoadFonts reads the two faces from TTF files. An empty path selects the
// corresponding embedded Go font.
func LoadFonts(regularPath, boldPath string) (Fonts, error) {
	fonts := DefaultFonts()
	if regularPath != "" {
		data, err := os.ReadFile(regularPath)
		if err != nil {
			return Fonts{}, fmt.Errorf("failed to read regular font: %w", err)
		}
		fonts.Regular = data
	}
	if boldPath != "" {
		data, err := os.ReadFile(boldPath)
		if err != nil {
			return Fonts{}, fmt.Errorf("failed to read bold font: %w", err)
		}
		fonts.Bold = data
	}
	return fonts, nil
}

// PDFBackend produces A4 PDF documents with go-pdf/fpdf.
type PDFBackend struct {
	fonts Fonts

	// created, when non-zero, is stamped as the creation date of every
	// document, making the output byte-for-byte reproducible.
	created time.Time
}

// NewPDFBackend creates a backend using the given fonts.
func NewPDFBackend(fonts Fonts) *PDFBackend {
	return &PDFBackend{fonts: fonts}
}

// WithCreationDate fixes the creation date written into every document.
func (b *PDFBackend) WithCreationDate(t time.Time) *PDFBackend {
	b.created = t
	return b
}

func (b *PDFBackend) Extension() string { return ".pdf" }

func (b *PDFBackend) NewDocument() (Document, error) {
	f := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "pt",
		SizeStr:        "A4",
	})
	f.SetMargins(0, 0, 0)
	f.SetAutoPageBreak(false, 0)
	f.SetCatalogSort(true)
	if !b.created.IsZero() {
		f.SetCreationDate(b.created)
	}
	f.AddUTF8FontFromBytes(fontFamily, "", b.fonts.Regular)
	f.AddUTF8FontFromBytes(fontFamily, "B", b.fonts.Bold)
	if err := f.Error(); err != nil {
		return nil, fmt.Errorf("failed to register fonts: %w", err)
	}

	_, height := f.GetPageSize()
	return &pdfDocument{f: f, height: height}, nil
}

// pdfDocument adapts fpdf, whose y axis grows downwards from the top edge, to
// the bottom-up Canvas coordinates.
type pdfDocument struct {
	f      *fpdf.Fpdf
	height float64
	pages  int
}

func (d *pdfDocument) AddPage() {
	d.f.AddPage()
	d.pages++
}

func (d *pdfDocument) SetFont(style FontStyle, size float64) {
	styleStr := ""
	if style == Bold {
		styleStr = "B"
	}
	d.f.SetFont(fontFamily, styleStr, size)
}

func (d *pdfDocument) Text(x, y float64, s string) {
	if s == "" {
		return
	}
	d.f.Text(x, d.height-y, s)
}

func (d *pdfDocument) TextRight(x, y float64, s string) {
	if s == "" {
		return
	}
	d.f.Text(x-d.f.GetStringWidth(s), d.height-y, s)
}

func (d *pdfDocument) PageCount() int { return d.pages }

func (d *pdfDocument) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := d.f.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to write PDF: %w", err)
	}
	return buf.Bytes(), nil
}
