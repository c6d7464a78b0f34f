package pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/jung-kurt/gofpdf"
)

// TemplateReceptionForm renders a ReceptionForm payload
const TemplateReceptionForm = "reception_form"

var (
	ErrUnknownTemplate = errors.New("unknown pdf template")
	ErrInvalidPayload  = errors.New("payload does not match template")
)

type Generator interface {
	Generate(ctx context.Context, templateID string, data interface{}) (io.ReadSeeker, error)
}

// Options configures page layout shared by all templates
type Options struct {
	PageSize       string
	Orientation    string
	FontFamily     string
	FontSize       float64
	HeaderFontSize float64
	TitleFontSize  float64
	DateFormat     string
	HeaderColor    Color
	AlternateColor Color
	Margins        Margins
}

// Color represents an RGB color
type Color struct {
	R int
	G int
	B int
}

// Margins represents page margins in millimetres
type Margins struct {
	Left   float64
	Right  float64
	Top    float64
	Bottom float64
}

// DefaultOptions returns default layout options
func DefaultOptions() Options {
	return Options{
		PageSize:       "A4",
		Orientation:    "portrait",
		FontFamily:     "Arial",
		FontSize:       9,
		HeaderFontSize: 9,
		TitleFontSize:  14,
		DateFormat:     "2006-01-02",
		HeaderColor:    Color{R: 31, G: 56, B: 100},
		AlternateColor: Color{R: 242, G: 242, B: 242},
		Margins: Margins{
			Left:   12,
			Right:  12,
			Top:    15,
			Bottom: 18,
		},
	}
}

type fpdfGenerator struct {
	options Options
}

// NewGenerator creates a gofpdf backed generator
func NewGenerator(options Options) Generator {
	return &fpdfGenerator{options: options}
}

func (g *fpdfGenerator) Generate(ctx context.Context, templateID string, data interface{}) (io.ReadSeeker, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch templateID {
	case TemplateReceptionForm:
		var form ReceptionForm
		switch v := data.(type) {
		case ReceptionForm:
			form = v
		case *ReceptionForm:
			if v == nil {
				return nil, ErrInvalidPayload
			}
			form = *v
		default:
			return nil, fmt.Errorf("%w: %s expects ReceptionForm, got %T", ErrInvalidPayload, templateID, data)
		}
		return g.render(func(doc *gofpdf.Fpdf) {
			newReceptionFormWriter(doc, g.options).write(form)
		})
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownTemplate, templateID)
	}
}

// newDocument creates a page-configured gofpdf document
func (g *fpdfGenerator) newDocument() *gofpdf.Fpdf {
	orientation := "P"
	if g.options.Orientation == "landscape" {
		orientation = "L"
	}

	doc := gofpdf.New(orientation, "mm", g.options.PageSize, "")
	doc.SetMargins(g.options.Margins.Left, g.options.Margins.Top, g.options.Margins.Right)
	doc.SetAutoPageBreak(true, g.options.Margins.Bottom)
	return doc
}

func (g *fpdfGenerator) render(write func(doc *gofpdf.Fpdf)) (io.ReadSeeker, error) {
	doc := g.newDocument()
	write(doc)

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render pdf: %w", err)
	}
	return bytes.NewReader(buf.Bytes()), nil
}
