package documents

import (
	"context"
	"fmt"
	"io"

	"aero-portal/maintenance-portal/inspection-backend/pkg/pdf"
)

// PDFService renders the templates it was configured with and measures the output
type PDFService struct {
	generator pdf.Generator
	templates map[string]struct{}
}

// NewPDFService serves the given templates, or only the reception form when none are named
func NewPDFService(generator pdf.Generator, templates ...string) *PDFService {
	if len(templates) == 0 {
		templates = []string{pdf.TemplateReceptionForm}
	}
	allowed := make(map[string]struct{}, len(templates))
	for _, t := range templates {
		allowed[t] = struct{}{}
	}
	return &PDFService{
		generator: generator,
		templates: allowed,
	}
}

// Generate returns the rendered document rewound to its start, and its size in bytes
func (s *PDFService) Generate(ctx context.Context, templateID string, data interface{}) (io.ReadSeeker, int64, error) {
	if _, ok := s.templates[templateID]; !ok {
		return nil, 0, fmt.Errorf("%w: %s", pdf.ErrUnknownTemplate, templateID)
	}

	content, err := s.generator.Generate(ctx, templateID, data)
	if err != nil {
		return nil, 0, err
	}

	size, err := content.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to measure %s: %w", templateID, err)
	}
	if _, err := content.Seek(0, io.SeekStart); err != nil {
		return nil, 0, fmt.Errorf("failed to rewind %s: %w", templateID, err)
	}
	return content, size, nil
}
