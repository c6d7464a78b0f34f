package inspection

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"

	"aero-portal/maintenance-portal/inspection-backend/internal/export"
)

// ExportInspectionRecord writes one audit record as an xlsx workbook
func (s *Service) ExportInspectionRecord(ctx context.Context, tenantID string, articleID int64, recordID uuid.UUID, w io.Writer) error {
	article, err := s.GetArticle(ctx, tenantID, articleID)
	if err != nil {
		return err
	}
	record, err := s.GetInspectionRecord(ctx, tenantID, articleID, recordID)
	if err != nil {
		return err
	}

	summary := export.Sheet{
		Name:    "Inspection",
		Columns: []string{"Field", "Value"},
		Rows: []map[string]interface{}{
			{"Field": "Record", "Value": record.ID.String()},
			{"Field": "Article", "Value": article.ID},
			{"Field": "Part number", "Value": article.PartNumber},
			{"Field": "Manufacturer", "Value": article.Manufacturer},
			{"Field": "Has documentation", "Value": article.HasDocumentation},
			{"Field": "Decision", "Value": string(record.Decision)},
			{"Field": "Status", "Value": fmt.Sprintf("%s -> %s", record.FromStatus, record.ToStatus)},
			{"Field": "Answered", "Value": fmt.Sprintf("%d/%d", record.Done, record.Total)},
			{"Field": "OK answers", "Value": record.OKCount},
			{"Field": "Operator", "Value": record.OperatorID},
			{"Field": "Decided at", "Value": record.DecidedAt},
		},
	}

	answers := export.Sheet{
		Name:    "Checklist",
		Columns: []string{"Group", "Key", "Check", "Required", "Answer"},
		Rows:    make([]map[string]interface{}, 0, len(record.Answers)),
	}
	for _, a := range record.Answers {
		answers.Rows = append(answers.Rows, map[string]interface{}{
			"Group":    a.Group,
			"Key":      a.Key,
			"Check":    a.Label,
			"Required": a.RequiredForAccept,
			"Answer":   string(a.Value),
		})
	}

	return writeWorkbook(w, summary, answers)
}

// ExportReception writes the article annex of a reception document as an xlsx workbook
func (s *Service) ExportReception(ctx context.Context, tenantID, ref string, w io.Writer) error {
	doc, err := s.GetReception(ctx, tenantID, ref)
	if err != nil {
		return err
	}

	callCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	articles, err := s.repo.GetArticles(callCtx, tenantID, doc.ArticleIDs)
	if err != nil {
		return upstream("load reception articles", err)
	}
	byID := make(map[int64]IncomingArticle, len(articles))
	for _, a := range articles {
		byID[a.ID] = a
	}

	summary := export.Sheet{
		Name:    "Reception",
		Columns: []string{"Field", "Value"},
		Rows: []map[string]interface{}{
			{"Field": "Document", "Value": doc.Ref},
			{"Field": "Purchase order", "Value": doc.PurchaseOrderCode},
			{"Field": "Client", "Value": doc.Client},
			{"Field": "Others", "Value": doc.Others},
			{"Field": "Inspection date", "Value": doc.InspectionDate},
			{"Field": "Generated by", "Value": doc.GeneratedBy},
			{"Field": "Generated at", "Value": doc.CreatedAt},
		},
	}

	annex := export.Sheet{
		Name:    "Articles",
		Columns: []string{"ID", "Part number", "ATA", "Zone", "Manufacturer", "Condition", "Documentation", "Status"},
		Rows:    make([]map[string]interface{}, 0, len(doc.ArticleIDs)),
	}
	for _, id := range doc.ArticleIDs {
		a, ok := byID[id]
		if !ok {
			annex.Rows = append(annex.Rows, map[string]interface{}{"ID": id})
			continue
		}
		annex.Rows = append(annex.Rows, map[string]interface{}{
			"ID":            a.ID,
			"Part number":   a.PartNumber,
			"ATA":           a.ATACode,
			"Zone":          a.Zone,
			"Manufacturer":  a.Manufacturer,
			"Condition":     a.ConditionName,
			"Documentation": a.HasDocumentation,
			"Status":        string(a.Status),
		})
	}

	return writeWorkbook(w, summary, annex)
}

func writeWorkbook(w io.Writer, sheets ...export.Sheet) error {
	wb, err := export.NewWorkbook(export.DefaultOptions())
	if err != nil {
		return err
	}
	defer wb.Close()

	for _, sheet := range sheets {
		if err := wb.AddSheet(sheet); err != nil {
			return err
		}
	}
	if _, err := wb.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}
