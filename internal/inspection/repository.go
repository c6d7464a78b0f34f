package inspection

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// ErrStatusConflict is returned when a conditional status update matched no row
var ErrStatusConflict = errors.New("article status conflict")

// ConflictError names the articles whose status no longer matched the expected one
type ConflictError struct {
	ArticleIDs []int64
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("article status conflict on %v", e.ArticleIDs)
}

func (e *ConflictError) Unwrap() error { return ErrStatusConflict }

// Repository defines the interface for inspection data access
type Repository interface {
	DefinitionSource

	// Articles
	GetArticle(ctx context.Context, tenantID string, id int64) (*IncomingArticle, error)
	GetArticles(ctx context.Context, tenantID string, ids []int64) ([]IncomingArticle, error)
	ListArticles(ctx context.Context, tenantID string, status *ArticleStatus) ([]IncomingArticle, error)
	CompareAndSetStatus(ctx context.Context, tenantID string, id int64, expected, next ArticleStatus) error

	// Inspection records
	FinalizeInspection(ctx context.Context, record *InspectionRecord) error
	ListInspectionRecords(ctx context.Context, tenantID string, articleID int64) ([]InspectionRecord, error)
	GetInspectionRecord(ctx context.Context, tenantID string, articleID int64, id uuid.UUID) (*InspectionRecord, error)

	// Reception documents
	CommitReception(ctx context.Context, doc *ReceptionDocument, expected ArticleStatus, records []InspectionRecord) error
	GetReceptionDocument(ctx context.Context, tenantID, ref string) (*ReceptionDocument, error)
}

// SQLRepository implements Repository on top of sqlx. Queries use ? bind
// vars and are rebound for the connected driver.
type SQLRepository struct {
	db *sqlx.DB
}

func NewSQLRepository(db *sqlx.DB) *SQLRepository {
	return &SQLRepository{db: db}
}

const articleColumns = `id, tenant_id, part_number, ata_code, zone, manufacturer, condition_name,
	has_documentation, status, batch_id, version, updated_at`

const recordColumns = `id, tenant_id, article_id, operator_id, decision, from_status, to_status,
	answers, done, total, ok_count, decided_at`

// =====================================================
// Check definitions
// =====================================================

func (r *SQLRepository) GetCheckDefinitions(ctx context.Context, tenantID string) ([]CheckDefinition, error) {
	query := r.db.Rebind(`
		SELECT id, tenant_id, code, description, is_critical, regulation_reference, active
		FROM check_definitions
		WHERE tenant_id = ?
		ORDER BY id
	`)

	defs := []CheckDefinition{}
	if err := r.db.SelectContext(ctx, &defs, query, tenantID); err != nil {
		return nil, fmt.Errorf("failed to get check definitions: %w", err)
	}
	return defs, nil
}

// =====================================================
// Articles
// =====================================================

func (r *SQLRepository) GetArticle(ctx context.Context, tenantID string, id int64) (*IncomingArticle, error) {
	query := r.db.Rebind(`SELECT ` + articleColumns + ` FROM incoming_articles WHERE tenant_id = ? AND id = ?`)

	var article IncomingArticle
	if err := r.db.GetContext(ctx, &article, query, tenantID, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get article: %w", err)
	}
	return &article, nil
}

// GetArticles returns the tenant's articles among ids. Missing ids are simply absent.
func (r *SQLRepository) GetArticles(ctx context.Context, tenantID string, ids []int64) ([]IncomingArticle, error) {
	if len(ids) == 0 {
		return []IncomingArticle{}, nil
	}

	query, args, err := sqlx.In(`SELECT `+articleColumns+` FROM incoming_articles WHERE tenant_id = ? AND id IN (?) ORDER BY id`, tenantID, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to build article query: %w", err)
	}

	articles := []IncomingArticle{}
	if err := r.db.SelectContext(ctx, &articles, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to get articles: %w", err)
	}
	return articles, nil
}

func (r *SQLRepository) ListArticles(ctx context.Context, tenantID string, status *ArticleStatus) ([]IncomingArticle, error) {
	query := `SELECT ` + articleColumns + ` FROM incoming_articles WHERE tenant_id = ?`
	args := []interface{}{tenantID}
	if status != nil {
		query += ` AND status = ?`
		args = append(args, *status)
	}
	query += ` ORDER BY id`

	articles := []IncomingArticle{}
	if err := r.db.SelectContext(ctx, &articles, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to list articles: %w", err)
	}
	return articles, nil
}

// CompareAndSetStatus moves one article from expected to next. A row that is
// missing or no longer in expected yields a *ConflictError.
func (r *SQLRepository) CompareAndSetStatus(ctx context.Context, tenantID string, id int64, expected, next ArticleStatus) error {
	ok, err := compareAndSet(ctx, r.db, tenantID, id, expected, next, nil)
	if err != nil {
		return err
	}
	if !ok {
		return &ConflictError{ArticleIDs: []int64{id}}
	}
	return nil
}

func compareAndSet(ctx context.Context, db sqlx.ExtContext, tenantID string, id int64, expected, next ArticleStatus, batchID *string) (bool, error) {
	query := db.Rebind(`
		UPDATE incoming_articles
		SET status = ?, batch_id = COALESCE(?, batch_id), version = version + 1, updated_at = ?
		WHERE tenant_id = ? AND id = ? AND status = ?
	`)

	result, err := db.ExecContext(ctx, query, next, batchID, time.Now().UTC(), tenantID, id, expected)
	if err != nil {
		return false, fmt.Errorf("failed to update article status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return rows == 1, nil
}

// =====================================================
// Inspection records
// =====================================================

// FinalizeInspection applies the decided transition and stores the audit
// record in one transaction.
func (r *SQLRepository) FinalizeInspection(ctx context.Context, record *InspectionRecord) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	ok, err := compareAndSet(ctx, tx, record.TenantID, record.ArticleID, record.FromStatus, record.ToStatus, nil)
	if err != nil {
		return err
	}
	if !ok {
		return &ConflictError{ArticleIDs: []int64{record.ArticleID}}
	}

	if err := insertRecord(ctx, tx, record); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit inspection: %w", err)
	}
	return nil
}

func insertRecord(ctx context.Context, tx *sqlx.Tx, record *InspectionRecord) error {
	query := tx.Rebind(`INSERT INTO inspection_records (` + recordColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := tx.ExecContext(ctx, query,
		record.ID, record.TenantID, record.ArticleID, record.OperatorID, record.Decision,
		record.FromStatus, record.ToStatus, record.Answers, record.Done, record.Total,
		record.OKCount, record.DecidedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert inspection record: %w", err)
	}
	return nil
}

func (r *SQLRepository) ListInspectionRecords(ctx context.Context, tenantID string, articleID int64) ([]InspectionRecord, error) {
	query := r.db.Rebind(`SELECT ` + recordColumns + ` FROM inspection_records
		WHERE tenant_id = ? AND article_id = ? ORDER BY decided_at DESC`)

	records := []InspectionRecord{}
	if err := r.db.SelectContext(ctx, &records, query, tenantID, articleID); err != nil {
		return nil, fmt.Errorf("failed to list inspection records: %w", err)
	}
	return records, nil
}

func (r *SQLRepository) GetInspectionRecord(ctx context.Context, tenantID string, articleID int64, id uuid.UUID) (*InspectionRecord, error) {
	query := r.db.Rebind(`SELECT ` + recordColumns + ` FROM inspection_records
		WHERE tenant_id = ? AND article_id = ? AND id = ?`)

	var record InspectionRecord
	if err := r.db.GetContext(ctx, &record, query, tenantID, articleID, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get inspection record: %w", err)
	}
	return &record, nil
}

// =====================================================
// Reception documents
// =====================================================

// CommitReception moves every article of doc from expected to
// AWAITING_PLACEMENT, stores the document and the audit records of the
// inspections it closes. Either all of it lands or none of it; on conflict the
// returned *ConflictError names every offending article.
func (r *SQLRepository) CommitReception(ctx context.Context, doc *ReceptionDocument, expected ArticleStatus, records []InspectionRecord) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var conflicts []int64
	for _, id := range doc.ArticleIDs {
		ok, err := compareAndSet(ctx, tx, doc.TenantID, id, expected, StatusAwaitingPlacement, &doc.Ref)
		if err != nil {
			return err
		}
		if !ok {
			conflicts = append(conflicts, id)
		}
	}
	if len(conflicts) > 0 {
		return &ConflictError{ArticleIDs: conflicts}
	}

	query := tx.Rebind(`
		INSERT INTO reception_documents (
			ref, tenant_id, template_id, storage_key, purchase_order_code, client, others,
			inspection_date, generated_by, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	_, err = tx.ExecContext(ctx, query,
		doc.Ref, doc.TenantID, doc.TemplateID, doc.StorageKey, doc.PurchaseOrderCode, doc.Client,
		doc.Others, doc.InspectionDate, doc.GeneratedBy, doc.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert reception document: %w", err)
	}

	linkQuery := tx.Rebind(`INSERT INTO reception_document_articles (ref, article_id, position) VALUES (?, ?, ?)`)
	for i, id := range doc.ArticleIDs {
		if _, err := tx.ExecContext(ctx, linkQuery, doc.Ref, id, i); err != nil {
			return fmt.Errorf("failed to link reception article: %w", err)
		}
	}

	for i := range records {
		if err := insertRecord(ctx, tx, &records[i]); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit reception: %w", err)
	}
	return nil
}

func (r *SQLRepository) GetReceptionDocument(ctx context.Context, tenantID, ref string) (*ReceptionDocument, error) {
	query := r.db.Rebind(`
		SELECT ref, tenant_id, template_id, storage_key, purchase_order_code, client, others,
			inspection_date, generated_by, created_at
		FROM reception_documents
		WHERE tenant_id = ? AND ref = ?
	`)

	var doc ReceptionDocument
	if err := r.db.GetContext(ctx, &doc, query, tenantID, ref); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get reception document: %w", err)
	}

	doc.ArticleIDs = []int64{}
	linkQuery := r.db.Rebind(`SELECT article_id FROM reception_document_articles WHERE ref = ? ORDER BY position`)
	if err := r.db.SelectContext(ctx, &doc.ArticleIDs, linkQuery, ref); err != nil {
		return nil, fmt.Errorf("failed to get reception articles: %w", err)
	}
	return &doc, nil
}
