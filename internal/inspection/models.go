package inspection

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type ArticleStatus string

const (
	StatusIncoming          ArticleStatus = "INCOMING"
	StatusChecking          ArticleStatus = "CHECKING"
	StatusStored            ArticleStatus = "STORED"
	StatusHold              ArticleStatus = "HOLD"
	StatusRejected          ArticleStatus = "REJECTED"
	StatusAwaitingPlacement ArticleStatus = "AWAITING_PLACEMENT"
	StatusDispatch          ArticleStatus = "DISPATCH"
	StatusInTransit         ArticleStatus = "INTRANSIT"
)

type AnswerValue string

const (
	AnswerOK            AnswerValue = "OK"
	AnswerNotOK         AnswerValue = "NOT_OK"
	AnswerNotApplicable AnswerValue = "NOT_APPLICABLE"
)

func (v AnswerValue) Valid() bool {
	switch v {
	case AnswerOK, AnswerNotOK, AnswerNotApplicable:
		return true
	}
	return false
}

type Decision string

const (
	DecisionAccept Decision = "ACCEPT"
	DecisionHold   Decision = "HOLD"
	DecisionReject Decision = "REJECT"
)

// CheckDefinition is a tenant-configured inspection question
type CheckDefinition struct {
	ID                  int64   `json:"id" db:"id"`
	TenantID            string  `json:"tenant_id" db:"tenant_id"`
	Code                string  `json:"code" db:"code"`
	Description         string  `json:"description" db:"description"`
	IsCritical          bool    `json:"is_critical" db:"is_critical"`
	RegulationReference *string `json:"regulation_reference,omitempty" db:"regulation_reference"`
	Active              bool    `json:"active" db:"active"`
}

type ChecklistGroup struct {
	Title string          `json:"title"`
	Items []ChecklistItem `json:"items"`
}

type ChecklistItem struct {
	ID                int64  `json:"id"`
	Key               string `json:"key"`
	Code              string `json:"code"`
	Label             string `json:"label"`
	Hint              string `json:"hint,omitempty"`
	Critical          bool   `json:"critical"`
	RequiredForAccept bool   `json:"required_for_accept"`
}

type IncomingArticle struct {
	ID               int64         `json:"id" db:"id"`
	TenantID         string        `json:"tenant_id" db:"tenant_id"`
	PartNumber       string        `json:"part_number" db:"part_number"`
	ATACode          string        `json:"ata_code" db:"ata_code"`
	Zone             string        `json:"zone" db:"zone"`
	Manufacturer     string        `json:"manufacturer" db:"manufacturer"`
	ConditionName    string        `json:"condition_name" db:"condition_name"`
	HasDocumentation bool          `json:"has_documentation" db:"has_documentation"`
	Status           ArticleStatus `json:"status" db:"status"`
	BatchID          *string       `json:"batch_id,omitempty" db:"batch_id"`
	Version          int64         `json:"version" db:"version"`
	UpdatedAt        time.Time     `json:"updated_at" db:"updated_at"`
}

type ReceptionBatchRequest struct {
	InspectionDate    time.Time `json:"inspection_date"`
	PurchaseOrderCode string    `json:"purchase_order_code"`
	Client            string    `json:"client"`
	Others            *string   `json:"others,omitempty"`
	ArticleIDs        []int64   `json:"article_ids"`
}

// InspectionRecord is the immutable audit snapshot of a finished inspection pass
type InspectionRecord struct {
	ID         uuid.UUID     `json:"id" db:"id"`
	TenantID   string        `json:"tenant_id" db:"tenant_id"`
	ArticleID  int64         `json:"article_id" db:"article_id"`
	OperatorID string        `json:"operator_id" db:"operator_id"`
	Decision   Decision      `json:"decision" db:"decision"`
	FromStatus ArticleStatus `json:"from_status" db:"from_status"`
	ToStatus   ArticleStatus `json:"to_status" db:"to_status"`
	Answers    AnswerLines   `json:"answers" db:"answers"`
	Done       int           `json:"done" db:"done"`
	Total      int           `json:"total" db:"total"`
	OKCount    int           `json:"ok_count" db:"ok_count"`
	DecidedAt  time.Time     `json:"decided_at" db:"decided_at"`
}

// RecordedAnswer is one line of InspectionRecord.Answers
type RecordedAnswer struct {
	Key               string      `json:"key"`
	Label             string      `json:"label"`
	Group             string      `json:"group"`
	RequiredForAccept bool        `json:"required_for_accept"`
	Value             AnswerValue `json:"value,omitempty"`
}

// AnswerLines is stored as a JSON text column
type AnswerLines []RecordedAnswer

func (a AnswerLines) Value() (driver.Value, error) {
	if a == nil {
		a = AnswerLines{}
	}
	b, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (a *AnswerLines) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*a = AnswerLines{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into AnswerLines", src)
	}
	return json.Unmarshal(raw, a)
}

// ReceptionDocument is the formal reception form generated for a batch
type ReceptionDocument struct {
	Ref               string    `json:"ref" db:"ref"`
	TenantID          string    `json:"tenant_id" db:"tenant_id"`
	TemplateID        string    `json:"template_id" db:"template_id"`
	StorageKey        string    `json:"-" db:"storage_key"`
	PurchaseOrderCode string    `json:"purchase_order_code" db:"purchase_order_code"`
	Client            string    `json:"client" db:"client"`
	Others            *string   `json:"others,omitempty" db:"others"`
	InspectionDate    time.Time `json:"inspection_date" db:"inspection_date"`
	GeneratedBy       string    `json:"generated_by" db:"generated_by"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
	ArticleIDs        []int64   `json:"article_ids" db:"-"`
	DownloadURL       string    `json:"download_url,omitempty" db:"-"`
}

// ChecklistView is an article with its resolved checklist and current progress
type ChecklistView struct {
	Article  *IncomingArticle `json:"article"`
	Groups   []ChecklistGroup `json:"groups"`
	Progress ProgressSnapshot `json:"progress"`
}
