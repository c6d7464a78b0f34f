package inspection

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"aero-portal/maintenance-portal/inspection-backend/internal/documents"
	"aero-portal/maintenance-portal/inspection-backend/pkg/pdf"
)

// ServiceConfig holds the tunables of the inspection service
type ServiceConfig struct {
	// UpstreamTimeout bounds every call to the store and the renderer
	UpstreamTimeout time.Duration
	// DownloadURLExpiry is the lifetime of presigned document links
	DownloadURLExpiry time.Duration
}

func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		UpstreamTimeout:   10 * time.Second,
		DownloadURLExpiry: 15 * time.Minute,
	}
}

// Service runs the incoming inspection workflow: checklist resolution,
// progress sessions, status transitions and reception batches.
type Service struct {
	repo        Repository
	definitions DefinitionSource
	resolver    *ChecklistResolver
	machine     *ArticleStateMachine
	sessions    *SessionStore
	renderer    documents.Renderer
	config      ServiceConfig
	logger      *zap.Logger
	now         func() time.Time
}

// NewService wires the service. definitions may wrap repo with a cache; when
// nil the repository is queried directly.
func NewService(repo Repository, definitions DefinitionSource, renderer documents.Renderer, sessions *SessionStore, config ServiceConfig, logger *zap.Logger) *Service {
	if definitions == nil {
		definitions = repo
	}
	if sessions == nil {
		sessions = NewSessionStore()
	}
	return &Service{
		repo:        repo,
		definitions: definitions,
		resolver:    NewChecklistResolver(logger),
		machine:     NewArticleStateMachine(),
		sessions:    sessions,
		renderer:    renderer,
		config:      config,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.config.UpstreamTimeout)
}

// upstream classifies a collaborator failure
func upstream(operation string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return upstreamTimeoutError(operation, err)
	}
	return fmt.Errorf("failed to %s: %w", operation, err)
}

// =====================================================
// Articles
// =====================================================

func (s *Service) ListArticles(ctx context.Context, tenantID string, status *ArticleStatus) ([]IncomingArticle, error) {
	if status != nil && !s.machine.Known(*status) {
		return nil, validationError("status", fmt.Sprintf("unknown status %q", *status))
	}

	callCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	articles, err := s.repo.ListArticles(callCtx, tenantID, status)
	if err != nil {
		return nil, upstream("list articles", err)
	}
	return articles, nil
}

func (s *Service) GetArticle(ctx context.Context, tenantID string, articleID int64) (*IncomingArticle, error) {
	callCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	article, err := s.repo.GetArticle(callCtx, tenantID, articleID)
	if err != nil {
		return nil, upstream("get article", err)
	}
	if article == nil {
		return nil, notFoundError("article", articleID)
	}
	return article, nil
}

func (s *Service) resolveChecklist(ctx context.Context, article *IncomingArticle) ([]ChecklistGroup, error) {
	callCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	defs, err := s.definitions.GetCheckDefinitions(callCtx, article.TenantID)
	if err != nil {
		return nil, upstream("load check definitions", err)
	}
	return s.resolver.Resolve(defs, article.HasDocumentation), nil
}

// session returns the live session of a CHECKING article, recreating an
// empty one when the process lost it.
func (s *Service) session(ctx context.Context, article *IncomingArticle) (*Session, []ChecklistGroup, error) {
	groups, err := s.resolveChecklist(ctx, article)
	if err != nil {
		return nil, nil, err
	}
	session, resumed := s.sessions.Resume(article.TenantID, article.ID, groups)
	if !resumed {
		s.logger.Warn("Inspection session not held by this instance; restarting checklist",
			zap.String("tenant_id", article.TenantID),
			zap.Int64("article_id", article.ID))
	}
	return session, groups, nil
}

func sealedError(ids []int64) *Error {
	return &Error{
		Kind:       KindConcurrentModification,
		Message:    "inspection is already being finalized",
		ArticleIDs: ids,
	}
}

// GetChecklist returns the article's checklist. Progress is only tracked
// while the article is CHECKING; other statuses report an unanswered list.
func (s *Service) GetChecklist(ctx context.Context, tenantID string, articleID int64) (*ChecklistView, error) {
	article, err := s.GetArticle(ctx, tenantID, articleID)
	if err != nil {
		return nil, err
	}

	if article.Status != StatusChecking {
		groups, err := s.resolveChecklist(ctx, article)
		if err != nil {
			return nil, err
		}
		return &ChecklistView{Article: article, Groups: groups, Progress: NewSession(groups).Snapshot()}, nil
	}

	session, groups, err := s.session(ctx, article)
	if err != nil {
		return nil, err
	}
	return &ChecklistView{Article: article, Groups: groups, Progress: session.Snapshot()}, nil
}

// =====================================================
// Transitions
// =====================================================

// Take opens an INCOMING article for inspection by operatorID
func (s *Service) Take(ctx context.Context, tenantID string, articleID int64, operatorID string) (*ChecklistView, error) {
	article, err := s.GetArticle(ctx, tenantID, articleID)
	if err != nil {
		return nil, err
	}

	switch article.Status {
	case StatusIncoming:
	case StatusChecking:
		return nil, &Error{Kind: KindAlreadyTaken, Message: "article is already being inspected", ArticleIDs: []int64{articleID}}
	default:
		return nil, invalidTransitionError(articleID, article.Status, StatusChecking)
	}

	groups, err := s.resolveChecklist(ctx, article)
	if err != nil {
		return nil, err
	}

	callCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.repo.CompareAndSetStatus(callCtx, tenantID, articleID, StatusIncoming, StatusChecking); err != nil {
		if errors.Is(err, ErrStatusConflict) {
			return nil, &Error{Kind: KindAlreadyTaken, Message: "article was taken by another operator", ArticleIDs: []int64{articleID}, Err: err}
		}
		return nil, upstream("take article", err)
	}

	// a stale session from an earlier pass must not leak into this one
	s.sessions.Close(tenantID, articleID)
	session := s.sessions.Open(tenantID, articleID, groups)

	article.Status = StatusChecking
	article.Version++
	article.UpdatedAt = s.now()

	s.logger.Info("Article taken for inspection",
		zap.String("tenant_id", tenantID),
		zap.Int64("article_id", articleID),
		zap.String("operator_id", operatorID))

	return &ChecklistView{Article: article, Groups: groups, Progress: session.Snapshot()}, nil
}

// SubmitAnswers records answers on a CHECKING article. Either every answer
// is applied or none is.
func (s *Service) SubmitAnswers(ctx context.Context, tenantID string, articleID int64, answers []Answer) (ProgressSnapshot, error) {
	if len(answers) == 0 {
		return ProgressSnapshot{}, validationError("answers", "at least one answer is required")
	}

	article, err := s.GetArticle(ctx, tenantID, articleID)
	if err != nil {
		return ProgressSnapshot{}, err
	}
	if article.Status != StatusChecking {
		return ProgressSnapshot{}, &Error{
			Kind:       KindInvalidTransition,
			Message:    fmt.Sprintf("article is %s; answers are only accepted while %s", article.Status, StatusChecking),
			ArticleIDs: []int64{articleID},
		}
	}

	session, _, err := s.session(ctx, article)
	if err != nil {
		return ProgressSnapshot{}, err
	}
	if err := session.SetAll(answers); err != nil {
		return ProgressSnapshot{}, err
	}
	return session.Snapshot(), nil
}

func (s *Service) SubmitAnswer(ctx context.Context, tenantID string, articleID int64, key string, value AnswerValue) (ProgressSnapshot, error) {
	return s.SubmitAnswers(ctx, tenantID, articleID, []Answer{{Key: key, Value: value}})
}

// Decide closes the inspection of a CHECKING article. The transition and
// its audit record are committed together.
func (s *Service) Decide(ctx context.Context, tenantID string, articleID int64, decision Decision, operatorID string) (*InspectionRecord, error) {
	target, ok := decision.Target()
	if !ok {
		return nil, validationError("decision", fmt.Sprintf("unsupported decision %q", decision))
	}

	article, err := s.GetArticle(ctx, tenantID, articleID)
	if err != nil {
		return nil, err
	}
	if article.Status != StatusChecking || !s.machine.CanTransition(article.Status, target) {
		return nil, invalidTransitionError(articleID, article.Status, target)
	}

	session, _, err := s.session(ctx, article)
	if err != nil {
		return nil, err
	}

	snapshot, lines, ok := session.seal()
	if !ok {
		return nil, sealedError([]int64{articleID})
	}
	sealed := true
	defer func() {
		if sealed {
			session.unseal()
		}
	}()

	if decision == DecisionAccept && !snapshot.AcceptEligible {
		return nil, &Error{
			Kind:       KindChecklistIncomplete,
			Message:    fmt.Sprintf("%d checklist item(s) prevent acceptance", len(snapshot.Blocking)),
			ArticleIDs: []int64{articleID},
			Blocking:   snapshot.Blocking,
		}
	}

	record := &InspectionRecord{
		ID:         uuid.New(),
		TenantID:   tenantID,
		ArticleID:  articleID,
		OperatorID: operatorID,
		Decision:   decision,
		FromStatus: article.Status,
		ToStatus:   target,
		Answers:    lines,
		Done:       snapshot.Done,
		Total:      snapshot.Total,
		OKCount:    snapshot.OKCount,
		DecidedAt:  s.now(),
	}

	callCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.repo.FinalizeInspection(callCtx, record); err != nil {
		if errors.Is(err, ErrStatusConflict) {
			return nil, concurrentModificationError([]int64{articleID}, err)
		}
		return nil, upstream("record decision", err)
	}
	// the closed session stays sealed for anyone still holding it
	sealed = false
	s.sessions.CloseIf(tenantID, articleID, session)

	s.logger.Info("Inspection decided",
		zap.String("tenant_id", tenantID),
		zap.Int64("article_id", articleID),
		zap.String("decision", string(decision)),
		zap.String("to_status", string(target)),
		zap.String("operator_id", operatorID))

	return record, nil
}

// Release hands a CHECKING article back to INCOMING and drops its answers
func (s *Service) Release(ctx context.Context, tenantID string, articleID int64, operatorID string) (*IncomingArticle, error) {
	article, err := s.GetArticle(ctx, tenantID, articleID)
	if err != nil {
		return nil, err
	}
	if article.Status != StatusChecking {
		return nil, invalidTransitionError(articleID, article.Status, StatusIncoming)
	}
	previous, _ := s.sessions.Get(tenantID, articleID)

	callCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.repo.CompareAndSetStatus(callCtx, tenantID, articleID, StatusChecking, StatusIncoming); err != nil {
		if errors.Is(err, ErrStatusConflict) {
			return nil, concurrentModificationError([]int64{articleID}, err)
		}
		return nil, upstream("release article", err)
	}
	// a Take that won the article back in the meantime keeps its new session
	s.sessions.CloseIf(tenantID, articleID, previous)

	s.logger.Warn("Inspection released",
		zap.String("tenant_id", tenantID),
		zap.Int64("article_id", articleID),
		zap.String("operator_id", operatorID))

	article.Status = StatusIncoming
	article.Version++
	article.UpdatedAt = s.now()
	return article, nil
}

// =====================================================
// Inspection records
// =====================================================

func (s *Service) ListInspectionRecords(ctx context.Context, tenantID string, articleID int64) ([]InspectionRecord, error) {
	if _, err := s.GetArticle(ctx, tenantID, articleID); err != nil {
		return nil, err
	}

	callCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	records, err := s.repo.ListInspectionRecords(callCtx, tenantID, articleID)
	if err != nil {
		return nil, upstream("list inspection records", err)
	}
	return records, nil
}

func (s *Service) GetInspectionRecord(ctx context.Context, tenantID string, articleID int64, recordID uuid.UUID) (*InspectionRecord, error) {
	callCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	record, err := s.repo.GetInspectionRecord(callCtx, tenantID, articleID, recordID)
	if err != nil {
		return nil, upstream("get inspection record", err)
	}
	if record == nil {
		return nil, &Error{Kind: KindNotFound, Message: "inspection record not found", ArticleIDs: []int64{articleID}}
	}
	return record, nil
}

// =====================================================
// Reception batches
// =====================================================

func (s *Service) validateReception(req ReceptionBatchRequest) error {
	if req.InspectionDate.IsZero() {
		return validationError("inspection_date", "inspection date is required")
	}
	if len(req.ArticleIDs) == 0 {
		return validationError("article_ids", "at least one article is required")
	}

	seen := make(map[int64]struct{}, len(req.ArticleIDs))
	var duplicates []int64
	for _, id := range req.ArticleIDs {
		if _, ok := seen[id]; ok {
			duplicates = append(duplicates, id)
			continue
		}
		seen[id] = struct{}{}
	}
	if len(duplicates) > 0 {
		e := validationError("article_ids", "articles are listed more than once")
		e.ArticleIDs = duplicates
		return e
	}

	if utf8.RuneCountInString(strings.TrimSpace(req.PurchaseOrderCode)) < 2 {
		return validationError("purchase_order_code", "purchase order code must have at least 2 characters")
	}
	if utf8.RuneCountInString(strings.TrimSpace(req.Client)) < 2 {
		return validationError("client", "client must have at least 2 characters")
	}
	return nil
}

// receptionArticles loads the batch in request order and checks every
// article may go on the form. It returns the shared status.
func (s *Service) receptionArticles(ctx context.Context, tenantID string, ids []int64) ([]IncomingArticle, ArticleStatus, error) {
	callCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	found, err := s.repo.GetArticles(callCtx, tenantID, ids)
	if err != nil {
		return nil, "", upstream("load articles", err)
	}

	byID := make(map[int64]IncomingArticle, len(found))
	for _, a := range found {
		byID[a.ID] = a
	}

	var missing, ineligible []int64
	ordered := make([]IncomingArticle, 0, len(ids))
	for _, id := range ids {
		article, ok := byID[id]
		if !ok {
			missing = append(missing, id)
			continue
		}
		if !s.receptionReady(&article) {
			ineligible = append(ineligible, id)
		}
		ordered = append(ordered, article)
	}

	if len(missing) > 0 {
		e := validationError("article_ids", "articles do not exist")
		e.ArticleIDs = missing
		return nil, "", e
	}
	if len(ineligible) > 0 {
		e := validationError("article_ids", "articles must be INCOMING or CHECKING with an accept-eligible checklist")
		e.ArticleIDs = ineligible
		return nil, "", e
	}

	status := ordered[0].Status
	for _, a := range ordered[1:] {
		if a.Status != status {
			return nil, "", validationError("article_ids", "articles must all share the same status")
		}
	}
	return ordered, status, nil
}

func (s *Service) receptionReady(article *IncomingArticle) bool {
	if !receptionEligible(article.Status) || !s.machine.CanTransition(article.Status, StatusAwaitingPlacement) {
		return false
	}
	if article.Status == StatusIncoming {
		return true
	}
	session, ok := s.sessions.Get(article.TenantID, article.ID)
	return ok && session.Snapshot().AcceptEligible
}

// Generate renders the reception form of a batch and moves every article to
// AWAITING_PLACEMENT. The document is only kept when the transition commits.
func (s *Service) Generate(ctx context.Context, tenantID, operatorID string, req ReceptionBatchRequest) (*ReceptionDocument, error) {
	if err := s.validateReception(req); err != nil {
		return nil, err
	}

	articles, status, err := s.receptionArticles(ctx, tenantID, req.ArticleIDs)
	if err != nil {
		return nil, err
	}

	now := s.now()
	doc := &ReceptionDocument{
		Ref:               uuid.NewString(),
		TenantID:          tenantID,
		TemplateID:        pdf.TemplateReceptionForm,
		PurchaseOrderCode: strings.TrimSpace(req.PurchaseOrderCode),
		Client:            strings.TrimSpace(req.Client),
		Others:            req.Others,
		InspectionDate:    req.InspectionDate,
		GeneratedBy:       operatorID,
		CreatedAt:         now,
		ArticleIDs:        req.ArticleIDs,
	}

	rendered, err := s.render(ctx, doc, articles)
	if err != nil {
		return nil, err
	}
	doc.StorageKey = rendered.StorageKey

	// eligibility of CHECKING articles is checked again on sealed sessions,
	// so no answer can change between this check and the commit
	inspections, err := s.sealInspections(articles, status, operatorID, now)
	if err != nil {
		s.discard(ctx, doc)
		return nil, err
	}
	records := make([]InspectionRecord, len(inspections))
	for i, in := range inspections {
		records[i] = in.record
	}

	commitCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.repo.CommitReception(commitCtx, doc, status, records); err != nil {
		unsealAll(inspections)
		s.discard(ctx, doc)

		var conflict *ConflictError
		if errors.As(err, &conflict) {
			return nil, concurrentModificationError(conflict.ArticleIDs, err)
		}
		return nil, upstream("commit reception", err)
	}

	if status == StatusChecking {
		for _, in := range inspections {
			s.sessions.CloseIf(tenantID, in.record.ArticleID, in.session)
		}
	} else {
		for _, id := range req.ArticleIDs {
			s.sessions.Close(tenantID, id)
		}
	}

	s.logger.Info("Reception document generated",
		zap.String("tenant_id", tenantID),
		zap.String("ref", doc.Ref),
		zap.Int("articles", len(doc.ArticleIDs)),
		zap.String("from_status", string(status)),
		zap.String("operator_id", operatorID))

	return doc, nil
}

// sealedInspection is a CHECKING article whose pass a reception closes
type sealedInspection struct {
	session *Session
	record  InspectionRecord
}

func unsealAll(inspections []sealedInspection) {
	for _, in := range inspections {
		in.session.unseal()
	}
}

// sealInspections seals the live sessions of a CHECKING batch and builds the
// ACCEPT records the reception writes for them. Nothing stays sealed when it
// fails. INCOMING batches have no inspections to close.
func (s *Service) sealInspections(articles []IncomingArticle, status ArticleStatus, operatorID string, now time.Time) ([]sealedInspection, error) {
	if status != StatusChecking {
		return nil, nil
	}

	var (
		inspections []sealedInspection
		incomplete  []int64
		changed     []int64
		blocking    []BlockingItem
	)
	for _, article := range articles {
		session, ok := s.sessions.Get(article.TenantID, article.ID)
		if !ok {
			changed = append(changed, article.ID)
			continue
		}
		snapshot, lines, ok := session.seal()
		if !ok {
			changed = append(changed, article.ID)
			continue
		}
		inspections = append(inspections, sealedInspection{
			session: session,
			record: InspectionRecord{
				ID:         uuid.New(),
				TenantID:   article.TenantID,
				ArticleID:  article.ID,
				OperatorID: operatorID,
				Decision:   DecisionAccept,
				FromStatus: StatusChecking,
				ToStatus:   StatusAwaitingPlacement,
				Answers:    lines,
				Done:       snapshot.Done,
				Total:      snapshot.Total,
				OKCount:    snapshot.OKCount,
				DecidedAt:  now,
			},
		})
		if !snapshot.AcceptEligible {
			incomplete = append(incomplete, article.ID)
			blocking = append(blocking, snapshot.Blocking...)
		}
	}

	switch {
	case len(incomplete) > 0:
		unsealAll(inspections)
		return nil, &Error{
			Kind:       KindChecklistIncomplete,
			Message:    "checklists changed and no longer allow acceptance",
			ArticleIDs: incomplete,
			Blocking:   blocking,
		}
	case len(changed) > 0:
		unsealAll(inspections)
		return nil, &Error{
			Kind:       KindConcurrentModification,
			Message:    "inspections were closed or are being finalized elsewhere",
			ArticleIDs: changed,
		}
	}
	return inspections, nil
}

func (s *Service) render(ctx context.Context, doc *ReceptionDocument, articles []IncomingArticle) (*documents.Rendered, error) {
	form := pdf.ReceptionForm{
		DocumentRef:       doc.Ref,
		InspectionDate:    doc.InspectionDate,
		PurchaseOrderCode: doc.PurchaseOrderCode,
		Client:            doc.Client,
		GeneratedBy:       doc.GeneratedBy,
		GeneratedAt:       doc.CreatedAt,
		Articles:          make([]pdf.ReceptionFormArticle, 0, len(articles)),
	}
	if doc.Others != nil {
		form.Others = *doc.Others
	}
	for _, a := range articles {
		form.Articles = append(form.Articles, pdf.ReceptionFormArticle{
			ID:               a.ID,
			PartNumber:       a.PartNumber,
			ATACode:          a.ATACode,
			Zone:             a.Zone,
			Manufacturer:     a.Manufacturer,
			ConditionName:    a.ConditionName,
			HasDocumentation: a.HasDocumentation,
		})
	}

	renderCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	rendered, err := s.renderer.Render(renderCtx, doc.Ref, doc.TemplateID, form)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, upstreamTimeoutError("render reception form", err)
		}
		return nil, &Error{Kind: KindRenderFailed, Message: "reception form could not be rendered", Err: err}
	}
	return rendered, nil
}

// discard removes a rendered document whose batch did not commit. It runs
// detached from ctx, which may already be past its deadline.
func (s *Service) discard(ctx context.Context, doc *ReceptionDocument) {
	discardCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.config.UpstreamTimeout)
	defer cancel()

	if err := s.renderer.Discard(discardCtx, doc.StorageKey); err != nil {
		s.logger.Error("Orphaned reception document",
			zap.String("tenant_id", doc.TenantID),
			zap.String("ref", doc.Ref),
			zap.String("storage_key", doc.StorageKey),
			zap.Error(err))
	}
}

func (s *Service) GetReception(ctx context.Context, tenantID, ref string) (*ReceptionDocument, error) {
	callCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	doc, err := s.repo.GetReceptionDocument(callCtx, tenantID, ref)
	if err != nil {
		return nil, upstream("get reception document", err)
	}
	if doc == nil {
		return nil, &Error{Kind: KindNotFound, Message: "reception document not found"}
	}

	url, err := s.renderer.URL(callCtx, doc.StorageKey, s.config.DownloadURLExpiry)
	if err != nil {
		s.logger.Warn("Failed to presign reception document", zap.String("ref", ref), zap.Error(err))
	} else {
		doc.DownloadURL = url
	}
	return doc, nil
}

// OpenDocument streams the stored PDF of a reception document. The caller closes the reader.
func (s *Service) OpenDocument(ctx context.Context, tenantID, ref string) (io.ReadCloser, *ReceptionDocument, error) {
	doc, err := s.GetReception(ctx, tenantID, ref)
	if err != nil {
		return nil, nil, err
	}

	body, err := s.renderer.Open(ctx, doc.StorageKey)
	if err != nil {
		if errors.Is(err, documents.ErrDocumentNotFound) {
			return nil, nil, &Error{Kind: KindNotFound, Message: "reception document content not found", Err: err}
		}
		return nil, nil, upstream("open reception document", err)
	}
	return body, doc, nil
}
