package inspection

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"aero-portal/maintenance-portal/inspection-backend/internal/export"
	"aero-portal/maintenance-portal/inspection-backend/pkg/middleware"
)

// Handler handles HTTP requests for incoming inspection
type Handler struct {
	service *Service
	logger  *zap.Logger
}

func NewHandler(service *Service, logger *zap.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// RegisterRoutes registers inspection routes. Routes expect middleware.Auth
// to have run on the group.
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	inspection := router.Group("/inspection")
	{
		articles := inspection.Group("/articles")
		articles.GET("", h.listArticles)
		articles.GET("/:id", h.getArticle)
		articles.GET("/:id/checklist", h.getChecklist)
		articles.POST("/:id/take", h.take)
		articles.PUT("/:id/answers", h.submitAnswers)
		articles.POST("/:id/decision", h.decide)
		articles.POST("/:id/release", middleware.RequireRole(middleware.RoleAdmin), h.release)
		articles.GET("/:id/inspections", h.listInspections)
		articles.GET("/:id/inspections/:recordId/export", h.exportInspection)

		receptions := inspection.Group("/receptions")
		receptions.POST("", h.generateReception)
		receptions.GET("/:ref", h.getReception)
		receptions.GET("/:ref/download", h.downloadReception)
		receptions.GET("/:ref/export", h.exportReception)
	}
}

type answersRequest struct {
	Key     string      `json:"key"`
	Value   AnswerValue `json:"value"`
	Answers []Answer    `json:"answers"`
}

type decisionRequest struct {
	Decision Decision `json:"decision" binding:"required"`
}

type receptionRequest struct {
	InspectionDate    string  `json:"inspection_date"`
	PurchaseOrderCode string  `json:"purchase_order_code"`
	Client            string  `json:"client"`
	Others            *string `json:"others"`
	ArticleIDs        []int64 `json:"article_ids"`
}

// =====================================================
// Articles
// =====================================================

// listArticles handles GET /api/v1/inspection/articles
func (h *Handler) listArticles(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}

	var status *ArticleStatus
	if q := c.Query("status"); q != "" {
		st := ArticleStatus(q)
		status = &st
	}

	articles, err := h.service.ListArticles(c.Request.Context(), tenantID, status)
	if err != nil {
		h.fail(c, "Failed to list articles", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"articles": articles, "count": len(articles)})
}

// getArticle handles GET /api/v1/inspection/articles/:id
func (h *Handler) getArticle(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	id, ok := h.articleID(c)
	if !ok {
		return
	}

	article, err := h.service.GetArticle(c.Request.Context(), tenantID, id)
	if err != nil {
		h.fail(c, "Failed to get article", err)
		return
	}
	c.JSON(http.StatusOK, article)
}

// getChecklist handles GET /api/v1/inspection/articles/:id/checklist
func (h *Handler) getChecklist(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	id, ok := h.articleID(c)
	if !ok {
		return
	}

	view, err := h.service.GetChecklist(c.Request.Context(), tenantID, id)
	if err != nil {
		h.fail(c, "Failed to get checklist", err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// take handles POST /api/v1/inspection/articles/:id/take
func (h *Handler) take(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	id, ok := h.articleID(c)
	if !ok {
		return
	}

	view, err := h.service.Take(c.Request.Context(), tenantID, id, middleware.OperatorID(c))
	if err != nil {
		h.fail(c, "Failed to take article", err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// submitAnswers handles PUT /api/v1/inspection/articles/:id/answers
func (h *Handler) submitAnswers(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	id, ok := h.articleID(c)
	if !ok {
		return
	}

	var req answersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, "Invalid answers payload", validationError("body", err.Error()))
		return
	}
	answers := req.Answers
	if req.Key != "" {
		answers = append(answers, Answer{Key: req.Key, Value: req.Value})
	}

	progress, err := h.service.SubmitAnswers(c.Request.Context(), tenantID, id, answers)
	if err != nil {
		h.fail(c, "Failed to submit answers", err)
		return
	}
	c.JSON(http.StatusOK, progress)
}

// decide handles POST /api/v1/inspection/articles/:id/decision
func (h *Handler) decide(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	id, ok := h.articleID(c)
	if !ok {
		return
	}

	var req decisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, "Invalid decision payload", validationError("decision", err.Error()))
		return
	}

	record, err := h.service.Decide(c.Request.Context(), tenantID, id, req.Decision, middleware.OperatorID(c))
	if err != nil {
		h.fail(c, "Failed to decide inspection", err)
		return
	}
	c.JSON(http.StatusOK, record)
}

// release handles POST /api/v1/inspection/articles/:id/release
func (h *Handler) release(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	id, ok := h.articleID(c)
	if !ok {
		return
	}

	article, err := h.service.Release(c.Request.Context(), tenantID, id, middleware.OperatorID(c))
	if err != nil {
		h.fail(c, "Failed to release article", err)
		return
	}
	c.JSON(http.StatusOK, article)
}

// listInspections handles GET /api/v1/inspection/articles/:id/inspections
func (h *Handler) listInspections(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	id, ok := h.articleID(c)
	if !ok {
		return
	}

	records, err := h.service.ListInspectionRecords(c.Request.Context(), tenantID, id)
	if err != nil {
		h.fail(c, "Failed to list inspection records", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"inspections": records, "count": len(records)})
}

// exportInspection handles GET /api/v1/inspection/articles/:id/inspections/:recordId/export
func (h *Handler) exportInspection(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	id, ok := h.articleID(c)
	if !ok {
		return
	}
	recordID, err := uuid.Parse(c.Param("recordId"))
	if err != nil {
		h.fail(c, "Invalid record id", validationError("recordId", "invalid inspection record ID"))
		return
	}

	var buf bytes.Buffer
	if err := h.service.ExportInspectionRecord(c.Request.Context(), tenantID, id, recordID, &buf); err != nil {
		h.fail(c, "Failed to export inspection record", err)
		return
	}
	attachment(c, fmt.Sprintf("inspection-%d-%s.xlsx", id, recordID), export.ContentType, buf.Bytes())
}

// =====================================================
// Receptions
// =====================================================

// generateReception handles POST /api/v1/inspection/receptions
func (h *Handler) generateReception(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}

	var req receptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, "Invalid reception payload", validationError("body", err.Error()))
		return
	}

	var inspectionDate time.Time
	if req.InspectionDate != "" {
		date, err := parseDate(req.InspectionDate)
		if err != nil {
			h.fail(c, "Invalid inspection date", validationError("inspection_date", "expected YYYY-MM-DD or RFC 3339"))
			return
		}
		inspectionDate = date
	}

	doc, err := h.service.Generate(c.Request.Context(), tenantID, middleware.OperatorID(c), ReceptionBatchRequest{
		InspectionDate:    inspectionDate,
		PurchaseOrderCode: req.PurchaseOrderCode,
		Client:            req.Client,
		Others:            req.Others,
		ArticleIDs:        req.ArticleIDs,
	})
	if err != nil {
		h.fail(c, "Failed to generate reception document", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"document_ref": doc.Ref, "document": doc})
}

// getReception handles GET /api/v1/inspection/receptions/:ref
func (h *Handler) getReception(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}

	doc, err := h.service.GetReception(c.Request.Context(), tenantID, c.Param("ref"))
	if err != nil {
		h.fail(c, "Failed to get reception document", err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

// downloadReception handles GET /api/v1/inspection/receptions/:ref/download
func (h *Handler) downloadReception(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}

	body, doc, err := h.service.OpenDocument(c.Request.Context(), tenantID, c.Param("ref"))
	if err != nil {
		h.fail(c, "Failed to open reception document", err)
		return
	}
	defer body.Close()

	c.DataFromReader(http.StatusOK, -1, "application/pdf", body, map[string]string{
		"Content-Disposition": fmt.Sprintf(`attachment; filename="reception-%s.pdf"`, doc.Ref),
	})
}

// exportReception handles GET /api/v1/inspection/receptions/:ref/export
func (h *Handler) exportReception(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	ref := c.Param("ref")

	var buf bytes.Buffer
	if err := h.service.ExportReception(c.Request.Context(), tenantID, ref, &buf); err != nil {
		h.fail(c, "Failed to export reception document", err)
		return
	}
	attachment(c, fmt.Sprintf("reception-%s.xlsx", ref), export.ContentType, buf.Bytes())
}

// =====================================================
// Helpers
// =====================================================

func (h *Handler) tenant(c *gin.Context) (string, bool) {
	tenantID := middleware.TenantID(c)
	if tenantID == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized", "message": "tenant missing from request"})
		return "", false
	}
	return tenantID, true
}

func (h *Handler) articleID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		h.fail(c, "Invalid article id", validationError("id", "invalid article ID"))
		return 0, false
	}
	return id, true
}

// fail renders err. Service errors keep their kind and details; anything
// else is reported as an internal error without leaking its text.
func (h *Handler) fail(c *gin.Context, msg string, err error) {
	var e *Error
	if !errors.As(err, &e) {
		h.logger.Error(msg, zap.Error(err), zap.String("path", c.Request.URL.Path))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal", "message": "internal server error"})
		return
	}

	status := e.HTTPStatus()
	if status >= http.StatusInternalServerError {
		h.logger.Error(msg, zap.Error(err), zap.String("path", c.Request.URL.Path))
	} else {
		h.logger.Info(msg, zap.String("kind", string(e.Kind)), zap.String("path", c.Request.URL.Path))
	}
	c.JSON(status, e)
}

func attachment(c *gin.Context, filename, contentType string, data []byte) {
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, contentType, data)
}

func parseDate(value string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", value); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, value)
}
