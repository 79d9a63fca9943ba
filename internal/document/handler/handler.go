package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/docflow/docflow/backend/go-services/internal/document"
	"github.com/docflow/docflow/backend/go-services/internal/document/repository"
	"github.com/docflow/docflow/backend/go-services/internal/document/service"
	"github.com/docflow/docflow/backend/go-services/internal/storage"
	"github.com/docflow/docflow/backend/go-services/pkg/logger"
	"github.com/docflow/docflow/backend/go-services/pkg/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	codeValidation  = "VALIDATION_ERROR"
	codeNotFound    = "NOT_FOUND"
	codeInternal    = "INTERNAL_ERROR"
	codeUnavailable = "ARCHIVE_UNAVAILABLE"

	reportLinkTTL = 15 * time.Minute
)

// ReportArchive reads concurrency reports archived by the harness.
type ReportArchive interface {
	LoadReport(ctx context.Context, key string) (*document.ConcurrencyReport, error)
	GetPresignedURL(ctx context.Context, key string, expires time.Duration) (string, error)
}

type reportLink struct {
	Key       string    `json:"key"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type createRequest struct {
	Author string `json:"author" binding:"required"`
	Title  string `json:"title" binding:"required"`
}

type documentHandler struct {
	svc     service.Service
	reports ReportArchive
}

// RegisterDocumentRoutes mounts the document API under /api/documents.
// reports may be nil when no archive is configured.
func RegisterDocumentRoutes(r gin.IRouter, svc service.Service, reports ReportArchive) {
	h := &documentHandler{svc: svc, reports: reports}
	g := r.Group("/api/documents")
	g.POST("", h.create)
	g.GET("", h.list)
	g.GET("/search", h.search)
	g.GET("/:id", h.get)
	g.POST("/submit", h.submit)
	g.POST("/approve", h.approve)
	g.POST("/:id/concurrent-approval-test", h.concurrencyTest)
	g.GET("/:id/concurrent-approval-test/reports/:runId", h.report)
}

func (h *documentHandler) create(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	d, err := h.svc.Create(c.Request.Context(), req.Author, req.Title)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, d)
}

func (h *documentHandler) get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	d, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (h *documentHandler) list(c *gin.Context) {
	ids, err := parseIDs(c.QueryArray("ids"))
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	p, ok := pageRequest(c)
	if !ok {
		return
	}
	page, err := h.svc.List(c.Request.Context(), ids, p)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *documentHandler) search(c *gin.Context) {
	f := repository.Filter{
		Status: document.Status(strings.ToUpper(c.Query("status"))),
		Author: strings.TrimSpace(c.Query("author")),
	}
	var err error
	if f.From, err = parseTime(c.Query("from"), false); err != nil {
		badRequest(c, "from: "+err.Error())
		return
	}
	if f.To, err = parseTime(c.Query("to"), true); err != nil {
		badRequest(c, "to: "+err.Error())
		return
	}
	p, ok := pageRequest(c)
	if !ok {
		return
	}
	page, err := h.svc.Search(c.Request.Context(), f, p)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *documentHandler) submit(c *gin.Context) {
	var req service.BatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	results, err := h.svc.SubmitBatch(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, service.ErrInvalidBatch) {
			writeError(c, err)
			return
		}
		logger.Errorf("submit batch [%s]: %v", middleware.GetRequestID(c), err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": codeInternal, "message": err.Error(), "results": results})
		return
	}
	c.JSON(http.StatusOK, results)
}

func (h *documentHandler) approve(c *gin.Context) {
	var req service.BatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	results, err := h.svc.ApproveBatch(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, results)
}

func (h *documentHandler) concurrencyTest(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req service.ConcurrencyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	report, err := h.svc.RunConcurrencyTest(c.Request.Context(), id, req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// report returns an archived run, or a presigned download link with ?link=true.
func (h *documentHandler) report(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	runID, err := uuid.Parse(c.Param("runId"))
	if err != nil {
		badRequest(c, "runId must be a UUID")
		return
	}
	if h.reports == nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, ErrorResponse{Code: codeUnavailable, Message: "report archive is not configured"})
		return
	}
	key := storage.RunKey(id, runID.String())

	if link, _ := strconv.ParseBool(c.Query("link")); link {
		u, err := h.reports.GetPresignedURL(c.Request.Context(), key, reportLinkTTL)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, reportLink{Key: key, URL: u, ExpiresAt: time.Now().UTC().Add(reportLinkTTL)})
		return
	}
	r, err := h.reports.LoadReport(c.Request.Context(), key)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidBatch), errors.Is(err, service.ErrInvalidRequest):
		badRequest(c, err.Error())
	case errors.Is(err, repository.ErrNotFound), errors.Is(err, storage.ErrReportNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, ErrorResponse{Code: codeNotFound, Message: err.Error()})
	default:
		logger.Errorf("%s %s [%s]: %v", c.Request.Method, c.FullPath(), middleware.GetRequestID(c), err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{Code: codeInternal, Message: "internal error"})
	}
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{Code: codeValidation, Message: msg})
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "id must be a positive integer")
		return 0, false
	}
	return id, true
}

// parseIDs accepts both ids=1,2,3 and repeated ids parameters.
func parseIDs(raw []string) ([]int64, error) {
	var ids []int64
	for _, chunk := range raw {
		for _, s := range strings.Split(chunk, ",") {
			s = strings.TrimSpace(s)
			if s == "" {
				continue
			}
			id, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				return nil, errors.New("ids must be integers")
			}
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func pageRequest(c *gin.Context) (repository.PageRequest, bool) {
	var p repository.PageRequest
	var err error
	if v := c.Query("page"); v != "" {
		if p.Page, err = strconv.Atoi(v); err != nil || p.Page < 0 || p.Page > repository.MaxPage {
			badRequest(c, fmt.Sprintf("page must be an integer between 0 and %d", repository.MaxPage))
			return p, false
		}
	}
	if v := c.Query("size"); v != "" {
		if p.Size, err = strconv.Atoi(v); err != nil || p.Size < 1 {
			badRequest(c, "size must be a positive integer")
			return p, false
		}
	}
	return p, true
}

// parseTime accepts RFC3339 or a bare date. A bare upper bound covers the whole day.
func parseTime(v string, endOfDay bool) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return &t, nil
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return nil, errors.New("expected RFC3339 timestamp or YYYY-MM-DD")
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}
