package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"pharmacy-service/internal/apperr"
	"pharmacy-service/internal/models"
	"pharmacy-service/internal/service"
	"pharmacy-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const (
	ctxUsername  = "username"
	ctxSessionID = "session_id"
)

// ReadinessChecker reports whether the database is reachable and bootstrapped
type ReadinessChecker interface {
	Ping(ctx context.Context) error
	VerifyStockGuards(ctx context.Context) error
}

// Handler contains HTTP handlers
type Handler struct {
	recordService  *service.RecordService
	accountService *service.AccountService
	readiness      ReadinessChecker
	logger         *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(
	recordService *service.RecordService,
	accountService *service.AccountService,
	readiness ReadinessChecker,
) *Handler {
	return &Handler{
		recordService:  recordService,
		accountService: accountService,
		readiness:      readiness,
		logger:         util.GetLogger(),
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(h.requestLogger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.POST("/accounts", h.createAccount)
		v1.POST("/sessions", h.login)

		authed := v1.Group("", h.authMiddleware())
		authed.DELETE("/sessions", h.logout)

		authed.GET("/records/:entity", h.listRecords)
		authed.POST("/records/:entity", h.insertRecord)
		authed.GET("/records/:entity/:id", h.getRecord)
		authed.PUT("/records/:entity/:id", h.updateRecord)
		authed.DELETE("/records/:entity/:id", h.deleteRecord)
		authed.GET("/records/:entity/:id/check", h.checkID)

		authed.GET("/reports/customers/:id/history", h.customerHistory)
		authed.GET("/reports/near-expiry", h.nearExpiry)
		authed.GET("/reports/low-stock", h.lowStock)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck reports ready once the database answers and the stock
// trigger and check constraint are installed
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := h.readiness.Ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
		return
	}
	if err := h.readiness.VerifyStockGuards(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not migrated", "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

func (h *Handler) createAccount(c *gin.Context) {
	var req service.Credentials
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	if err := h.accountService.CreateAccount(c.Request.Context(), req.Username, req.Password); err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"username": strings.TrimSpace(req.Username)})
}

func (h *Handler) login(c *gin.Context) {
	var req service.Credentials
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	resp, err := h.accountService.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

func (h *Handler) logout(c *gin.Context) {
	if err := h.accountService.Logout(c.Request.Context(), bearerToken(c)); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type recordRequest struct {
	Fields   map[string]string `json:"fields" binding:"required"`
	Discount string            `json:"discount,omitempty"`
}

func (h *Handler) insertRecord(c *gin.Context) {
	entity, ok := entityParam(c)
	if !ok {
		return
	}

	var req recordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	res, err := h.recordService.Insert(c.Request.Context(), &service.ActionRequest{
		Entity:   entity,
		Fields:   req.Fields,
		Discount: req.Discount,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, res)
}

func (h *Handler) updateRecord(c *gin.Context) {
	entity, ok := entityParam(c)
	if !ok {
		return
	}

	var req recordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	key := entity.KeyColumn()
	id := strings.TrimSpace(c.Param("id"))
	if bodyID, ok := req.Fields[key]; ok && strings.TrimSpace(bodyID) != id {
		h.respondError(c, apperr.Format(key, "%s cannot be changed by an update", key))
		return
	}
	req.Fields[key] = id

	res, err := h.recordService.Update(c.Request.Context(), &service.ActionRequest{
		Entity:   entity,
		Fields:   req.Fields,
		Discount: req.Discount,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}

func (h *Handler) deleteRecord(c *gin.Context) {
	entity, ok := entityParam(c)
	if !ok {
		return
	}

	res, err := h.recordService.Delete(c.Request.Context(), entity, c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}

func (h *Handler) getRecord(c *gin.Context) {
	entity, ok := entityParam(c)
	if !ok {
		return
	}

	rec, err := h.recordService.Get(c.Request.Context(), entity, c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, rec)
}

func (h *Handler) listRecords(c *gin.Context) {
	entity, ok := entityParam(c)
	if !ok {
		return
	}

	rows, err := h.recordService.List(c.Request.Context(), entity)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{entity.Collection(): rows})
}

func (h *Handler) checkID(c *gin.Context) {
	entity, ok := entityParam(c)
	if !ok {
		return
	}

	mode := c.DefaultQuery("mode", service.CheckFormat)
	if err := h.recordService.CheckID(c.Request.Context(), entity, c.Param("id"), mode); err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"valid": true, "mode": mode})
}

func (h *Handler) customerHistory(c *gin.Context) {
	rows, err := h.recordService.CustomerHistory(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"customer_id": c.Param("id"), "history": rows})
}

func (h *Handler) nearExpiry(c *gin.Context) {
	days, ok := intQuery(c, "days")
	if !ok {
		return
	}

	rows, err := h.recordService.NearExpiry(c.Request.Context(), days)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"medicines": rows})
}

func (h *Handler) lowStock(c *gin.Context) {
	threshold, ok := intQuery(c, "threshold")
	if !ok {
		return
	}

	rows, err := h.recordService.LowStock(c.Request.Context(), threshold)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"medicines": rows})
}

func entityParam(c *gin.Context) (models.Entity, bool) {
	entity, ok := models.ParseEntity(c.Param("entity"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Unknown entity " + strconv.Quote(c.Param("entity")),
			"code":  apperr.KindNotFound.String(),
		})
		return "", false
	}
	return entity, true
}

func intQuery(c *gin.Context, name string) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": name + " must be an integer",
			"code":  apperr.KindFormat.String(),
			"field": name,
		})
		return 0, false
	}
	return n, true
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":   "Invalid request body",
		"details": err.Error(),
		"code":    apperr.KindFormat.String(),
	})
}

// statusFor maps an error kind to its HTTP status
func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindFormat:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindDuplicate, apperr.KindStockInsufficient:
		return http.StatusConflict
	case apperr.KindConstraint:
		return http.StatusUnprocessableEntity
	case apperr.KindUnauthorized:
		return http.StatusUnauthorized
	case apperr.KindConnection:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) respondError(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	status := statusFor(kind)

	body := gin.H{
		"error": err.Error(),
		"code":  kind.String(),
	}
	if field := apperr.FieldOf(err); field != "" {
		body["field"] = field
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err))
		if kind == apperr.KindInternal {
			body["error"] = "Internal error"
		}
	}

	c.AbortWithStatusJSON(status, body)
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}

// authMiddleware requires a bearer token bound to a live session
func (h *Handler) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			h.respondError(c, apperr.New(apperr.KindUnauthorized, "", "missing bearer token"))
			return
		}

		sess, err := h.accountService.Authenticate(c.Request.Context(), token)
		if err != nil {
			h.respondError(c, err)
			return
		}

		c.Set(ctxUsername, sess.Username)
		c.Set(ctxSessionID, sess.ID)
		c.Next()
	}
}

// requestLogger writes one structured line per request
func (h *Handler) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		h.logger.Info("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("username", c.GetString(ctxUsername)))
	}
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
