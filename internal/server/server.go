package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"path"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"quiz-report/internal/config"
	"quiz-report/internal/domain"
	"quiz-report/internal/infrastructure/webhook"
	"quiz-report/internal/usecase"
)

const msgMalformedBody = "request body must be a JSON object"

type Generator interface {
	Generate(ctx context.Context, req domain.GenerationRequest) (domain.GenerationResult, int)
}

type History interface {
	Get(id string) (*domain.GenerationRecord, error)
	List(page, pageSize int) (usecase.HistoryPage, error)
}

// ReportFiles resolves a generated report by name for download.
type ReportFiles interface {
	Open(name string) (string, bool)
}

type Deps struct {
	Generator Generator
	History   History
	Files     ReportFiles
	Logger    *zap.Logger
}

type Server struct {
	cfg     config.Config
	gen     Generator
	history History
	files   ReportFiles
	log     *zap.Logger
	engine  *gin.Engine
}

func New(cfg config.Config, d Deps) *Server {
	log := d.Logger
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{
		cfg:     cfg,
		gen:     d.Generator,
		history: d.History,
		files:   d.Files,
		log:     log,
		engine:  gin.New(),
	}
	s.engine.Use(recovery(log), requestID(), accessLog(log), corsFor(cfg.CORSOrigins), httpMetrics())
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) routes() {
	s.engine.POST("/generate-pdf", s.handleGenerate)
	s.engine.POST("/webhook-status", s.handleWebhookStatus)
	s.engine.GET("/generated/*filename", s.handleDownload)
	s.engine.GET("/generations", s.handleListGenerations)
	s.engine.GET("/generations/:id", s.handleGetGeneration)
	s.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// handleGenerate decodes the body as JSON whatever the content type says.
// The request context is detached from client cancellation: once validation
// passes, generation and webhook delivery always run to completion.
func (s *Server) handleGenerate(c *gin.Context) {
	var req domain.GenerationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.log.Warn("Malformed generation request",
			zap.String("request_id", c.GetString(requestIDKey)), zap.Error(err))
		c.JSON(http.StatusBadRequest, domain.Failed("", msgMalformedBody))
		return
	}
	ctx := context.WithoutCancel(c.Request.Context())
	res, status := s.gen.Generate(ctx, req)
	c.JSON(status, res)
}

func (s *Server) handleWebhookStatus(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil || !json.Valid(body) {
		s.err(c, http.StatusBadRequest, "BadRequest", "invalid json")
		return
	}
	fields := []zap.Field{zap.String("payload", string(body))}
	if s.cfg.Webhook.Secret != "" {
		verr := webhook.Verify(s.cfg.Webhook.Secret, c.GetHeader(webhook.SignatureHeader), body)
		fields = append(fields, zap.Bool("signature_valid", verr == nil))
	}
	s.log.Info("Webhook received", fields...)
	c.JSON(http.StatusOK, gin.H{"received": true})
}

func (s *Server) handleDownload(c *gin.Context) {
	name := c.Param("filename")
	p, ok := s.files.Open(name)
	if !ok {
		s.err(c, http.StatusNotFound, "NotFound", "file not found")
		return
	}
	c.FileAttachment(p, path.Base(p))
}

func (s *Server) handleListGenerations(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("pageSize", "20"))
	p, err := s.history.List(page, pageSize)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (s *Server) handleGetGeneration(c *gin.Context) {
	r, err := s.history.Get(c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (s *Server) fail(c *gin.Context, err error) {
	var nf usecase.ErrNotFound
	var br usecase.ErrBadRequest
	switch {
	case errors.As(err, &nf):
		s.err(c, http.StatusNotFound, "NotFound", err.Error())
	case errors.As(err, &br):
		s.err(c, http.StatusBadRequest, "BadRequest", err.Error())
	default:
		s.log.Error("request failed", zap.String("path", c.Request.URL.Path), zap.Error(err))
		s.err(c, http.StatusInternalServerError, "ServerError", "internal server error")
	}
}

func (s *Server) err(c *gin.Context, status int, code, msg string) {
	abortErr(c, status, code, msg)
}

func abortErr(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, gin.H{
		"error": gin.H{
			"code":      code,
			"message":   msg,
			"requestId": c.GetString(requestIDKey),
		},
	})
}
