package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"quiz-report/internal/domain"
	"quiz-report/internal/filename"
	"quiz-report/internal/metrics"
)

const (
	msgRequired   = "user_name, score and archetype are required"
	msgWebhookURL = "webhook_url must be a valid http(s) URL"
)

type Renderer interface {
	Render(ctx context.Context, f domain.ReportFields, imagePath string) ([]byte, error)
}

type ReportWriter interface {
	Write(name string, data []byte) (string, error)
}

type ImageLocator interface {
	Lookup(archetype string) (string, bool)
}

type RecordRepo interface {
	Put(*domain.GenerationRecord) error
	Get(id string) (*domain.GenerationRecord, error)
	List(page, pageSize int) ([]domain.GenerationRecord, int, error)
}

type Notifier interface {
	Notify(ctx context.Context, url string, payload domain.GenerationResult)
}

// GenerationService runs one report request start to finish on the
// caller's goroutine: validate, render with retries, persist, notify.
type GenerationService struct {
	Renderer Renderer
	Reports  ReportWriter
	Images   ImageLocator
	Records  RecordRepo
	Notifier Notifier
	Logger   *zap.Logger

	MaxRetries int
	// Backoff is the unit of the linear delay after a failed attempt:
	// attempt n waits n*Backoff.
	Backoff time.Duration

	Now   func() time.Time
	Sleep func(time.Duration)
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Generate returns the result body and the HTTP status it should be sent with.
func (s *GenerationService) Generate(ctx context.Context, req domain.GenerationRequest) (domain.GenerationResult, int) {
	log := s.logger()
	if err := Validate(req); err != nil {
		log.Warn("Generation request rejected", zap.String("user_name", req.UserName), zap.Error(err))
		metrics.GenerationsTotal.WithLabelValues("invalid").Inc()
		return domain.Failed(req.UserName, err.Error()), http.StatusBadRequest
	}

	started := s.now()
	name := filename.ForReport(req.UserName, req.Archetype, started)
	imagePath := ""
	if s.Images != nil {
		imagePath, _ = s.Images.Lookup(req.Archetype)
	}
	fields := domain.ReportFields{
		UserName:    req.UserName,
		Score:       req.Score.String(),
		Archetype:   req.Archetype,
		Description: req.Description,
		GeneratedAt: started,
	}

	path, attempts, err := s.renderWithRetry(ctx, name, fields, imagePath)
	metrics.GenerationDuration.Observe(time.Since(started).Seconds())

	var res domain.GenerationResult
	status := http.StatusOK
	if err != nil {
		res = domain.Failed(req.UserName, err.Error())
		status = http.StatusInternalServerError
		metrics.GenerationsTotal.WithLabelValues("failed").Inc()
		log.Error("PDF generation failed", zap.String("file", name), zap.Int("attempts", attempts), zap.Error(err))
	} else {
		res = domain.Succeeded(req.UserName, path)
		metrics.GenerationsTotal.WithLabelValues("success").Inc()
	}

	s.record(req, res, attempts, started)

	if req.WebhookURL != "" && s.Notifier != nil {
		s.Notifier.Notify(ctx, req.WebhookURL, res)
	}
	return res, status
}

// Validate enforces the request contract. Blank required fields win over a
// malformed webhook URL.
func Validate(req domain.GenerationRequest) error {
	err := validate.Struct(req)
	var verrs validator.ValidationErrors
	errors.As(err, &verrs)
	if !req.Score.Present() || hasTag(verrs, "required") {
		return ErrBadRequest(msgRequired)
	}
	if hasTag(verrs, "http_url") {
		return ErrBadRequest(msgWebhookURL)
	}
	if err != nil {
		return ErrBadRequest(err.Error())
	}
	return nil
}

func hasTag(verrs validator.ValidationErrors, tag string) bool {
	for _, fe := range verrs {
		if fe.Tag() == tag {
			return true
		}
	}
	return false
}

// renderWithRetry makes up to MaxRetries render-and-write attempts and
// stops at the first success. It reports the attempts made and, on
// exhaustion, the last attempt's error.
func (s *GenerationService) renderWithRetry(ctx context.Context, name string, f domain.ReportFields, imagePath string) (string, int, error) {
	log := s.logger()
	limit := s.maxRetries()
	var lastErr error
	for attempt := 1; attempt <= limit; attempt++ {
		path, err := s.attempt(ctx, name, f, imagePath)
		if err == nil {
			metrics.RenderAttemptsTotal.WithLabelValues("success").Inc()
			log.Info("PDF generated", zap.String("path", path), zap.Int("attempt", attempt))
			return path, attempt, nil
		}
		lastErr = err
		metrics.RenderAttemptsTotal.WithLabelValues("failure").Inc()
		log.Error("Generation attempt failed", zap.Int("attempt", attempt), zap.Error(err))
		s.sleep(time.Duration(attempt) * s.Backoff)
	}
	return "", limit, lastErr
}

func (s *GenerationService) attempt(ctx context.Context, name string, f domain.ReportFields, imagePath string) (string, error) {
	data, err := s.Renderer.Render(ctx, f, imagePath)
	if err != nil {
		return "", err
	}
	if len(data) == 0 {
		return "", errors.New("renderer returned an empty document")
	}
	path, err := s.Reports.Write(name, data)
	if err != nil {
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	return path, nil
}

func (s *GenerationService) record(req domain.GenerationRequest, res domain.GenerationResult, attempts int, at time.Time) {
	if s.Records == nil {
		return
	}
	r := &domain.GenerationRecord{
		ID:         uuid.NewString(),
		UserName:   req.UserName,
		Archetype:  req.Archetype,
		Score:      req.Score.String(),
		Status:     domain.StatusDone,
		Attempts:   attempts,
		WebhookURL: req.WebhookURL,
		CreatedAt:  at.UTC(),
	}
	if res.FilePath != nil {
		r.FilePath = *res.FilePath
	}
	if res.Error != nil {
		r.Status = domain.StatusFailed
		r.ErrorMsg = *res.Error
	}
	if err := s.Records.Put(r); err != nil {
		s.logger().Warn("Could not record generation", zap.String("id", r.ID), zap.Error(err))
	}
}

func (s *GenerationService) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}

func (s *GenerationService) maxRetries() int {
	if s.MaxRetries < 1 {
		return 1
	}
	return s.MaxRetries
}

func (s *GenerationService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *GenerationService) sleep(d time.Duration) {
	if d <= 0 {
		return
	}
	if s.Sleep != nil {
		s.Sleep(d)
		return
	}
	time.Sleep(d)
}
