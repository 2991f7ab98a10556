package usecase

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"quiz-report/internal/domain"
	"quiz-report/internal/infrastructure/webhook"
	"quiz-report/internal/metrics"
)

type WebhookPoster interface {
	PostJSON(ctx context.Context, url string, payload any) (int, error)
}

// WebhookNotifier delivers results best-effort. Receiving any HTTP response
// ends delivery; only transport failures are retried. Nothing is reported
// back to the caller.
type WebhookNotifier struct {
	Poster WebhookPoster
	Logger *zap.Logger
	Retry  int
	// Backoff is multiplied by the attempt number after each failed attempt.
	Backoff time.Duration
	Sleep   func(time.Duration)
}

func (n *WebhookNotifier) Notify(ctx context.Context, url string, payload domain.GenerationResult) {
	log := n.Logger
	if log == nil {
		log = zap.NewNop()
	}
	retry := n.Retry
	if retry < 1 {
		retry = 1
	}

	for attempt := 1; attempt <= retry; attempt++ {
		status, err := n.Poster.PostJSON(ctx, url, payload)
		if err == nil {
			metrics.WebhookAttemptsTotal.WithLabelValues("delivered").Inc()
			log.Info("Webhook call completed",
				zap.String("url", url), zap.Int("status", status), zap.Int("attempt", attempt))
			return
		}
		var de *webhook.DeliveryError
		if !errors.As(err, &de) {
			log.Error("Webhook call abandoned", zap.String("url", url), zap.Int("attempt", attempt), zap.Error(err))
			return
		}
		metrics.WebhookAttemptsTotal.WithLabelValues("transport_error").Inc()
		log.Warn("Webhook attempt failed", zap.String("url", url), zap.Int("attempt", attempt), zap.Error(err))
		n.sleep(time.Duration(attempt) * n.Backoff)
	}

	metrics.WebhookExhaustedTotal.Inc()
	log.Error("Webhook delivery gave up", zap.String("url", url), zap.Int("attempts", retry))
}

func (n *WebhookNotifier) sleep(d time.Duration) {
	if d <= 0 {
		return
	}
	if n.Sleep != nil {
		n.Sleep(d)
		return
	}
	time.Sleep(d)
}
