package domain

import (
	"errors"
	"time"
)

// ErrRecordNotFound is returned by history stores for an unknown id.
var ErrRecordNotFound = errors.New("generation record not found")

type Status string

const (
	StatusDone   Status = "done"
	StatusFailed Status = "failed"
)

// GenerationRecord is the history entry kept for every generation that passed validation.
type GenerationRecord struct {
	ID         string    `json:"id"`
	UserName   string    `json:"userName"`
	Archetype  string    `json:"archetype"`
	Score      string    `json:"score"`
	Status     Status    `json:"status"`
	FilePath   string    `json:"filePath,omitempty"`
	ErrorMsg   string    `json:"errorMsg,omitempty"`
	Attempts   int       `json:"attempts"`
	WebhookURL string    `json:"webhookUrl,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}
