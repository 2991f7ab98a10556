package domain

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
)

// Score is any non-null JSON value supplied as the quiz score.
type Score struct {
	raw json.RawMessage
}

func NewScore(v any) Score {
	b, err := json.Marshal(v)
	if err != nil || string(b) == "null" {
		return Score{}
	}
	return Score{raw: b}
}

func (s *Score) UnmarshalJSON(b []byte) error {
	t := bytes.TrimSpace(b)
	if len(t) == 0 || string(t) == "null" {
		s.raw = nil
		return nil
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, t); err != nil {
		return err
	}
	s.raw = buf.Bytes()
	return nil
}

func (s Score) MarshalJSON() ([]byte, error) {
	if !s.Present() {
		return []byte("null"), nil
	}
	return s.raw, nil
}

func (s Score) Present() bool {
	return len(s.raw) > 0
}

// String renders the score for display: JSON strings unquoted, anything else verbatim.
func (s Score) String() string {
	if !s.Present() {
		return ""
	}
	if s.raw[0] == '"' {
		var v string
		if err := json.Unmarshal(s.raw, &v); err == nil {
			return v
		}
	}
	return string(s.raw)
}

type GenerationRequest struct {
	UserName    string `json:"user_name" validate:"required"`
	Score       Score  `json:"score"`
	Archetype   string `json:"archetype" validate:"required"`
	Description string `json:"description"`
	WebhookURL  string `json:"webhook_url" validate:"omitempty,http_url"`
}

// GenerationResult is both the HTTP response body and the webhook payload.
type GenerationResult struct {
	UserName string  `json:"user_name"`
	FilePath *string `json:"file_path"`
	Success  bool    `json:"success"`
	Error    *string `json:"error"`
}

func Succeeded(userName, filePath string) GenerationResult {
	return GenerationResult{UserName: userName, FilePath: &filePath, Success: true}
}

func Failed(userName, msg string) GenerationResult {
	return GenerationResult{UserName: userName, Error: &msg}
}

// ArchetypeKey maps an archetype to its asset name stem: "Night Owl" -> "night_owl".
func ArchetypeKey(archetype string) string {
	return strings.ReplaceAll(strings.ToLower(archetype), " ", "_")
}

// ReportFields is what the document renderer draws on the page.
type ReportFields struct {
	UserName    string
	Score       string
	Archetype   string
	Description string
	GeneratedAt time.Time
}
