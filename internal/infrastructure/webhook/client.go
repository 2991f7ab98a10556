package webhook

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	SignatureHeader = "X-Quiz-Signature"
	userAgent       = "quiz-report-webhook/1"
	issuer          = "quiz-report"
)

// DeliveryError is a transport-level failure: no HTTP response was received.
type DeliveryError struct {
	URL string
	Err error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("webhook %s: %v", e.URL, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

type Client struct {
	HTTP    *http.Client
	Timeout time.Duration
	// Secret, when set, signs every body with an HS256 token in SignatureHeader.
	Secret string
}

// PostJSON sends payload once. Any HTTP response, whatever its status, is
// returned without error; only transport failures yield a *DeliveryError.
func (c *Client) PostJSON(ctx context.Context, url string, payload any) (int, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("encode webhook payload: %w", err)
	}
	hc := c.HTTP
	if hc == nil {
		hc = http.DefaultClient
	}
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, &DeliveryError{URL: url, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if c.Secret != "" {
		sig, err := Sign(c.Secret, body, time.Now())
		if err != nil {
			return 0, fmt.Errorf("sign webhook payload: %w", err)
		}
		req.Header.Set(SignatureHeader, sig)
	}

	resp, err := hc.Do(req)
	if err != nil {
		return 0, &DeliveryError{URL: url, Err: err}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	return resp.StatusCode, nil
}

// Sign returns an HS256 token binding the body hash to the signing time.
func Sign(secret string, body []byte, now time.Time) (string, error) {
	sum := sha256.Sum256(body)
	claims := jwt.MapClaims{
		"iss":         issuer,
		"iat":         now.Unix(),
		"exp":         now.Add(5 * time.Minute).Unix(),
		"body_sha256": hex.EncodeToString(sum[:]),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// Verify checks a token produced by Sign against the received body.
func Verify(secret, token string, body []byte) error {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(issuer))
	if err != nil {
		return err
	}
	m, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return fmt.Errorf("unexpected claims type %T", parsed.Claims)
	}
	sum := sha256.Sum256(body)
	if got, _ := m["body_sha256"].(string); got != hex.EncodeToString(sum[:]) {
		return fmt.Errorf("body hash mismatch")
	}
	return nil
}
