// Package rewrite is the HTTP client for the remote rewrite service. Every
// response is classified exactly once into an Outcome; the client never
// retries on its own, a second hotkey press is the retry mechanism.
package rewrite

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"redraftd/internal/logging"
	"redraftd/internal/version"
)

// Error codes the service returns in the error body.
const (
	codeAuthInvalid = "DESKTOP_AUTH_INVALID"
	codeUsageLimit  = "USAGE_LIMIT_EXCEEDED"
	codeRateLimit   = "RATE_LIMIT_EXCEEDED"
	codeValidation  = "VALIDATION_ERROR"
)

// authScheme tags the Authorization header so the service can distinguish
// desktop clients from web sessions.
const authScheme = "Desktop"

// Credentials is the identity pair attached to every request.
type Credentials struct {
	UserID string
	Token  string
}

// Client talks to the rewrite service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        *logging.Logger
}

// NewClient builds a client for the service at baseURL.
func NewClient(baseURL string, timeout time.Duration, log *logging.Logger) *Client {
	if log == nil {
		log = logging.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		log:        log,
	}
}

type rewriteRequest struct {
	Text string `json:"text"`
	Tone string `json:"tone"`
}

type successBody struct {
	Text     string `json:"text"`
	Metadata struct {
		ProcessingTimeMs int    `json:"processingTimeMs"`
		Timestamp        string `json:"timestamp"`
		RequestID        string `json:"requestId"`
		Usage            *Usage `json:"usage"`
		Plan             *Plan  `json:"plan"`
	} `json:"metadata"`
}

type errorBody struct {
	Error     string          `json:"error"`
	Code      string          `json:"code"`
	Timestamp string          `json:"timestamp"`
	RequestID string          `json:"requestId"`
	Details   json.RawMessage `json:"details"`
}

// Rewrite submits text for rewriting in the given tone.
func (c *Client) Rewrite(ctx context.Context, text, tone string, creds Credentials) Outcome {
	body, err := json.Marshal(rewriteRequest{Text: text, Tone: tone})
	if err != nil {
		return Outcome{Kind: KindUnknown, Raw: err.Error()}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/rewrite", bytes.NewReader(body))
	if err != nil {
		return Outcome{Kind: KindUnknown, Raw: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")
	c.setIdentity(req, creds)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Warn("rewrite request failed", "error", err)
		return Outcome{Kind: KindNetworkError, Err: err}
	}
	defer resp.Body.Close()

	outcome := c.classify(resp)
	c.log.Info("rewrite request classified",
		"status", resp.StatusCode,
		"outcome", outcome.Kind.String(),
		"elapsed_ms", time.Since(start).Milliseconds())
	return outcome
}

// Subscription fetches the user's current usage and plan. The response runs
// through the same classification as a rewrite; KindSuccess carries Usage
// and Plan with an empty Text.
func (c *Client) Subscription(ctx context.Context, creds Credentials) Outcome {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/api/user/subscription", nil)
	if err != nil {
		return Outcome{Kind: KindUnknown, Raw: err.Error()}
	}
	c.setIdentity(req, creds)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Outcome{Kind: KindNetworkError, Err: err}
	}
	defer resp.Body.Close()

	return c.classify(resp)
}

func (c *Client) setIdentity(req *http.Request, creds Credentials) {
	req.Header.Set("Authorization",
		fmt.Sprintf("%s %s:%s", authScheme, creds.UserID, creds.Token))
	req.Header.Set("User-Agent", version.UserAgent())
}

// classify maps one response to one Outcome. Classification keys off the
// error body's code, not the HTTP status, because the service versions its
// codes independently of status mapping.
func (c *Client) classify(resp *http.Response) Outcome {
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Outcome{Kind: KindNetworkError, Err: err}
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		var ok successBody
		if err := json.Unmarshal(raw, &ok); err != nil {
			return Outcome{Kind: KindUnknown, Raw: string(raw)}
		}
		return Outcome{
			Kind:  KindSuccess,
			Text:  ok.Text,
			Usage: ok.Metadata.Usage,
			Plan:  ok.Metadata.Plan,
		}
	}

	var eb errorBody
	if err := json.Unmarshal(raw, &eb); err != nil {
		return Outcome{Kind: KindUnknown, Raw: string(raw)}
	}

	switch eb.Code {
	case codeAuthInvalid:
		return Outcome{Kind: KindAuthExpired}
	case codeUsageLimit:
		return Outcome{Kind: KindQuotaExceeded, PlanName: quotaPlan(eb.Details)}
	case codeRateLimit:
		return Outcome{Kind: KindRateLimited, RetryAfter: retryAfter(eb.Details, resp.Header)}
	case codeValidation:
		return Outcome{Kind: KindValidationError, Message: validationMessage(eb.Details, eb.Error)}
	default:
		return Outcome{Kind: KindUnknown, Code: eb.Code, Raw: string(raw)}
	}
}

// retryAfter prefers the retryAfter field in the error details and falls
// back to the Retry-After header, which may be integer seconds or an HTTP
// date.
func retryAfter(details json.RawMessage, header http.Header) int {
	var d struct {
		RetryAfter int `json:"retryAfter"`
	}
	if len(details) > 0 && json.Unmarshal(details, &d) == nil && d.RetryAfter > 0 {
		return d.RetryAfter
	}

	value := header.Get("Retry-After")
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil && secs >= 0 {
		return secs
	}
	if at, err := http.ParseTime(value); err == nil {
		if secs := int(time.Until(at).Seconds()); secs > 0 {
			return secs
		}
	}
	return 0
}

func quotaPlan(details json.RawMessage) string {
	var d struct {
		Plan string `json:"plan"`
	}
	if len(details) > 0 && json.Unmarshal(details, &d) == nil {
		return d.Plan
	}
	return ""
}

// validationMessage surfaces the first field message; the full list is too
// much for a transient notification.
func validationMessage(details json.RawMessage, fallback string) string {
	var fields []struct {
		Field   string `json:"field"`
		Message string `json:"message"`
	}
	if len(details) > 0 && json.Unmarshal(details, &fields) == nil && len(fields) > 0 {
		return fields[0].Message
	}
	return fallback
}
