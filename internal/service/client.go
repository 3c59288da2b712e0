// Package service talks to the term extraction and question answering
// backend.
package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dgallion1/insurspeak/internal/domain"
)

const (
	opProcessDocument = "process document"
	opAskQuestion     = "ask question"

	maxResponseBytes = 32 << 20
)

// Client calls the backend's two endpoints.
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        *zap.Logger
	maxRetries int
	backoff    func(attempt int) time.Duration
	stats      map[string]*callRecorder
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithMaxRetries sets how many times a retryable failure is retried.
func WithMaxRetries(n int) Option {
	return func(c *Client) {
		if n >= 0 {
			c.maxRetries = n
		}
	}
}

// WithBackoff sets the delay before retry attempt n (0-indexed).
func WithBackoff(fn func(attempt int) time.Duration) Option {
	return func(c *Client) { c.backoff = fn }
}

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) Option {
	return func(c *Client) { c.log = log }
}

func NewClient(baseURL string, timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		log:        zap.NewNop(),
		maxRetries: DefaultMaxRetries,
		backoff:    Backoff,
		stats: map[string]*callRecorder{
			opProcessDocument: newCallRecorder(),
			opAskQuestion:     newCallRecorder(),
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.With(zap.String("component", "service_client"))
	return c
}

// ProcessDocument uploads a file or pasted text for term extraction.
func (c *Client) ProcessDocument(ctx context.Context, src domain.Source, insuranceType domain.InsuranceType) (*domain.ProcessedDocument, error) {
	if err := src.Validate(); err != nil {
		return nil, err
	}

	body, contentType, err := encodeForm(func(w *multipart.Writer) error {
		if len(src.FileBytes) > 0 {
			name := src.Filename
			if name == "" {
				name = "document.pdf"
			}
			part, err := w.CreateFormFile("file", name)
			if err != nil {
				return err
			}
			if _, err := part.Write(src.FileBytes); err != nil {
				return err
			}
		} else if err := w.WriteField("text_content", src.PastedText); err != nil {
			return err
		}
		return w.WriteField("insurance_type", string(insuranceType))
	})
	if err != nil {
		return nil, fmt.Errorf("encode document form: %w", err)
	}

	raw, err := c.post(ctx, opProcessDocument, "/process-document", body, contentType)
	var doc *domain.ProcessedDocument
	if err == nil {
		doc, err = decodeProcessed(raw)
	}
	c.stats[opProcessDocument].finish(ctx, err)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// AskQuestion asks a question about documentText.
func (c *Client) AskQuestion(ctx context.Context, question, documentText string, insuranceType domain.InsuranceType) (*domain.Answer, error) {
	body, contentType, err := encodeForm(func(w *multipart.Writer) error {
		if err := w.WriteField("question", question); err != nil {
			return err
		}
		if err := w.WriteField("document_text", documentText); err != nil {
			return err
		}
		return w.WriteField("insurance_type", string(insuranceType))
	})
	if err != nil {
		return nil, fmt.Errorf("encode question form: %w", err)
	}

	raw, err := c.post(ctx, opAskQuestion, "/ask-question", body, contentType)
	var ans *domain.Answer
	if err == nil {
		ans, err = decodeAnswer(raw)
	}
	c.stats[opAskQuestion].finish(ctx, err)
	if err != nil {
		return nil, err
	}
	return ans, nil
}

func decodeAnswer(raw []byte) (*domain.Answer, error) {
	var resp answerResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, &domain.ServiceError{Op: opAskQuestion, StatusCode: http.StatusOK, Detail: "malformed answer from server"}
	}
	return &domain.Answer{Question: resp.Question, Answer: resp.Answer, QuestionType: resp.QuestionType}, nil
}

// Stats returns call outcomes and recent latency keyed by operation.
func (c *Client) Stats() map[string]CallStats {
	out := make(map[string]CallStats, len(c.stats))
	for op, r := range c.stats {
		out[op] = r.snapshot()
	}
	return out
}

// Close releases idle connections.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}

// post sends a prepared multipart body, retrying transient failures.
func (c *Client) post(ctx context.Context, op, path string, body []byte, contentType string) ([]byte, error) {
	log := c.log.With(zap.String("op", op))
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			wait := c.backoff(attempt - 1)
			log.Warn("retrying request", zap.Int("attempt", attempt), zap.Duration("wait", wait), zap.Error(lastErr))
			select {
			case <-ctx.Done():
				return nil, &domain.TransportError{Op: op, Err: ctx.Err()}
			case <-time.After(wait):
			}
		}

		start := time.Now()
		raw, err := c.do(ctx, op, path, body, contentType)
		c.stats[op].attempt(time.Since(start), attempt > 0)
		if err == nil {
			return raw, nil
		}
		lastErr = err
		if !IsRetryable(err) || ctx.Err() != nil {
			break
		}
	}
	return nil, lastErr
}

func (c *Client) do(ctx context.Context, op, path string, body []byte, contentType string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &domain.TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &domain.TransportError{Op: op, Err: fmt.Errorf("read response: %w", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &domain.ServiceError{Op: op, StatusCode: resp.StatusCode, Detail: parseDetail(raw)}
	}
	return raw, nil
}

func encodeForm(write func(*multipart.Writer) error) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := write(w); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

// parseDetail extracts the server message from an error body. The detail
// is either a string or a list of validation issues with "msg" fields.
func parseDetail(raw []byte) string {
	var body struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(raw, &body); err != nil || len(body.Detail) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(body.Detail, &s); err == nil {
		return strings.TrimSpace(s)
	}

	var issues []struct {
		Loc []any  `json:"loc"`
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(body.Detail, &issues); err == nil {
		var msgs []string
		for _, is := range issues {
			if is.Msg == "" {
				continue
			}
			if field := lastLoc(is.Loc); field != "" {
				msgs = append(msgs, field+": "+is.Msg)
			} else {
				msgs = append(msgs, is.Msg)
			}
		}
		return strings.Join(msgs, "; ")
	}
	return ""
}

func lastLoc(loc []any) string {
	if len(loc) == 0 {
		return ""
	}
	if s, ok := loc[len(loc)-1].(string); ok {
		return s
	}
	return ""
}
