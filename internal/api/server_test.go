package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/insurspeak/internal/config"
	"github.com/dgallion1/insurspeak/internal/domain"
	"github.com/dgallion1/insurspeak/internal/service"
)

const policyText = "The deductible is $500."

type fakeBackend struct {
	mu      sync.Mutex
	sources []domain.Source
	types   []domain.InsuranceType
	failDoc error
	failAsk error
}

func (f *fakeBackend) ProcessDocument(_ context.Context, src domain.Source, t domain.InsuranceType) (*domain.ProcessedDocument, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sources = append(f.sources, src)
	f.types = append(f.types, t)
	if f.failDoc != nil {
		return nil, f.failDoc
	}
	return &domain.ProcessedDocument{
		Text: policyText,
		Terms: []domain.TermAnnotation{
			{Term: "deductible", Category: "payment", StartIndex: 4, EndIndex: 14, Explanation: "What you pay before coverage starts.", Implications: "You pay the first $500."},
			{Term: "$500", Category: "cost-sharing", StartIndex: 18, EndIndex: 22, Explanation: "The amount."},
		},
		InsuranceType: string(t),
	}, nil
}

func (f *fakeBackend) AskQuestion(_ context.Context, q, text string, _ domain.InsuranceType) (*domain.Answer, error) {
	if f.failAsk != nil {
		return nil, f.failAsk
	}
	return &domain.Answer{Question: q, Answer: "Based on: " + text, QuestionType: "cost"}, nil
}

func (f *fakeBackend) Stats() map[string]service.CallStats {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := int64(len(f.sources))
	return map[string]service.CallStats{"process document": {Calls: n, Succeeded: n}}
}

func (f *fakeBackend) lastType() domain.InsuranceType {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.types[len(f.types)-1]
}

func (f *fakeBackend) lastSource() domain.Source {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sources[len(f.sources)-1]
}

type testClient struct {
	t    *testing.T
	base string
	http *http.Client
}

func newTestServer(t *testing.T, backend Backend) (*httptest.Server, func() *testClient) {
	t.Helper()
	cfg := config.Config{MaxUploadBytes: 1 << 20, SessionTTL: time.Hour, DefaultInsuranceType: domain.InsuranceHealth}
	ts := httptest.NewServer(NewServer(backend, nil, cfg))
	t.Cleanup(ts.Close)
	return ts, func() *testClient {
		jar, err := cookiejar.New(nil)
		require.NoError(t, err)
		return &testClient{t: t, base: ts.URL, http: &http.Client{Jar: jar}}
	}
}

// postJSON submits a form asking for a JSON reply.
func (c *testClient) postJSON(path string, form url.Values) (int, []byte) {
	c.t.Helper()
	req, err := http.NewRequest(http.MethodPost, c.base+path, strings.NewReader(form.Encode()))
	require.NoError(c.t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	return c.do(req)
}

func (c *testClient) do(req *http.Request) (int, []byte) {
	c.t.Helper()
	resp, err := c.http.Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(c.t, err)
	return resp.StatusCode, body
}

func (c *testClient) get(path string) (int, []byte) {
	c.t.Helper()
	req, err := http.NewRequest(http.MethodGet, c.base+path, nil)
	require.NoError(c.t, err)
	return c.do(req)
}

func (c *testClient) state() stateResponse {
	c.t.Helper()
	code, body := c.get("/api/state")
	require.Equal(c.t, http.StatusOK, code)
	var st stateResponse
	require.NoError(c.t, json.Unmarshal(body, &st))
	return st
}

func (c *testClient) submitText(text string) {
	c.t.Helper()
	code, body := c.postJSON("/document", url.Values{"text_content": {text}})
	require.Equal(c.t, http.StatusOK, code, string(body))
}

func errorMessage(t *testing.T, body []byte) string {
	t.Helper()
	var e map[string]string
	require.NoError(t, json.Unmarshal(body, &e))
	return e["error"]
}

func TestHealth(t *testing.T) {
	_, client := newTestServer(t, &fakeBackend{})
	code, body := client().get("/health")
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))
}

func TestSessionCookie(t *testing.T) {
	ts, client := newTestServer(t, &fakeBackend{})
	c := client()

	resp, err := c.http.Get(ts.URL + "/api/state")
	require.NoError(t, err)
	resp.Body.Close()
	cookies := resp.Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, sessionCookie, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)

	resp, err = c.http.Get(ts.URL + "/api/state")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Empty(t, resp.Cookies(), "existing session is reused")

	// A forged or expired id gets a fresh session.
	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/api/state", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookie, Value: "not-a-uuid"})
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Len(t, resp.Cookies(), 1)
	assert.NotEqual(t, "not-a-uuid", resp.Cookies()[0].Value)
}

func TestSubmitPastedText(t *testing.T) {
	backend := &fakeBackend{}
	_, client := newTestServer(t, backend)
	c := client()

	code, body := c.postJSON("/document", url.Values{"text_content": {policyText}, "insurance_type": {"life"}})
	require.Equal(t, http.StatusOK, code, string(body))

	assert.Equal(t, policyText, backend.lastSource().PastedText)
	assert.Equal(t, domain.InsuranceLife, backend.lastType())

	var st stateResponse
	require.NoError(t, json.Unmarshal(body, &st))
	assert.Equal(t, domain.IngestionReady, st.Document.State)
	assert.Equal(t, domain.InsuranceLife, st.Document.InsuranceType)
	assert.NotNil(t, st.Document.ProcessedAt)
	require.Len(t, st.Document.Segments, 5)

	var texts []string
	for _, seg := range st.Document.Segments {
		texts = append(texts, seg.Text)
	}
	assert.Equal(t, []string{"The ", "deductible", " is ", "$500", "."}, texts)
	assert.Equal(t, "deductible", st.Document.Segments[1].Term)
	assert.Equal(t, domain.SegmentPlain, st.Document.Segments[2].Kind)
}

func TestSubmitFileUpload(t *testing.T) {
	backend := &fakeBackend{}
	ts, client := newTestServer(t, backend)
	c := client()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "summary.md")
	require.NoError(t, err)
	_, _ = fw.Write([]byte("# Deductible\n\nThe deductible is $500.\n"))
	require.NoError(t, mw.WriteField("insurance_type", "disability"))
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, ts.URL+"/document", &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")
	code, body := c.do(req)
	require.Equal(t, http.StatusOK, code, string(body))

	src := backend.lastSource()
	assert.Empty(t, src.FileBytes)
	assert.Equal(t, "Deductible\n\nThe deductible is $500.", src.PastedText)
	assert.Equal(t, domain.InsuranceDisability, backend.lastType())
	assert.Equal(t, "summary.md", c.state().Document.Name)
}

func TestSubmitValidation(t *testing.T) {
	tests := []struct {
		name string
		form url.Values
		want string
	}{
		{"nothing", url.Values{}, "Please upload a file or paste document text."},
		{"blank text", url.Values{"text_content": {"  \n "}}, "Please upload a file or paste document text."},
		{"unknown type", url.Values{"text_content": {policyText}, "insurance_type": {"auto"}}, `unknown insurance type "auto"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := &fakeBackend{}
			_, client := newTestServer(t, backend)
			c := client()

			code, body := c.postJSON("/document", tt.form)
			assert.Equal(t, http.StatusBadRequest, code)
			assert.Equal(t, tt.want, errorMessage(t, body))
			assert.Empty(t, backend.sources)
			assert.Equal(t, domain.IngestionIdle, c.state().Document.State)
		})
	}
}

func TestSubmitFileAndText(t *testing.T) {
	backend := &fakeBackend{}
	ts, client := newTestServer(t, backend)
	c := client()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, _ := mw.CreateFormFile("file", "notes.txt")
	_, _ = fw.Write([]byte("file text"))
	_ = mw.WriteField("text_content", "pasted text")
	require.NoError(t, mw.Close())

	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/document", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")
	code, body := c.do(req)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Provide either a file or pasted text, not both.", errorMessage(t, body))
	assert.Empty(t, backend.sources)
}

func TestSubmitBackendFailure(t *testing.T) {
	backend := &fakeBackend{failDoc: &domain.TransportError{Op: "process document", Err: errors.New("connection refused")}}
	_, client := newTestServer(t, backend)
	c := client()

	code, body := c.postJSON("/document", url.Values{"text_content": {policyText}})
	assert.Equal(t, http.StatusBadGateway, code)
	assert.Equal(t, "No response from server. Please check your connection.", errorMessage(t, body))

	st := c.state()
	assert.Equal(t, domain.IngestionFailed, st.Document.State)
	assert.Equal(t, "No response from server. Please check your connection.", st.Document.Error)
}

func TestTermSelection(t *testing.T) {
	_, client := newTestServer(t, &fakeBackend{})
	c := client()
	c.submitText(policyText)

	code, body := c.postJSON("/terms/4-14", nil)
	require.Equal(t, http.StatusOK, code, string(body))
	st := c.state()
	require.NotNil(t, st.Selection)
	assert.Equal(t, "deductible", st.Selection.Term)

	// Switching terms replaces the open one.
	c.postJSON("/terms/18-22", nil)
	require.NotNil(t, c.state().Selection)
	assert.Equal(t, "$500", c.state().Selection.Term)

	// Activating the open term again closes it.
	c.postJSON("/terms/18-22", nil)
	assert.Nil(t, c.state().Selection)

	code, body = c.postJSON("/terms/0-4", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "No highlighted term at that position.", errorMessage(t, body))

	c.postJSON("/terms/4-14", nil)
	c.postJSON("/terms/dismiss", nil)
	assert.Nil(t, c.state().Selection)

	c.postJSON("/terms/4-14", nil)
	c.postJSON("/document/reset", nil)
	st = c.state()
	assert.Nil(t, st.Selection)
	assert.Equal(t, domain.IngestionIdle, st.Document.State)
	assert.Empty(t, st.Document.Segments)
}

func TestQuestions(t *testing.T) {
	_, client := newTestServer(t, &fakeBackend{})
	c := client()

	code, body := c.postJSON("/questions", url.Values{"question": {"What is my deductible?"}})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Please process a document before asking questions.", errorMessage(t, body))

	c.submitText(policyText)
	code, body = c.postJSON("/questions", url.Values{"question": {"   "}})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Please enter a question.", errorMessage(t, body))

	for _, q := range []string{"What is my deductible?", "Is dental covered?"} {
		code, body = c.postJSON("/questions", url.Values{"question": {q}})
		require.Equal(t, http.StatusOK, code, string(body))
	}

	st := c.state()
	require.Len(t, st.Questions.History, 2)
	assert.Equal(t, "Is dental covered?", st.Questions.History[0].Question)
	assert.Equal(t, "What is my deductible?", st.Questions.History[1].Question)
	assert.Equal(t, "Based on: "+policyText, st.Questions.History[1].Answer)
	assert.Equal(t, domain.RequestIdle, st.Questions.State)

	c.postJSON("/questions/clear", nil)
	assert.Empty(t, c.state().Questions.History)
}

func TestQuestionFailureKeepsPending(t *testing.T) {
	backend := &fakeBackend{}
	_, client := newTestServer(t, backend)
	c := client()
	c.submitText(policyText)

	backend.failAsk = &domain.ServiceError{Op: "ask question", StatusCode: 500}
	code, body := c.postJSON("/questions", url.Values{"question": {"Covered?"}})
	assert.Equal(t, http.StatusBadGateway, code)
	assert.Equal(t, "Server error. Please try again.", errorMessage(t, body))

	st := c.state()
	assert.Equal(t, domain.RequestFailed, st.Questions.State)
	assert.Equal(t, "Covered?", st.Questions.PendingQuestion)
	assert.Empty(t, st.Questions.History)
}

func TestSetCategory(t *testing.T) {
	_, client := newTestServer(t, &fakeBackend{})
	c := client()

	code, _ := c.postJSON("/category", url.Values{"insurance_type": {"Disability"}})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, domain.InsuranceDisability, c.state().Document.InsuranceType)

	code, _ = c.postJSON("/category", url.Values{})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestSessionsAreIsolated(t *testing.T) {
	_, client := newTestServer(t, &fakeBackend{})
	alice, bob := client(), client()

	alice.submitText(policyText)
	assert.Equal(t, domain.IngestionReady, alice.state().Document.State)
	assert.Equal(t, domain.IngestionIdle, bob.state().Document.State)
}

func TestPageRendering(t *testing.T) {
	_, client := newTestServer(t, &fakeBackend{})
	c := client()

	code, body := c.get("/")
	require.Equal(t, http.StatusOK, code)
	page := string(body)
	assert.Contains(t, page, `<option value="health" selected>`)
	assert.NotContains(t, page, "Ask a question")

	c.submitText(policyText)
	c.postJSON("/terms/4-14", nil)

	_, body = c.get("/")
	page = string(body)
	assert.Contains(t, page, `action="/terms/4-14"`)
	assert.Contains(t, page, `class="term term-payment open"`)
	assert.Contains(t, page, `class="term term-general"`, "unknown categories use the generic style")
	assert.Contains(t, page, "What this means for you")
	assert.Contains(t, page, "You pay the first $500.")
	assert.Contains(t, page, "Ask a question")
	assert.Contains(t, page, domain.SuggestedQuestions(domain.InsuranceHealth)[0])
}

func TestBrowserFormFlow(t *testing.T) {
	_, client := newTestServer(t, &fakeBackend{})
	c := client()

	// Browsers follow the 303 back to the page, which shows the notice once.
	req, _ := http.NewRequest(http.MethodPost, c.base+"/questions", strings.NewReader("question=hi"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	code, body := c.do(req)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(body), "Please process a document before asking questions.")

	_, body = c.get("/")
	assert.NotContains(t, string(body), "Please process a document before asking questions.")

	noRedirect := &http.Client{Jar: c.http.Jar, CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}}
	resp, err := noRedirect.PostForm(c.base+"/document", url.Values{"text_content": {policyText}})
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get("Location"))
	assert.Equal(t, domain.IngestionReady, c.state().Document.State)
}

func TestStats(t *testing.T) {
	_, client := newTestServer(t, &fakeBackend{})
	c := client()
	c.submitText(policyText)

	code, body := c.get("/api/stats")
	require.Equal(t, http.StatusOK, code)
	var stats struct {
		Backend  map[string]service.CallStats `json:"backend"`
		Sessions int                          `json:"sessions"`
	}
	require.NoError(t, json.Unmarshal(body, &stats))
	assert.Equal(t, int64(1), stats.Backend["process document"].Calls)
	assert.Equal(t, int64(1), stats.Backend["process document"].Succeeded)
	assert.Equal(t, 1, stats.Sessions)
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "policy.pdf", sanitizeFilename("../../etc/policy.pdf"))
	assert.Equal(t, "policy.pdf", sanitizeFilename(`C:\Users\me\policy.pdf`))
	assert.Equal(t, "unnamed", sanitizeFilename(""))
}

func TestStatsReportBackendOutcomes(t *testing.T) {
	var processCalls sync.Map
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/process-document":
			if _, seen := processCalls.LoadOrStore("first", true); !seen {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			_, _ = io.WriteString(w, `{"original_text": "The deductible is $500.", "terms": [], "insurance_type": "health"}`)
		case "/ask-question":
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = io.WriteString(w, `{"detail": "question too long"}`)
		}
	}))
	t.Cleanup(backend.Close)

	client := service.NewClient(backend.URL, time.Second,
		service.WithMaxRetries(1),
		service.WithBackoff(func(int) time.Duration { return 0 }),
	)
	_, newClient := newTestServer(t, client)
	c := newClient()
	c.submitText(policyText)

	code, _ := c.postJSON("/questions", url.Values{"question": {"What is covered?"}})
	assert.Equal(t, http.StatusBadGateway, code)

	code, body := c.get("/api/stats")
	require.Equal(t, http.StatusOK, code)
	var stats struct {
		Backend map[string]service.CallStats `json:"backend"`
	}
	require.NoError(t, json.Unmarshal(body, &stats))

	process := stats.Backend["process document"]
	assert.Equal(t, int64(1), process.Succeeded)
	assert.Equal(t, int64(1), process.Retries)
	assert.Equal(t, 2, process.Latency.Samples)

	ask := stats.Backend["ask question"]
	assert.Equal(t, int64(1), ask.Failed)
	assert.Equal(t, map[string]int64{service.FailureRejected: 1}, ask.Failures)
	assert.Contains(t, ask.LastError, "question too long")
}
