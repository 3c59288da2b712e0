package domain

import (
	"fmt"
	"strings"
	"time"
)

// InsuranceType is the policy family a document belongs to.
type InsuranceType string

const (
	InsuranceHealth     InsuranceType = "health"
	InsuranceLife       InsuranceType = "life"
	InsuranceDisability InsuranceType = "disability"
)

// InsuranceTypes lists the supported policy families in display order.
var InsuranceTypes = []InsuranceType{InsuranceHealth, InsuranceLife, InsuranceDisability}

// ParseInsuranceType normalizes s and checks it against the known types.
func ParseInsuranceType(s string) (InsuranceType, error) {
	t := InsuranceType(strings.ToLower(strings.TrimSpace(s)))
	switch t {
	case InsuranceHealth, InsuranceLife, InsuranceDisability:
		return t, nil
	}
	return "", &ValidationError{Field: "insurance_type", Message: fmt.Sprintf("unknown insurance type %q", s)}
}

// TermAnnotation marks a span of the document text as a domain term.
// StartIndex and EndIndex are code point offsets, half-open.
type TermAnnotation struct {
	Term         string `json:"term"`
	Category     string `json:"category"`
	StartIndex   int    `json:"start_index"`
	EndIndex     int    `json:"end_index"`
	Explanation  string `json:"explanation"`
	Implications string `json:"implications,omitempty"`
	Context      string `json:"context,omitempty"`
	Source       string `json:"source,omitempty"`
}

// SameSpan reports whether a and b annotate the same term over the same range.
func (a TermAnnotation) SameSpan(b TermAnnotation) bool {
	return a.StartIndex == b.StartIndex && a.EndIndex == b.EndIndex && a.Term == b.Term
}

// SegmentKind distinguishes plain text runs from annotated runs.
type SegmentKind string

const (
	SegmentPlain     SegmentKind = "plain"
	SegmentAnnotated SegmentKind = "annotated"
)

// Segment is one contiguous run of display output. Annotation points into
// the annotation slice the segment was built from and is nil for plain runs.
type Segment struct {
	Kind       SegmentKind     `json:"kind"`
	StartIndex int             `json:"start_index"`
	EndIndex   int             `json:"end_index"`
	Annotation *TermAnnotation `json:"annotation,omitempty"`
}

// IngestionState is the lifecycle of a document submission.
type IngestionState string

const (
	IngestionIdle    IngestionState = "idle"
	IngestionLoading IngestionState = "loading"
	IngestionReady   IngestionState = "ready"
	IngestionFailed  IngestionState = "failed"
)

// RequestState is the lifecycle of a question submission.
type RequestState string

const (
	RequestIdle    RequestState = "idle"
	RequestLoading RequestState = "loading"
	RequestFailed  RequestState = "failed"
)

// ProcessedDocument is what the backend returns for an ingested document.
type ProcessedDocument struct {
	Text          string
	Terms         []TermAnnotation
	InsuranceType string
}

// Answer is what the backend returns for a question.
type Answer struct {
	Question     string
	Answer       string
	QuestionType string
}

// QAEntry is one answered question. Entries are never mutated once stored.
type QAEntry struct {
	ID           string    `json:"id"`
	Question     string    `json:"question"`
	Answer       string    `json:"answer"`
	QuestionType string    `json:"question_type,omitempty"`
	DocumentID   string    `json:"document_id"`
	CreatedAt    time.Time `json:"created_at"`
}

// Source is a document submission: exactly one of FileBytes or PastedText.
type Source struct {
	FileBytes  []byte
	Filename   string
	PastedText string
}

// Validate checks that exactly one of the two inputs is present. Pasted
// text that is only whitespace counts as absent, so a file submitted with a
// blank text box is a file submission.
func (s Source) Validate() error {
	hasFile := len(s.FileBytes) > 0
	hasText := strings.TrimSpace(s.PastedText) != ""
	switch {
	case hasFile && hasText:
		return &ValidationError{Field: "document", Message: "Provide either a file or pasted text, not both."}
	case !hasFile && !hasText:
		return &ValidationError{Field: "document", Message: "Please upload a file or paste document text."}
	}
	return nil
}

// DocumentRef identifies the ready document questions are asked about.
type DocumentRef struct {
	ID            string
	Text          string
	InsuranceType InsuranceType
}
