package api

import (
	"net/http"
	"time"

	"github.com/dgallion1/insurspeak/internal/domain"
	"github.com/dgallion1/insurspeak/internal/segment"
	"github.com/dgallion1/insurspeak/internal/session"
)

// stateResponse mirrors what the page shows.
type stateResponse struct {
	Document  documentView           `json:"document"`
	Selection *domain.TermAnnotation `json:"selection"`
	Questions questionsView          `json:"questions"`
}

type documentView struct {
	ID            string                  `json:"id,omitempty"`
	Name          string                  `json:"name,omitempty"`
	Text          string                  `json:"text"`
	InsuranceType domain.InsuranceType    `json:"insurance_type"`
	State         domain.IngestionState   `json:"state"`
	Error         string                  `json:"error,omitempty"`
	ProcessedAt   *time.Time              `json:"processed_at,omitempty"`
	Terms         []domain.TermAnnotation `json:"terms"`
	Segments      []segmentView           `json:"segments"`
}

type segmentView struct {
	Kind       domain.SegmentKind `json:"kind"`
	StartIndex int                `json:"start_index"`
	EndIndex   int                `json:"end_index"`
	Text       string             `json:"text"`
	Term       string             `json:"term,omitempty"`
	Category   string             `json:"category,omitempty"`
}

type questionsView struct {
	History         []domain.QAEntry    `json:"history"`
	PendingQuestion string              `json:"pending_question"`
	State           domain.RequestState `json:"state"`
	Error           string              `json:"error,omitempty"`
}

func (s *Server) buildState(v *viewSession) stateResponse {
	doc := v.docs.Snapshot()
	qa := v.qa.Snapshot()

	dv := documentView{
		ID:            doc.ID,
		Name:          doc.Name,
		Text:          doc.RawText,
		InsuranceType: doc.InsuranceType,
		State:         doc.Ingestion,
		Error:         doc.LastError,
		Terms:         doc.Terms,
		Segments:      make([]segmentView, 0, len(doc.Segments)),
	}
	if !doc.ProcessedAt.IsZero() {
		at := doc.ProcessedAt
		dv.ProcessedAt = &at
	}
	for _, seg := range doc.Segments {
		sv := segmentView{Kind: seg.Kind, StartIndex: seg.StartIndex, EndIndex: seg.EndIndex, Text: segment.Text(doc.RawText, seg)}
		if seg.Annotation != nil {
			sv.Term = seg.Annotation.Term
			sv.Category = seg.Annotation.Category
		}
		dv.Segments = append(dv.Segments, sv)
	}

	return stateResponse{
		Document:  dv,
		Selection: openAnnotation(v, doc),
		Questions: questionsView{
			History:         qa.NewestFirst(),
			PendingQuestion: qa.PendingQuestion,
			State:           qa.Request,
			Error:           qa.LastError,
		},
	}
}

// openAnnotation returns the open annotation if it belongs to the current
// document.
func openAnnotation(v *viewSession, doc session.DocumentState) *domain.TermAnnotation {
	open := v.sel.Open()
	if open == nil {
		return nil
	}
	for _, seg := range doc.Segments {
		if seg.Annotation != nil && v.sel.IsOpen(seg.Annotation) {
			return seg.Annotation
		}
	}
	return nil
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.buildState(sessionFrom(r)))
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if s.backend == nil {
		jsonError(w, "backend stats unavailable", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"backend":  s.backend.Stats(),
		"sessions": s.sessions.count(),
	})
}
