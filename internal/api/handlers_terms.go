package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/dgallion1/insurspeak/internal/domain"
)

// handleActivateTerm toggles the explanation for the annotated run at
// [start, end).
func (s *Server) handleActivateTerm(w http.ResponseWriter, r *http.Request) {
	v := sessionFrom(r)
	start, err1 := strconv.Atoi(chi.URLParam(r, "start"))
	end, err2 := strconv.Atoi(chi.URLParam(r, "end"))
	if err1 != nil || err2 != nil {
		s.finish(w, r, v, &domain.ValidationError{Field: "term", Message: "Invalid term position."})
		return
	}

	if !v.sel.ActivateAt(v.docs.Snapshot().Segments, start, end) {
		s.finish(w, r, v, &domain.ValidationError{Field: "term", Message: "No highlighted term at that position."})
		return
	}
	s.finish(w, r, v, nil)
}

func (s *Server) handleDismissTerm(w http.ResponseWriter, r *http.Request) {
	v := sessionFrom(r)
	v.sel.Dismiss()
	s.finish(w, r, v, nil)
}
