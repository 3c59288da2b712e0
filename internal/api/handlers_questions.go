package api

import "net/http"

func (s *Server) handleAskQuestion(w http.ResponseWriter, r *http.Request) {
	v := sessionFrom(r)
	v.qa.SetPendingQuestion(r.FormValue("question"))
	s.finish(w, r, v, v.qa.Submit(r.Context()))
}

func (s *Server) handleClearQuestions(w http.ResponseWriter, r *http.Request) {
	v := sessionFrom(r)
	v.qa.Clear()
	s.finish(w, r, v, nil)
}
