package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/dgallion1/insurspeak/internal/domain"
	"github.com/dgallion1/insurspeak/internal/session"
)

// finish completes a state-changing request. JSON clients get the new state
// or an error; browsers are redirected back to the page, with validation
// problems shown once as a notice.
func (s *Server) finish(w http.ResponseWriter, r *http.Request, v *viewSession, err error) {
	if err != nil && !domain.IsValidation(err) && !errors.Is(err, session.ErrStale) {
		s.log.Warn("request failed", zap.String("session", v.id), zap.String("path", r.URL.Path), zap.Error(err))
	}

	if wantsJSON(r) {
		switch {
		case err == nil:
			writeJSON(w, http.StatusOK, s.buildState(v))
		case domain.IsValidation(err):
			jsonError(w, domain.UserMessage(err), http.StatusBadRequest)
		case errors.Is(err, session.ErrStale):
			jsonError(w, "The session changed while the request was in flight.", http.StatusConflict)
		default:
			jsonError(w, domain.UserMessage(err), http.StatusBadGateway)
		}
		return
	}

	if domain.IsValidation(err) {
		v.setNotice(domain.UserMessage(err))
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(body)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func sanitizeFilename(name string) string {
	// Strip path components, keep only the base name.
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." || name == "/" {
		name = "unnamed"
	}
	return name
}
