package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/dgallion1/insurspeak/internal/selection"
	"github.com/dgallion1/insurspeak/internal/session"
)

const sessionCookie = "insurspeak_session"

// viewSession is one visitor's document, question history and open term.
type viewSession struct {
	id   string
	docs *session.DocumentStore
	qa   *session.QAStore
	sel  *selection.Controller

	mu     sync.Mutex
	notice string
}

// setNotice stores a message for the next page render.
func (v *viewSession) setNotice(msg string) {
	v.mu.Lock()
	v.notice = msg
	v.mu.Unlock()
}

func (v *viewSession) takeNotice() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	msg := v.notice
	v.notice = ""
	return msg
}

func (s *Server) newViewSession(id string) *viewSession {
	log := s.log.With(zap.String("session", id))
	docs := session.NewDocumentStore(s.backend, s.cfg.DefaultInsuranceType, log)
	return &viewSession{
		id:   id,
		docs: docs,
		qa:   session.NewQAStore(docs, s.backend, log),
		sel:  selection.New(),
	}
}

// sessionRegistry keeps view sessions in memory. Idle sessions expire after
// the configured TTL; every access extends it.
type sessionRegistry struct {
	cache *cache.Cache
	build func(id string) *viewSession
}

func newSessionRegistry(ttl time.Duration, build func(id string) *viewSession, log *zap.Logger) *sessionRegistry {
	if ttl <= 0 {
		ttl = time.Hour
	}
	c := cache.New(ttl, ttl/2)
	c.OnEvicted(func(id string, _ any) {
		log.Debug("session expired", zap.String("session", id))
	})
	return &sessionRegistry{cache: c, build: build}
}

func (r *sessionRegistry) get(id string) (*viewSession, bool) {
	x, found := r.cache.Get(id)
	if !found {
		return nil, false
	}
	r.cache.Set(id, x, cache.DefaultExpiration)
	return x.(*viewSession), true
}

func (r *sessionRegistry) create() *viewSession {
	id := uuid.NewString()
	v := r.build(id)
	r.cache.Set(id, v, cache.DefaultExpiration)
	return v
}

func (r *sessionRegistry) count() int {
	return r.cache.ItemCount()
}

type sessionKey struct{}

// withSession attaches the visitor's session, creating one and setting the
// cookie when the request carries none or an expired one.
func (s *Server) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var v *viewSession
		if c, err := r.Cookie(sessionCookie); err == nil {
			if _, perr := uuid.Parse(c.Value); perr == nil {
				v, _ = s.sessions.get(c.Value)
			}
		}
		if v == nil {
			v = s.sessions.create()
			http.SetCookie(w, &http.Cookie{
				Name:     sessionCookie,
				Value:    v.id,
				Path:     "/",
				MaxAge:   int(s.cfg.SessionTTL.Seconds()),
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
			s.log.Debug("session created", zap.String("session", v.id))
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey{}, v)))
	})
}

func sessionFrom(r *http.Request) *viewSession {
	return r.Context().Value(sessionKey{}).(*viewSession)
}
