package session

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dgallion1/insurspeak/internal/domain"
)

// Answerer is the backend's question answering operation.
type Answerer interface {
	AskQuestion(ctx context.Context, question, documentText string, insuranceType domain.InsuranceType) (*domain.Answer, error)
}

// DocumentSource supplies the ready document, if any.
type DocumentSource interface {
	Ready() (domain.DocumentRef, bool)
}

// QAState is a read-only snapshot of the question history. Entries are in
// submission order, oldest first.
type QAState struct {
	Entries         []domain.QAEntry    `json:"entries"`
	PendingQuestion string              `json:"pending_question"`
	Request         domain.RequestState `json:"request_state"`
	LastError       string              `json:"last_error,omitempty"`

	generation uint64
}

// NewestFirst returns the entries in display order.
func (s QAState) NewestFirst() []domain.QAEntry {
	out := make([]domain.QAEntry, len(s.Entries))
	for i, e := range s.Entries {
		out[len(s.Entries)-1-i] = e
	}
	return out
}

// QAStore owns one question/answer conversation about the ready document.
type QAStore struct {
	mu       sync.Mutex
	state    QAState
	docs     DocumentSource
	answerer Answerer
	log      *zap.Logger
	now      func() time.Time
	newID    func() string
}

// NewQAStore returns an empty conversation.
func NewQAStore(docs DocumentSource, answerer Answerer, log *zap.Logger, opts ...Option) *QAStore {
	o := applyOptions(opts)
	if log == nil {
		log = zap.NewNop()
	}
	return &QAStore{
		state:    initialQA(),
		docs:     docs,
		answerer: answerer,
		log:      log.With(zap.String("component", "qa_store")),
		now:      o.now,
		newID:    o.newID,
	}
}

// SetPendingQuestion stores the question being composed.
func (s *QAStore) SetPendingQuestion(text string) {
	s.dispatch(pendingSet{text: text})
}

// Submit asks the pending question about the ready document. On success
// the answer is appended and the pending question cleared; on failure the
// pending question and history are left as they were.
func (s *QAStore) Submit(ctx context.Context) error {
	s.mu.Lock()
	if s.state.Request == domain.RequestLoading {
		s.mu.Unlock()
		return &domain.ValidationError{Field: "question", Message: "A question is already being answered. Please wait."}
	}
	question := strings.TrimSpace(s.state.PendingQuestion)
	if question == "" {
		s.mu.Unlock()
		return &domain.ValidationError{Field: "question", Message: "Please enter a question."}
	}
	doc, ok := s.docs.Ready()
	if !ok {
		s.mu.Unlock()
		return &domain.ValidationError{Field: "document", Message: "Please process a document before asking questions."}
	}
	s.state = reduceQA(s.state, askStarted{})
	gen := s.state.generation
	s.mu.Unlock()

	log := s.log.With(zap.Uint64("generation", gen), zap.String("document_id", doc.ID))
	log.Info("asking question", zap.Int("question_len", len(question)))

	ans, err := s.answerer.AskQuestion(ctx, question, doc.Text, doc.InsuranceType)

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.state.generation {
		log.Debug("dropping stale answer")
		return ErrStale
	}
	if current, ok := s.docs.Ready(); !ok || current.ID != doc.ID {
		log.Debug("dropping answer for replaced document")
		s.state = reduceQA(s.state, askAbandoned{generation: gen})
		return ErrStale
	}
	if err != nil {
		log.Warn("question failed", zap.Error(err))
		s.state = reduceQA(s.state, askFailed{generation: gen, message: domain.UserMessage(err)})
		return err
	}

	asked := ans.Question
	if strings.TrimSpace(asked) == "" {
		asked = question
	}
	entry := domain.QAEntry{
		ID:           s.newID(),
		Question:     asked,
		Answer:       ans.Answer,
		QuestionType: ans.QuestionType,
		DocumentID:   doc.ID,
		CreatedAt:    s.now(),
	}
	s.state = reduceQA(s.state, askSucceeded{generation: gen, entry: entry})
	log.Info("question answered", zap.String("entry_id", entry.ID))
	return nil
}

// Clear empties the history and the pending question. An answer still in
// flight will be discarded.
func (s *QAStore) Clear() {
	s.dispatch(historyCleared{})
	s.log.Info("question history cleared")
}

// Snapshot returns the current state. Entries are shared and must not be
// modified.
func (s *QAStore) Snapshot() QAState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *QAStore) dispatch(a qaAction) {
	s.mu.Lock()
	s.state = reduceQA(s.state, a)
	s.mu.Unlock()
}

func initialQA() QAState {
	return QAState{Entries: []domain.QAEntry{}, Request: domain.RequestIdle}
}

type qaAction interface{ qaAction() }

type (
	pendingSet     struct{ text string }
	askStarted     struct{}
	historyCleared struct{}
	askAbandoned   struct{ generation uint64 }
	askFailed      struct {
		generation uint64
		message    string
	}
	askSucceeded struct {
		generation uint64
		entry      domain.QAEntry
	}
)

func (pendingSet) qaAction()     {}
func (askStarted) qaAction()     {}
func (historyCleared) qaAction() {}
func (askAbandoned) qaAction()   {}
func (askFailed) qaAction()      {}
func (askSucceeded) qaAction()   {}

// reduceQA applies a to s. Entries are only ever appended; a new backing
// array is allocated so earlier snapshots stay unchanged.
func reduceQA(s QAState, a qaAction) QAState {
	switch a := a.(type) {
	case pendingSet:
		s.PendingQuestion = a.text
	case askStarted:
		s.generation++
		s.Request = domain.RequestLoading
		s.LastError = ""
	case askAbandoned:
		if a.generation != s.generation {
			return s
		}
		s.Request = domain.RequestIdle
	case askFailed:
		if a.generation != s.generation {
			return s
		}
		s.Request = domain.RequestFailed
		s.LastError = a.message
	case askSucceeded:
		if a.generation != s.generation {
			return s
		}
		entries := make([]domain.QAEntry, len(s.Entries), len(s.Entries)+1)
		copy(entries, s.Entries)
		s.Entries = append(entries, a.entry)
		s.PendingQuestion = ""
		s.Request = domain.RequestIdle
		s.LastError = ""
	case historyCleared:
		next := initialQA()
		next.generation = s.generation + 1
		return next
	}
	return s
}
