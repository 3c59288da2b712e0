package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dgallion1/insurspeak/internal/domain"
	"github.com/dgallion1/insurspeak/internal/segment"
)

// ErrStale is returned when a response arrives for a request that was
// superseded by a reset or a newer submission. The response is discarded.
var ErrStale = errors.New("response discarded: session changed while request was in flight")

// Ingestor is the backend's document processing operation.
type Ingestor interface {
	ProcessDocument(ctx context.Context, src domain.Source, insuranceType domain.InsuranceType) (*domain.ProcessedDocument, error)
}

// DocumentState is a read-only snapshot of the document session.
type DocumentState struct {
	ID            string                  `json:"id,omitempty"`
	Name          string                  `json:"name,omitempty"`
	RawText       string                  `json:"raw_text"`
	Terms         []domain.TermAnnotation `json:"terms"`
	Segments      []domain.Segment        `json:"segments"`
	InsuranceType domain.InsuranceType    `json:"insurance_type"`
	Ingestion     domain.IngestionState   `json:"ingestion_state"`
	LastError     string                  `json:"last_error,omitempty"`
	ProcessedAt   time.Time               `json:"processed_at,omitempty"`

	generation uint64
}

// Ready reports whether the session holds a usable document.
func (s DocumentState) Ready() bool {
	return s.Ingestion == domain.IngestionReady
}

// HasDocument reports whether any processed document is held, including a
// previous one kept after a failed re-submission.
func (s DocumentState) HasDocument() bool {
	return s.ID != ""
}

// DocumentStore owns one document session. At most one ingestion request
// is in flight; a second Submit while loading is rejected.
type DocumentStore struct {
	mu         sync.Mutex
	state      DocumentState
	defaultTyp domain.InsuranceType
	ingestor   Ingestor
	log        *zap.Logger
	now        func() time.Time
	newID      func() string
}

// NewDocumentStore returns an empty session using defaultType until the
// user picks a category.
func NewDocumentStore(ingestor Ingestor, defaultType domain.InsuranceType, log *zap.Logger, opts ...Option) *DocumentStore {
	o := applyOptions(opts)
	if log == nil {
		log = zap.NewNop()
	}
	if defaultType == "" {
		defaultType = domain.InsuranceHealth
	}
	return &DocumentStore{
		state:      initialDocument(defaultType),
		defaultTyp: defaultType,
		ingestor:   ingestor,
		log:        log.With(zap.String("component", "document_store")),
		now:        o.now,
		newID:      o.newID,
	}
}

// SetCategory changes the insurance type used for the next submission.
func (s *DocumentStore) SetCategory(t domain.InsuranceType) {
	s.dispatch(categorySet{insuranceType: t})
}

// Submit sends src to the backend and records the outcome. Validation
// problems are returned before any request is made and leave the state
// unchanged.
func (s *DocumentStore) Submit(ctx context.Context, src domain.Source) error {
	if err := src.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	if s.state.Ingestion == domain.IngestionLoading {
		s.mu.Unlock()
		return &domain.ValidationError{Field: "document", Message: "A document is already being processed. Please wait."}
	}
	s.state = reduceDocument(s.state, ingestStarted{})
	gen := s.state.generation
	category := s.state.InsuranceType
	s.mu.Unlock()

	log := s.log.With(zap.Uint64("generation", gen), zap.String("insurance_type", string(category)))
	log.Info("submitting document", zap.Bool("file", len(src.FileBytes) > 0), zap.String("filename", src.Filename))

	doc, err := s.ingestor.ProcessDocument(ctx, src, category)
	var segments []domain.Segment
	if err == nil {
		segments, err = segment.Build(doc.Text, doc.Terms)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.state.generation {
		log.Debug("dropping stale ingestion response")
		return ErrStale
	}
	if err != nil {
		log.Warn("document ingestion failed", zap.Error(err))
		s.state = reduceDocument(s.state, ingestFailed{generation: gen, message: domain.UserMessage(err)})
		return err
	}

	if skipped := segment.Skipped(doc.Terms, segments); len(skipped) > 0 {
		log.Debug("overlapping annotations not highlighted", zap.Int("count", len(skipped)))
	}

	insuranceType := category
	if echoed, perr := domain.ParseInsuranceType(doc.InsuranceType); perr == nil {
		insuranceType = echoed
	} else if doc.InsuranceType != "" {
		log.Warn("ignoring unrecognized insurance type from service", zap.String("echoed", doc.InsuranceType))
	}

	s.state = reduceDocument(s.state, ingestSucceeded{
		generation:    gen,
		id:            s.newID(),
		name:          documentName(src),
		text:          doc.Text,
		terms:         doc.Terms,
		segments:      segments,
		insuranceType: insuranceType,
		at:            s.now(),
	})
	log.Info("document ready", zap.Int("terms", len(doc.Terms)), zap.Int("segments", len(segments)))
	return nil
}

// Reset returns the session to its empty initial state. A response still
// in flight will be discarded.
func (s *DocumentStore) Reset() {
	s.dispatch(documentReset{insuranceType: s.defaultTyp})
	s.log.Info("document session reset")
}

// Snapshot returns the current state. Slices are shared and must not be
// modified.
func (s *DocumentStore) Snapshot() DocumentState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Ready returns the document questions should be asked about.
func (s *DocumentStore) Ready() (domain.DocumentRef, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.state.Ready() {
		return domain.DocumentRef{}, false
	}
	return domain.DocumentRef{ID: s.state.ID, Text: s.state.RawText, InsuranceType: s.state.InsuranceType}, true
}

func (s *DocumentStore) dispatch(a documentAction) {
	s.mu.Lock()
	s.state = reduceDocument(s.state, a)
	s.mu.Unlock()
}

func documentName(src domain.Source) string {
	if src.Filename != "" {
		return src.Filename
	}
	return "Insurance Document"
}

func initialDocument(t domain.InsuranceType) DocumentState {
	return DocumentState{
		InsuranceType: t,
		Ingestion:     domain.IngestionIdle,
		Terms:         []domain.TermAnnotation{},
		Segments:      []domain.Segment{},
	}
}

type documentAction interface{ documentAction() }

type (
	categorySet   struct{ insuranceType domain.InsuranceType }
	ingestStarted struct{}
	documentReset struct{ insuranceType domain.InsuranceType }
	ingestFailed  struct {
		generation uint64
		message    string
	}
	ingestSucceeded struct {
		generation    uint64
		id, name      string
		text          string
		terms         []domain.TermAnnotation
		segments      []domain.Segment
		insuranceType domain.InsuranceType
		at            time.Time
	}
)

func (categorySet) documentAction()     {}
func (ingestStarted) documentAction()   {}
func (documentReset) documentAction()   {}
func (ingestFailed) documentAction()    {}
func (ingestSucceeded) documentAction() {}

// reduceDocument applies a to s. Completion actions carrying an old
// generation leave s unchanged.
func reduceDocument(s DocumentState, a documentAction) DocumentState {
	switch a := a.(type) {
	case categorySet:
		s.InsuranceType = a.insuranceType
	case ingestStarted:
		s.generation++
		s.Ingestion = domain.IngestionLoading
		s.LastError = ""
	case ingestFailed:
		if a.generation != s.generation {
			return s
		}
		s.Ingestion = domain.IngestionFailed
		s.LastError = a.message
	case ingestSucceeded:
		if a.generation != s.generation {
			return s
		}
		s.ID = a.id
		s.Name = a.name
		s.RawText = a.text
		s.Terms = a.terms
		if s.Terms == nil {
			s.Terms = []domain.TermAnnotation{}
		}
		s.Segments = a.segments
		s.InsuranceType = a.insuranceType
		s.ProcessedAt = a.at
		s.Ingestion = domain.IngestionReady
		s.LastError = ""
	case documentReset:
		next := initialDocument(a.insuranceType)
		next.generation = s.generation + 1
		return next
	}
	return s
}
