package chat

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zhouzirui/pulse-hr/backend/internal/model/chat"
	"github.com/zhouzirui/pulse-hr/backend/internal/model/companion"
	"github.com/zhouzirui/pulse-hr/backend/internal/model/wellness"
	"github.com/zhouzirui/pulse-hr/backend/internal/simulator"
)

var (
	ErrSessionNotFound   = errors.New("session not found")
	ErrCompanionNotFound = errors.New("companion not found")
	ErrServiceClosed     = errors.New("chat service closed")
)

// Option customises a Service.
type Option func(*Service)

// WithLogger sets the logger handed down to every simulator.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.log = l }
}

// ResponderFactory returns the primary reply source for sessions with profile.
// A nil Responder keeps the canned catalog.
type ResponderFactory func(profile companion.Companion) simulator.Responder

// WithResponders makes the factory's responder the primary reply source of each session.
func WithResponders(f ResponderFactory) Option {
	return func(s *Service) { s.responders = f }
}

// WithSeed makes per-session randomness reproducible. Zero keeps a time-based seed.
func WithSeed(seed int64) Option {
	return func(s *Service) {
		if seed != 0 {
			s.seeds = rand.New(rand.NewSource(seed))
		}
	}
}

// WithSimulatorOptions appends extra options to every simulator the service creates.
func WithSimulatorOptions(fn func(sessionID string) []simulator.Option) Option {
	return func(s *Service) { s.extra = fn }
}

type entry struct {
	session chat.Session
	sim     *simulator.Simulator
}

// Service keeps one chat simulator per anonymous session.
type Service struct {
	cfg        simulator.Config
	companions companion.Store
	log        *zap.Logger
	responders ResponderFactory
	extra      func(sessionID string) []simulator.Option

	seedMu sync.Mutex
	seeds  *rand.Rand

	mu       sync.RWMutex
	sessions map[string]*entry
	closed   bool
}

// NewService bootstraps the in-memory session registry.
func NewService(cfg simulator.Config, companions companion.Store, opts ...Option) *Service {
	s := &Service{
		cfg:        cfg,
		companions: companions,
		log:        zap.NewNop(),
		seeds:      rand.New(rand.NewSource(time.Now().UnixNano())),
		sessions:   make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateSession opens a chat with the given companion, seeded with its greeting.
// An empty companionID selects companion.DefaultID.
func (s *Service) CreateSession(_ context.Context, companionID string) (chat.Session, error) {
	if companionID == "" {
		companionID = companion.DefaultID
	}
	profile, ok := s.companions.FindByID(companionID)
	if !ok {
		return chat.Session{}, ErrCompanionNotFound
	}

	session := chat.Session{
		ID:          uuid.NewString(),
		CompanionID: profile.ID,
		CreatedAt:   time.Now().UTC(),
	}

	cfg := s.cfg
	cfg.Greeting = profile.Greeting

	opts := []simulator.Option{
		simulator.WithSessionID(session.ID),
		simulator.WithLogger(s.log),
		simulator.WithRand(rand.New(rand.NewSource(s.nextSeed()))),
	}
	if s.responders != nil {
		if r := s.responders(profile); r != nil {
			opts = append(opts, simulator.WithResponder(r))
		}
	}
	if s.extra != nil {
		opts = append(opts, s.extra(session.ID)...)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return chat.Session{}, ErrServiceClosed
	}
	s.sessions[session.ID] = &entry{session: session, sim: simulator.New(cfg, opts...)}

	s.log.Info("session created",
		zap.String("session", session.ID),
		zap.String("companion", session.CompanionID))
	return session, nil
}

func (s *Service) nextSeed() int64 {
	s.seedMu.Lock()
	defer s.seedMu.Unlock()
	return s.seeds.Int63()
}

func (s *Service) lookup(sessionID string) (*entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return e, nil
}

// GetSession retrieves a session by identifier.
func (s *Service) GetSession(_ context.Context, sessionID string) (chat.Session, error) {
	e, err := s.lookup(sessionID)
	if err != nil {
		return chat.Session{}, err
	}
	return e.session, nil
}

// Submit hands text to the session's simulator. accepted is false for blank input.
func (s *Service) Submit(_ context.Context, sessionID, text string) (msg chat.Message, accepted bool, err error) {
	e, err := s.lookup(sessionID)
	if err != nil {
		return chat.Message{}, false, err
	}
	msg, accepted = e.sim.Submit(text)
	return msg, accepted, nil
}

// LoadTranscript returns the session transcript, oldest first.
func (s *Service) LoadTranscript(_ context.Context, sessionID string) ([]chat.Message, error) {
	e, err := s.lookup(sessionID)
	if err != nil {
		return nil, err
	}
	return e.sim.Transcript(), nil
}

// Metrics returns the session's wellness score and burnout risk.
func (s *Service) Metrics(_ context.Context, sessionID string) (wellness.Metrics, error) {
	e, err := s.lookup(sessionID)
	if err != nil {
		return wellness.Metrics{}, err
	}
	return e.sim.Metrics(), nil
}

// Snapshot returns transcript, metrics and pending flag together.
func (s *Service) Snapshot(_ context.Context, sessionID string) (simulator.Snapshot, error) {
	e, err := s.lookup(sessionID)
	if err != nil {
		return simulator.Snapshot{}, err
	}
	return e.sim.Snapshot(), nil
}

// Reset cancels pending replies and restores the greeting.
func (s *Service) Reset(_ context.Context, sessionID string) error {
	e, err := s.lookup(sessionID)
	if err != nil {
		return err
	}
	e.sim.Reset()
	return nil
}

// Subscribe streams simulator events for a session.
func (s *Service) Subscribe(_ context.Context, sessionID string, buffer int) (<-chan simulator.Event, func(), error) {
	e, err := s.lookup(sessionID)
	if err != nil {
		return nil, nil, err
	}
	events, cancel := e.sim.Subscribe(buffer)
	return events, cancel, nil
}

// CloseSession tears a session down, cancelling its pending reply.
func (s *Service) CloseSession(_ context.Context, sessionID string) error {
	s.mu.Lock()
	e, ok := s.sessions[sessionID]
	delete(s.sessions, sessionID)
	s.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}
	e.sim.Close()
	s.log.Info("session closed", zap.String("session", sessionID))
	return nil
}

// Close tears down every session. Later CreateSession calls fail with ErrServiceClosed.
// It is idempotent.
func (s *Service) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	sessions := s.sessions
	s.sessions = make(map[string]*entry)
	s.closed = true
	s.mu.Unlock()

	for _, e := range sessions {
		e.sim.Close()
	}
	s.log.Info("chat service closed", zap.Int("sessions", len(sessions)))
}
