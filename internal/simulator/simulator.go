// Package simulator drives the wellness-companion chat: user messages are appended
// immediately and answered after a fixed delay, each answer nudging the wellness score.
//
// Replies are serialised. While one reply is pending further submissions queue up and
// each receives its own reply, in submission order. Reset and Close cancel the pending
// timer; a callback that already fired is discarded by a generation check, so disposed
// state is never mutated.
package simulator

import (
	"context"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zhouzirui/pulse-hr/backend/internal/analysis/emotion"
	"github.com/zhouzirui/pulse-hr/backend/internal/model/chat"
	"github.com/zhouzirui/pulse-hr/backend/internal/model/wellness"
)

// Option customises a Simulator.
type Option func(*Simulator)

// WithScheduler replaces the wall-clock scheduler.
func WithScheduler(s Scheduler) Option {
	return func(sim *Simulator) { sim.scheduler = s }
}

// WithRand injects the random source used for reply selection and the score walk.
func WithRand(r Rand) Option {
	return func(sim *Simulator) { sim.rand = &lockedRand{r: r} }
}

// WithResponder replaces the canned catalog as the primary reply source.
// The catalog stays in place as fallback.
func WithResponder(r Responder) Option {
	return func(sim *Simulator) { sim.responder = r }
}

// WithAnalyzer replaces the keyword mood tagger.
func WithAnalyzer(a emotion.Analyzer) Option {
	return func(sim *Simulator) { sim.analyzer = a }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(sim *Simulator) { sim.log = l }
}

// WithSessionID stamps messages and events with id.
func WithSessionID(id string) Option {
	return func(sim *Simulator) { sim.sessionID = id }
}

// WithClock overrides message timestamps.
func WithClock(now func() time.Time) Option {
	return func(sim *Simulator) { sim.now = now }
}

// WithIDGenerator overrides message identifiers.
func WithIDGenerator(next func() string) Option {
	return func(sim *Simulator) { sim.newID = next }
}

// Simulator is one wellness chat. It is safe for concurrent use.
type Simulator struct {
	cfg       Config
	sessionID string
	log       *zap.Logger
	scheduler Scheduler
	rand      Rand
	responder Responder
	fallback  *CannedResponder
	analyzer  emotion.Analyzer
	now       func() time.Time
	newID     func() string

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	transcript []chat.Message
	queue      []chat.Message // head is the message whose reply is scheduled
	timer      Timer
	generation uint64
	score      int
	closed     bool
	subs       map[int]chan Event
	nextSub    int
}

// New builds a simulator from cfg. cfg is assumed valid, see Config.Validate.
func New(cfg Config, opts ...Option) *Simulator {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Simulator{
		cfg:       cfg,
		log:       zap.NewNop(),
		scheduler: WallClock{},
		analyzer:  emotion.KeywordAnalyzer{},
		now:       func() time.Time { return time.Now().UTC() },
		newID:     uuid.NewString,
		ctx:       ctx,
		cancel:    cancel,
		subs:      make(map[int]chan Event),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.rand == nil {
		s.rand = &lockedRand{r: rand.New(rand.NewSource(time.Now().UnixNano()))}
	}
	s.fallback = NewCannedResponder(cfg.Replies, s.rand)
	if s.responder == nil {
		s.responder = s.fallback
	}
	s.log = s.log.With(zap.String("session", s.sessionID))

	s.mu.Lock()
	s.restoreLocked()
	s.mu.Unlock()
	return s
}

// Submit appends a user message and schedules its reply. Blank input and
// submissions after Close are ignored and report false.
func (s *Simulator) Submit(text string) (chat.Message, bool) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return chat.Message{}, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return chat.Message{}, false
	}

	msg := s.newMessage(chat.RoleUser, trimmed)
	if s.analyzer != nil {
		msg.Mood = string(s.analyzer.Analyze(trimmed).Mood)
	}
	s.transcript = append(s.transcript, msg)
	s.queue = append(s.queue, msg)
	s.publishLocked(Event{Type: EventMessage, Message: &msg, Pending: true})

	if len(s.queue) == 1 {
		s.scheduleLocked()
		s.publishLocked(Event{Type: EventTyping, Pending: true})
	}

	s.log.Debug("message submitted",
		zap.String("mood", msg.Mood),
		zap.Int("queued", len(s.queue)))
	return msg, true
}

func (s *Simulator) scheduleLocked() {
	gen := s.generation
	s.timer = s.scheduler.AfterFunc(s.cfg.ReplyDelay, func() {
		s.completeReply(gen)
	})
}

// completeReply answers the head of the queue. gen pins the callback to the
// generation that scheduled it.
func (s *Simulator) completeReply(gen uint64) {
	s.mu.Lock()
	if s.closed || gen != s.generation || len(s.queue) == 0 {
		s.mu.Unlock()
		return
	}
	prompt := s.queue[0]
	history := append([]chat.Message(nil), s.transcript...)
	s.mu.Unlock()

	text := s.replyText(history, prompt)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || gen != s.generation {
		s.log.Debug("discarding reply for stale generation")
		return
	}

	reply := s.newMessage(chat.RoleAssistant, text)
	s.transcript = append(s.transcript, reply)
	s.queue = s.queue[1:]
	s.timer = nil

	previous := s.score
	s.score = s.nextScoreLocked()
	metrics := wellness.NewMetrics(s.score)

	pending := len(s.queue) > 0
	s.publishLocked(Event{Type: EventMessage, Message: &reply, Pending: pending})
	s.publishLocked(Event{Type: EventMetrics, Metrics: &metrics, Pending: pending})

	if pending {
		s.scheduleLocked()
	} else {
		s.publishLocked(Event{Type: EventTyping, Pending: false})
	}

	if wellness.RiskFor(previous) != metrics.Risk {
		s.log.Info("burnout risk changed",
			zap.Int("score", metrics.Score),
			zap.String("from", string(wellness.RiskFor(previous))),
			zap.String("to", string(metrics.Risk)))
	}
}

func (s *Simulator) replyText(history []chat.Message, prompt chat.Message) string {
	text, err := s.responder.Reply(s.ctx, history, prompt)
	if err == nil && strings.TrimSpace(text) != "" {
		return text
	}
	if err != nil {
		s.log.Warn("responder failed, using canned reply", zap.Error(err))
	}
	text, _ = s.fallback.Reply(s.ctx, history, prompt)
	return text
}

func (s *Simulator) nextScoreLocked() int {
	delta := s.rand.Intn(2*s.cfg.MaxDelta+1) - s.cfg.MaxDelta
	return s.cfg.Bounds.Clamp(s.score + delta)
}

// Transcript returns a copy of the transcript, oldest first.
func (s *Simulator) Transcript() []chat.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]chat.Message(nil), s.transcript...)
}

// Metrics returns the current wellness score and risk.
func (s *Simulator) Metrics() wellness.Metrics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return wellness.NewMetrics(s.score)
}

// Pending reports whether a reply is outstanding.
func (s *Simulator) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue) > 0
}

// Queued is the number of user messages still waiting for a reply.
func (s *Simulator) Queued() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Snapshot returns transcript, metrics and pending state read under one lock.
func (s *Simulator) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Transcript: append([]chat.Message(nil), s.transcript...),
		Metrics:    wellness.NewMetrics(s.score),
		Pending:    len(s.queue) > 0,
		Queued:     len(s.queue),
	}
}

// Reset cancels any pending reply and restores the greeting and initial score.
func (s *Simulator) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.cancelPendingLocked()
	s.restoreLocked()

	metrics := wellness.NewMetrics(s.score)
	s.publishLocked(Event{Type: EventReset, Metrics: &metrics})
	s.log.Debug("simulator reset")
}

// Close cancels any pending reply and ends all subscriptions. It is idempotent.
func (s *Simulator) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.cancelPendingLocked()
	s.cancel()
	for id, ch := range s.subs {
		close(ch)
		delete(s.subs, id)
	}
}

func (s *Simulator) cancelPendingLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.generation++
	s.queue = nil
}

func (s *Simulator) restoreLocked() {
	s.transcript = s.transcript[:0]
	if s.cfg.Greeting != "" {
		s.transcript = append(s.transcript, s.newMessage(chat.RoleAssistant, s.cfg.Greeting))
	}
	s.score = s.cfg.Bounds.Clamp(s.cfg.InitialScore)
}

// Subscribe returns a channel of events and a function ending the subscription.
// Events are dropped for a subscriber whose buffer is full.
func (s *Simulator) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Event, buffer)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		close(ch)
		return ch, func() {}
	}

	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if sub, ok := s.subs[id]; ok {
				close(sub)
				delete(s.subs, id)
			}
		})
	}
}

func (s *Simulator) publishLocked(ev Event) {
	if len(s.subs) == 0 {
		return
	}
	ev.SessionID = s.sessionID
	ev.At = s.now()
	for id, ch := range s.subs {
		select {
		case ch <- ev:
		default:
			s.log.Warn("subscriber lagging, dropping event",
				zap.Int("subscriber", id),
				zap.String("event", string(ev.Type)))
		}
	}
}

func (s *Simulator) newMessage(role chat.Role, content string) chat.Message {
	return chat.Message{
		ID:        s.newID(),
		SessionID: s.sessionID,
		Role:      role,
		Content:   content,
		CreatedAt: s.now(),
	}
}
