// Package scheduler owns the single-flight generation contract: at most one
// generation run at a time, at most one undelivered reply, and a separate
// delivery loop that ships the reply out when it is ready.
package scheduler

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vthunder/chatbot/internal/completion"
	"github.com/vthunder/chatbot/internal/history"
	"github.com/vthunder/chatbot/internal/logging"
)

// State is the scheduler's position in Idle -> RequestInFlight -> ResultReady
type State int32

const (
	Idle State = iota
	RequestInFlight
	ResultReady
)

func (s State) String() string {
	switch s {
	case RequestInFlight:
		return "request in flight"
	case ResultReady:
		return "result ready"
	default:
		return "idle"
	}
}

const (
	// typingDelay is how long a run must last before a typing indicator is shown
	typingDelay = 1 * time.Second
	// maxSendFailures drops a reply the transport keeps refusing
	maxSendFailures = 3
)

// ErrUndeliverable marks a send error the transport will never recover
// from. The pending reply is dropped at once instead of being retried.
var ErrUndeliverable = errors.New("undeliverable")

// Generator produces one reply (and optionally a summary) per call
type Generator interface {
	Generate(ctx context.Context) (completion.Result, bool)
}

// Sender delivers text to the conversation channel
type Sender interface {
	Send(ctx context.Context, text string) error
	Typing(ctx context.Context) error
}

// Timing holds the loop intervals. It is read every cycle so a reload can
// change the pacing.
type Timing struct {
	TriggerMin time.Duration
	TriggerMax time.Duration
	Deliver    time.Duration
}

// Scheduler coordinates generation and delivery for one conversation
type Scheduler struct {
	// mu guards the pending slot. It is only ever taken with TryLock:
	// contention means "skip this cycle", never "wait".
	mu           sync.Mutex
	pending      string
	hasPending   bool
	sendFailures int

	state       atomic.Int32
	lastSummary atomic.Pointer[string]

	generator Generator
	history   *history.History
	sender    Sender
	feedback  func(text string)
	timing    func() Timing
	onSent    func(text string, err error)

	rngMu sync.Mutex
	rng   *rand.Rand

	stopChan chan struct{}
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	running  bool
	runMu    sync.Mutex
}

// Config wires a scheduler to its collaborators
type Config struct {
	Generator Generator
	History   *history.History
	Sender    Sender
	// Feedback re-enters a delivered reply through the inbound path as the bot
	Feedback func(text string)
	Timing   func() Timing
	// OnSent is called after every delivery attempt (optional)
	OnSent func(text string, err error)
}

// New creates a scheduler
func New(cfg Config) *Scheduler {
	s := &Scheduler{
		generator: cfg.Generator,
		history:   cfg.History,
		sender:    cfg.Sender,
		feedback:  cfg.Feedback,
		timing:    cfg.Timing,
		onSent:    cfg.OnSent,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	if s.feedback == nil {
		s.feedback = func(string) {}
	}
	if s.timing == nil {
		s.timing = func() Timing {
			return Timing{TriggerMin: 3 * time.Second, TriggerMax: 6 * time.Second, Deliver: time.Second}
		}
	}
	return s
}

// State returns the current state
func (s *Scheduler) State() State {
	return State(s.state.Load())
}

// LastSummary returns the most recent summary produced by a run
func (s *Scheduler) LastSummary() (string, bool) {
	p := s.lastSummary.Load()
	if p == nil {
		return "", false
	}
	return *p, true
}

// TryGenerate attempts Idle -> RequestInFlight and runs a generation
// synchronously. It returns false without doing anything when the lock is
// held, a reply is already pending, the history is empty, or the bot spoke last.
func (s *Scheduler) TryGenerate(ctx context.Context) bool {
	if !s.mu.TryLock() {
		return false
	}
	defer s.mu.Unlock()

	if s.hasPending || s.history.Len() == 0 || s.history.NewestIsBot() {
		return false
	}

	s.state.Store(int32(RequestInFlight))
	res, ok := s.generator.Generate(ctx)

	if res.Summary != "" {
		summary := res.Summary
		s.lastSummary.Store(&summary)
	}
	if ok {
		s.pending = res.Reply
		s.hasPending = true
		s.sendFailures = 0
		s.state.Store(int32(ResultReady))
	} else {
		s.state.Store(int32(Idle))
	}
	return true
}

// TryDeliver attempts ResultReady -> Idle: sends the pending reply, feeds it
// back into the history as the bot and clears the slot. Returns true when a
// reply was sent.
func (s *Scheduler) TryDeliver(ctx context.Context) bool {
	if !s.mu.TryLock() {
		return false
	}
	defer s.mu.Unlock()

	if !s.hasPending {
		return false
	}

	text := s.pending
	err := s.sender.Send(ctx, text)
	if s.onSent != nil {
		s.onSent(text, err)
	}
	if err != nil {
		s.sendFailures++
		logging.Info("scheduler", "Send failed (%d/%d): %v", s.sendFailures, maxSendFailures, err)
		if s.sendFailures >= maxSendFailures || errors.Is(err, ErrUndeliverable) {
			s.clearLocked()
		}
		return false
	}

	s.feedback(text)
	s.clearLocked()
	return true
}

// TryReset runs fn with the slot locked, then drops any pending reply and
// the last summary. Returns false without calling fn when a run holds the lock.
func (s *Scheduler) TryReset(fn func()) bool {
	if !s.mu.TryLock() {
		return false
	}
	defer s.mu.Unlock()

	fn()
	s.clearLocked()
	s.lastSummary.Store(nil)
	return true
}

func (s *Scheduler) clearLocked() {
	s.pending = ""
	s.hasPending = false
	s.sendFailures = 0
	s.state.Store(int32(Idle))
}

// Start launches the trigger and delivery loops
func (s *Scheduler) Start() {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.stopChan = make(chan struct{})

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(2)
	go s.triggerLoop(ctx)
	go s.deliverLoop(ctx)

	t := s.timing()
	logging.Info("scheduler", "Started (trigger %v-%v, deliver every %v)", t.TriggerMin, t.TriggerMax, t.Deliver)
}

// Stop halts both loops and cancels an in-flight generation
func (s *Scheduler) Stop() {
	s.runMu.Lock()
	if !s.running {
		s.runMu.Unlock()
		return
	}
	s.running = false
	close(s.stopChan)
	s.cancel()
	s.runMu.Unlock()

	s.wg.Wait()
}

func (s *Scheduler) triggerLoop(ctx context.Context) {
	defer s.wg.Done()

	timer := time.NewTimer(s.nextTrigger())
	defer timer.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-timer.C:
			done := make(chan struct{})
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				defer close(done)
				s.TryGenerate(ctx)
			}()
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				s.typingWhileBusy(ctx, done)
			}()
			timer.Reset(s.nextTrigger())
		}
	}
}

// typingWhileBusy shows a typing indicator when a run is still going after
// typingDelay. A quick no-op attempt never shows one.
func (s *Scheduler) typingWhileBusy(ctx context.Context, done <-chan struct{}) {
	select {
	case <-done:
		return
	case <-s.stopChan:
		return
	case <-time.After(typingDelay):
	}
	if s.State() != RequestInFlight {
		return
	}
	if err := s.sender.Typing(ctx); err != nil {
		logging.Debug("scheduler", "Typing indicator: %v", err)
	}
}

func (s *Scheduler) deliverLoop(ctx context.Context) {
	defer s.wg.Done()

	interval := s.deliverInterval()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.TryDeliver(ctx)
			if next := s.deliverInterval(); next != interval {
				interval = next
				ticker.Reset(interval)
			}
		}
	}
}

func (s *Scheduler) deliverInterval() time.Duration {
	if d := s.timing().Deliver; d > 0 {
		return d
	}
	return time.Second
}

// nextTrigger picks a uniformly random interval in [TriggerMin, TriggerMax]
func (s *Scheduler) nextTrigger() time.Duration {
	t := s.timing()
	span := t.TriggerMax - t.TriggerMin
	if span <= 0 {
		return t.TriggerMin
	}
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return t.TriggerMin + time.Duration(s.rng.Int63n(int64(span)+1))
}
