// Package engine is the conversation façade: it owns the live configuration,
// routes inbound chat into the history, answers admin commands and drives
// the generation scheduler.
package engine

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/vthunder/chatbot/internal/completion"
	"github.com/vthunder/chatbot/internal/config"
	"github.com/vthunder/chatbot/internal/history"
	"github.com/vthunder/chatbot/internal/journal"
	"github.com/vthunder/chatbot/internal/logging"
	"github.com/vthunder/chatbot/internal/prompt"
	"github.com/vthunder/chatbot/internal/sanitiser"
	"github.com/vthunder/chatbot/internal/scheduler"
	"github.com/vthunder/chatbot/internal/tokenizer"
)

// SystemPrefix marks command feedback. Bot messages carrying it never enter
// the history.
const SystemPrefix = "[SYSTEM]"

// CommandPrefix starts an admin command
const CommandPrefix = "!"

// Inbound is one chat message as seen by the transport
type Inbound struct {
	Speaker string
	Text    string
	// ReplyTo is the display name of the author being replied to, if any
	ReplyTo    string
	Privileged bool
}

// runtime is everything derived from one Config. It is replaced whole on reload.
type runtime struct {
	cfg       *config.Config
	sanitiser *sanitiser.Sanitiser
	counter   tokenizer.Counter
}

// Engine serves exactly one conversation
type Engine struct {
	rt      atomic.Pointer[runtime]
	load    func(path string) (*config.Config, error)
	history *history.History

	requester *completion.Requester
	scheduler *scheduler.Scheduler
	journal   *journal.Journal
}

// Options carries optional collaborators
type Options struct {
	// Journal records attempts, deliveries and commands (optional)
	Journal *journal.Journal
	// Loader replaces config.Load, mainly for tests
	Loader func(path string) (*config.Config, error)
}

// New creates an engine from an already loaded configuration. backend is the
// completion endpoint and sender the outbound side of the chat transport.
func New(cfg *config.Config, backend completion.Backend, sender scheduler.Sender, opts Options) (*Engine, error) {
	rt, err := newRuntime(cfg)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		load:    opts.Loader,
		history: history.New(cfg.Name),
		journal: opts.Journal,
	}
	if e.load == nil {
		e.load = config.Load
	}
	e.rt.Store(rt)

	e.requester = completion.NewRequester(backend, e.history, e.snapshot)
	if e.journal != nil {
		e.requester.SetRecorder(e.journal)
	}

	e.scheduler = scheduler.New(scheduler.Config{
		Generator: e.requester,
		History:   e.history,
		Sender:    sender,
		Feedback:  e.feedback,
		Timing:    e.timing,
		OnSent:    e.onSent,
	})
	return e, nil
}

func newRuntime(cfg *config.Config) (*runtime, error) {
	counter, err := tokenizer.New(cfg.Tokenizer)
	if err != nil {
		return nil, err
	}
	return &runtime{
		cfg:       cfg,
		sanitiser: sanitiser.New(cfg.Name, cfg.Banned),
		counter:   counter,
	}, nil
}

// Config returns the live configuration
func (e *Engine) Config() *config.Config {
	return e.rt.Load().cfg
}

// History exposes the transcript (read-mostly; used by status and tests)
func (e *Engine) History() *history.History {
	return e.history
}

// Scheduler exposes the generation scheduler
func (e *Engine) Scheduler() *scheduler.Scheduler {
	return e.scheduler
}

// Start begins the trigger and delivery loops
func (e *Engine) Start() {
	e.scheduler.Start()
}

// Stop halts the loops, cancelling any in-flight generation
func (e *Engine) Stop() {
	e.scheduler.Stop()
}

// HandleInbound flattens a reply association into the text and handles the message
func (e *Engine) HandleInbound(in Inbound) (string, bool) {
	text := in.Text
	if in.ReplyTo != "" {
		text = in.ReplyTo + ", " + text
	}
	return e.HandleMessage(in.Speaker, text, in.Privileged)
}

// HandleMessage processes one chat message. It returns command feedback to
// post back to the channel, or ok == false when there is nothing to say.
func (e *Engine) HandleMessage(speaker, text string, privileged bool) (string, bool) {
	rt := e.rt.Load()

	if speaker == rt.cfg.Name && strings.HasPrefix(text, SystemPrefix) {
		return "", false
	}

	if privileged && strings.HasPrefix(text, CommandPrefix) {
		if reply, ok := e.command(speaker, strings.TrimPrefix(text, CommandPrefix)); ok {
			return reply, true
		}
	}

	msg, ok := rt.sanitiser.SanitiseInbound(speaker, text)
	if !ok {
		logging.Debug("engine", "Dropped message from %s: %s", speaker, logging.Truncate(text, 50))
		return "", false
	}
	e.history.Append(msg)
	logging.Debug("engine", "%s: %s", msg.Speaker, logging.Truncate(msg.Body, 80))
	return "", false
}

// Reload loads the configuration again. On failure the previous
// configuration stays in place untouched.
func (e *Engine) Reload() error {
	current := e.rt.Load().cfg
	cfg, err := e.load(current.Path)
	if err != nil {
		return err
	}
	// Transport identity is fixed for the life of the process
	cfg.Admins = current.Admins
	cfg.ChannelID = current.ChannelID
	cfg.BotToken = current.BotToken

	rt, err := newRuntime(cfg)
	if err != nil {
		return err
	}
	e.rt.Store(rt)
	e.history.SetBotName(cfg.Name)
	logging.Info("engine", "Configuration reloaded from %s", cfg.Path)
	return nil
}

// feedback re-enters a delivered reply through the inbound path as the bot
func (e *Engine) feedback(text string) {
	e.HandleMessage(e.rt.Load().cfg.Name, text, false)
}

func (e *Engine) snapshot() completion.Snapshot {
	rt := e.rt.Load()
	return completion.Snapshot{
		Config:    rt.cfg,
		Sanitiser: rt.sanitiser,
		Builder:   prompt.New(rt.cfg, rt.counter, e.history),
	}
}

func (e *Engine) timing() scheduler.Timing {
	cfg := e.rt.Load().cfg
	return scheduler.Timing{
		TriggerMin: cfg.TriggerMin,
		TriggerMax: cfg.TriggerMax,
		Deliver:    cfg.DeliverInterval,
	}
}

func (e *Engine) onSent(text string, err error) {
	if err == nil {
		logging.Info("engine", "Sent: %s", logging.Truncate(text, 80))
	}
	if e.journal == nil {
		return
	}
	if jerr := e.journal.LogDelivery(text, err); jerr != nil {
		logging.Debug("engine", "journal: %v", jerr)
	}
}

func systemf(format string, args ...any) string {
	return SystemPrefix + " " + fmt.Sprintf(format, args...)
}
