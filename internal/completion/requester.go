package completion

import (
	"context"
	"errors"
	"time"

	"github.com/vthunder/chatbot/internal/config"
	"github.com/vthunder/chatbot/internal/history"
	"github.com/vthunder/chatbot/internal/logging"
	"github.com/vthunder/chatbot/internal/prompt"
	"github.com/vthunder/chatbot/internal/sanitiser"
)

// MaxAttempts is how many backend calls a summary or reply gets before the
// run gives up on it
const MaxAttempts = 4

const (
	kindSummary = "summary"
	kindReply   = "reply"
)

// Recorder receives one record per backend call
type Recorder interface {
	LogAttempt(kind string, attempt int, accepted bool, output string, callErr error, took time.Duration) error
}

// Snapshot is the configuration one generation run works from. It is taken
// once per run so a reload in the middle never mixes two configurations.
type Snapshot struct {
	Config    *config.Config
	Sanitiser *sanitiser.Sanitiser
	Builder   *prompt.Builder
}

// Result is the outcome of a generation run
type Result struct {
	Reply   string
	Summary string // empty when no summary was produced
}

// Requester runs summary and reply generation with bounded retries
type Requester struct {
	backend  Backend
	history  *history.History
	snapshot func() Snapshot
	recorder Recorder
}

// NewRequester creates a requester. snapshot is called at the start of every run.
func NewRequester(backend Backend, h *history.History, snapshot func() Snapshot) *Requester {
	return &Requester{
		backend:  backend,
		history:  h,
		snapshot: snapshot,
	}
}

// SetRecorder attaches a per-attempt recorder (the journal)
func (r *Requester) SetRecorder(rec Recorder) {
	r.recorder = rec
}

// Generate runs one full generation: optional summary, chat prompt, reply.
// Failures are logged and reported as ok == false, never as errors.
func (r *Requester) Generate(ctx context.Context) (Result, bool) {
	snap := r.snapshot()
	stop := snap.Builder.StopNames()

	var res Result
	if summary, ok := r.summary(ctx, snap, stop); ok {
		res.Summary = summary
	}

	reply, ok := r.reply(ctx, snap, stop, res.Summary)
	res.Reply = reply
	return res, ok
}

// GenerateSummary produces a summary of the history, when the history is
// long enough and a summary format is configured
func (r *Requester) GenerateSummary(ctx context.Context, snap Snapshot) (string, bool) {
	return r.summary(ctx, snap, snap.Builder.StopNames())
}

// GenerateReply produces the bot's next message
func (r *Requester) GenerateReply(ctx context.Context, snap Snapshot, summary string) (string, bool) {
	return r.reply(ctx, snap, snap.Builder.StopNames(), summary)
}

func (r *Requester) summary(ctx context.Context, snap Snapshot, stop []string) (string, bool) {
	if !snap.Config.HasSummary() || r.history.Len() <= prompt.SummaryWindow {
		return "", false
	}

	text, err := snap.Builder.SummaryPrompt()
	if err != nil {
		logging.Info("completion", "Summary prompt: %v", err)
		return "", false
	}
	logging.Block("completion", "Summary prompt", text)

	summary, ok := r.call(ctx, kindSummary, snap, snap.Config.SummaryParams, text, stop)
	if !ok {
		logging.Info("completion", "Summary generation failed. Continuing without summary.")
		return "", false
	}
	logging.Block("completion", "Summary", summary)
	return summary, true
}

func (r *Requester) reply(ctx context.Context, snap Snapshot, stop []string, summary string) (string, bool) {
	text := snap.Builder.ChatPrompt(summary)
	logging.Block("completion", "Chat prompt", text)

	reply, ok := r.call(ctx, kindReply, snap, snap.Config.ChatParams, text, stop)
	if !ok {
		logging.Info("completion", "Response generation failed")
		return "", false
	}
	logging.Info("completion", "Response: %s", logging.Truncate(reply, 80))
	return reply, true
}

// call makes up to MaxAttempts backend calls and returns the first output
// the sanitiser accepts
func (r *Requester) call(ctx context.Context, kind string, snap Snapshot, params config.Params, text string, stop []string) (string, bool) {
	body := params.Request(text, stop)

	for attempt := 1; attempt <= MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			return "", false
		}

		start := time.Now()
		raw, err := r.backend.Complete(ctx, body)
		took := time.Since(start)
		if err != nil {
			var se *StatusError
			if errors.As(err, &se) {
				logging.Info("completion", "%s attempt %d/%d: status %d", kind, attempt, MaxAttempts, se.StatusCode)
			} else {
				logging.Info("completion", "%s attempt %d/%d: %v", kind, attempt, MaxAttempts, err)
			}
			r.record(kind, attempt, false, "", err, took)
			continue
		}

		out, ok := snap.Sanitiser.SanitiseOutbound(raw)
		r.record(kind, attempt, ok, raw, nil, took)
		if ok {
			return out, true
		}
		logging.Debug("completion", "%s attempt %d/%d rejected: %q", kind, attempt, MaxAttempts, logging.Truncate(raw, 80))
	}
	return "", false
}

func (r *Requester) record(kind string, attempt int, accepted bool, output string, callErr error, took time.Duration) {
	if r.recorder == nil {
		return
	}
	if err := r.recorder.LogAttempt(kind, attempt, accepted, output, callErr, took); err != nil {
		logging.Debug("completion", "journal: %v", err)
	}
}
