package engine

import (
	"fmt"
	"os"
	"strings"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/vthunder/chatbot/internal/logging"
	"github.com/vthunder/chatbot/internal/prompt"
)

// command runs an admin command. ok is false for anything that is not a
// known command, in which case the text is treated as ordinary chat.
func (e *Engine) command(speaker, name string) (string, bool) {
	var reply string
	switch name {
	case "reset":
		reply = e.resetCommand()
	case "reload":
		reply = e.reloadCommand()
	case "summary":
		reply = e.summaryCommand()
	case "status":
		reply = e.statusCommand()
	default:
		return "", false
	}

	logging.Info("engine", "Command !%s from %s", name, speaker)
	if e.journal != nil {
		if err := e.journal.LogCommand(CommandPrefix+name, speaker, reply); err != nil {
			logging.Debug("engine", "journal: %v", err)
		}
	}
	return reply, true
}

func (e *Engine) resetCommand() string {
	var reloadErr error
	ok := e.scheduler.TryReset(func() {
		reloadErr = e.Reload()
		e.history.Reset()
	})
	switch {
	case !ok:
		return systemf("Busy generating a reply. Try again in a moment.")
	case reloadErr != nil:
		logging.Info("engine", "Reload during reset failed: %v", reloadErr)
		return systemf("Reset to initial state. Reload failed, keeping previous settings: %v", reloadErr)
	default:
		return systemf("Reset to initial state. Settings reloaded.")
	}
}

func (e *Engine) reloadCommand() string {
	if err := e.Reload(); err != nil {
		logging.Info("engine", "Reload failed: %v", err)
		return systemf("Reload failed, keeping previous settings: %v", err)
	}
	return systemf("Settings reloaded.")
}

func (e *Engine) summaryCommand() string {
	summary, ok := e.scheduler.LastSummary()
	if !ok {
		summary = "None"
	}
	return systemf("Previous summary:\n%s", summary)
}

func (e *Engine) statusCommand() string {
	rt := e.rt.Load()
	b := prompt.New(rt.cfg, rt.counter, e.history)

	var lines []string
	lines = append(lines, fmt.Sprintf("State: %s", e.scheduler.State()))
	lines = append(lines, fmt.Sprintf("History: %d messages, budget %d tokens", e.history.Len(), b.Budget()))
	if stop := b.StopNames(); len(stop) > 0 {
		lines = append(lines, fmt.Sprintf("Speakers: %s", strings.Join(stop, " ")))
	}
	if usage, err := processUsage(); err == nil {
		lines = append(lines, usage)
	} else {
		logging.Debug("engine", "process stats: %v", err)
	}
	return systemf("Status\n%s", strings.Join(lines, "\n"))
}

func processUsage() (string, error) {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return "", err
	}
	mem, err := p.MemoryInfo()
	if err != nil {
		return "", err
	}
	cpu, err := p.CPUPercent()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Process: %.1f MiB RSS, %.1f%% CPU", float64(mem.RSS)/(1<<20), cpu), nil
}
