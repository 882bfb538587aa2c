// Package report prints human-readable deployment progress. Every action
// announces itself here before it runs; the same events are mirrored into
// zerolog for structured logs.
package report

import (
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"
	"github.com/pterm/pterm"
	"github.com/rs/zerolog"
)

// 🎨 Display configuration
const (
	actionIndent = 2  // spaces to indent action entries
	verbWidth    = 14 // width for the action verb column
)

// 📢 Reporter prints user-facing progress for one batch of deployments.
type Reporter struct {
	zlog    zerolog.Logger
	console io.Writer
	mu      sync.Mutex

	unitCount int
	failures  []string
}

// 🏭 New creates a reporter writing to console.
func New(console io.Writer, zlog zerolog.Logger) *Reporter {
	return &Reporter{zlog: zlog, console: console}
}

// 📝 StartUnit announces that a deployable unit is being attempted.
func (r *Reporter) StartUnit(identity, url string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.unitCount++
	pterm.DefaultSection.WithWriter(r.console).Printfln("deploying %s", identity)
	fmt.Fprintf(r.console, "%s %s\n",
		color.New(color.FgMagenta).Sprint("◆"),
		color.New(color.Faint).Sprint(url))

	r.zlog.Info().Str("unit", identity).Str("url", url).Msg("deploying unit")
}

// 📝 Action announces one action before it runs.
func (r *Reporter) Action(verb, src, dst string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	fmt.Fprintf(r.console, "%*s%s %s %s %s\n",
		actionIndent, "",
		color.New(color.FgCyan).Sprintf("%-*s", verbWidth, verb),
		src,
		color.New(color.Faint).Sprint("->"),
		dst)

	r.zlog.Info().Str("action", verb).Str("src", src).Str("dst", dst).Msg("running action")
}

// 📝 Detail prints a secondary line under the current action.
func (r *Reporter) Detail(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()

	fmt.Fprintf(r.console, "%*s%s\n", actionIndent*2, "",
		color.New(color.Faint).Sprintf(format, args...))
	r.zlog.Debug().Msg(fmt.Sprintf(format, args...))
}

// ⚠️ Warn prints a non-fatal diagnostic.
func (r *Reporter) Warn(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()

	msg := fmt.Sprintf(format, args...)
	pterm.Warning.WithWriter(r.console).Println(msg)
	r.zlog.Warn().Msg(msg)
}

// ✅ UnitSucceeded records a successful unit.
func (r *Reporter) UnitSucceeded(identity string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	pterm.Success.WithWriter(r.console).Printfln("deployed %s", identity)
	r.zlog.Info().Str("unit", identity).Msg("unit deployed")
}

// ⏭️ UnitSkipped records a unit without an instruction document.
func (r *Reporter) UnitSkipped(identity, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	pterm.Info.WithWriter(r.console).Printfln("skipped %s (%s)", identity, reason)
	r.zlog.Info().Str("unit", identity).Str("reason", reason).Msg("unit skipped")
}

// ❌ UnitFailed records a failed unit; the batch continues regardless.
func (r *Reporter) UnitFailed(identity string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.failures = append(r.failures, identity)
	pterm.Error.WithWriter(r.console).Printfln("failed to deploy %s - %v", identity, err)
	r.zlog.Error().Err(err).Str("unit", identity).Msg("unit failed")
}

// 📊 Summary prints the batch outcome after all units were attempted.
func (r *Reporter) Summary() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.failures) == 0 {
		pterm.Success.WithWriter(r.console).Printfln("%d unit(s) deployed", r.unitCount)
		r.zlog.Info().Int("units", r.unitCount).Msg("batch complete")
		return
	}
	pterm.Error.WithWriter(r.console).Printfln("%d of %d unit(s) failed: %v",
		len(r.failures), r.unitCount, r.failures)
	r.zlog.Error().Int("units", r.unitCount).Strs("failed", r.failures).Msg("batch finished with failures")
}
