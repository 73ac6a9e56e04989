package job

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/mitchellh/colorstring"

	"github.com/gobuild/core/internal/executor"
)

// TextProgress is a reference executor.Progress implementation that
// writes a line per command and a final summary to an io.Writer, with
// colorstring markup the way opentofu's command views colorize their
// terminal output (internal/command/views.View).
type TextProgress struct {
	out      io.Writer
	colorize *colorstring.Colorize

	mu        sync.Mutex
	total     int
	completed int32
	cancelled int32
}

// NewTextProgress creates a TextProgress writing to out. disableColor
// mirrors the --no-color flag most CLI front-ends in this corpus
// expose.
func NewTextProgress(out io.Writer, disableColor bool) *TextProgress {
	return &TextProgress{
		out: out,
		colorize: &colorstring.Colorize{
			Colors:  colorstring.DefaultColors,
			Disable: disableColor,
			Reset:   true,
		},
	}
}

func (p *TextProgress) TaskStarted(description string, totalEffort int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.total = totalEffort
	fmt.Fprint(p.out, p.colorize.Color(fmt.Sprintf("[bold]==> %s (%d units of work)[reset]\n", description, totalEffort)))
}

func (p *TextProgress) TaskProgress(value int) {
	atomic.StoreInt32(&p.completed, int32(value))
}

func (p *TextProgress) IsCancelled() bool {
	return atomic.LoadInt32(&p.cancelled) != 0
}

// Cancel requests that the build stop dispatching new work; it is
// polled by IsCancelled, typically from a signal handler.
func (p *TextProgress) Cancel() {
	atomic.StoreInt32(&p.cancelled, 1)
}

func (p *TextProgress) CommandDescription(highlight, message string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprint(p.out, p.colorize.Color(fmt.Sprintf("[bold][green]%s[reset] %s\n", highlight, message)))
}

func (p *TextProgress) ProcessResult(result executor.ProcessResult) {
	if result.Success {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprint(p.out, p.colorize.Color(fmt.Sprintf("[red]FAILED[reset] (exit %d): %s\n", result.ExitCode, result.CommandLine)))
	if len(result.Stderr) > 0 {
		p.out.Write(result.Stderr)
	}
}
