package output

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/bgricker/genomeflow/internal/report"
	"github.com/bgricker/genomeflow/internal/workflow"
)

// Progress prints stage transitions as they happen. With a live timer it
// rewrites the running stage line every second, which only makes sense on a
// terminal.
type Progress struct {
	mu        sync.Mutex
	out       io.Writer
	now       func() time.Time
	running   string
	sample    string
	started   time.Time
	stopTimer chan struct{}
}

var _ workflow.Observer = (*Progress)(nil)

// NewProgress creates a progress observer writing to out.
func NewProgress(out io.Writer) *Progress {
	return &Progress{out: out, now: time.Now}
}

// StateChanged implements workflow.Observer.
func (p *Progress) StateChanged(sample string, state workflow.State) {
	if state != workflow.StatePending {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, "Sample %s\n", sample)
}

// StageStarted implements workflow.Observer.
func (p *Progress) StageStarted(sample, stage string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.running, p.sample, p.started = stage, sample, p.now()
	fmt.Fprintf(p.out, "  ⏳ %s\n", StageTitle(stage))
}

// StageFinished implements workflow.Observer.
func (p *Progress) StageFinished(_ string, res report.StageResult) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.running = ""
	if p.stopTimer != nil {
		// overwrite the running line in place
		fmt.Fprint(p.out, "\033[1A\033[K")
	}
	fmt.Fprintf(p.out, "  %s %s (%s)\n", statusGlyph(string(res.Status)), StageTitle(res.Stage), formatDuration(res.Duration))
	if res.Status == report.StatusFailed && res.Message != "" {
		fmt.Fprintf(p.out, "%s\n", indent(res.Message, "      "))
	}
}

// StartTimer starts redrawing the running stage with its elapsed time.
func (p *Progress) StartTimer() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopTimer != nil {
		return
	}
	stop := make(chan struct{})
	p.stopTimer = stop
	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				p.redraw()
			case <-stop:
				return
			}
		}
	}()
}

// StopTimer stops the live redraw.
func (p *Progress) StopTimer() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopTimer != nil {
		close(p.stopTimer)
		p.stopTimer = nil
	}
}

func (p *Progress) redraw() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running == "" {
		return
	}
	fmt.Fprintf(p.out, "\033[1A\033[K  ⏳ %s (%s)\n", StageTitle(p.running), formatDuration(p.now().Sub(p.started).Truncate(time.Second)))
}
