package runcmder

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/Goer17/InnoTree/pkg/cliui"
	"github.com/Goer17/InnoTree/pkg/eventstream"
	"github.com/Goer17/InnoTree/pkg/utils"
)

// progress shows one spinner per trial. It receives commit and finish
// events from the search manager and snapshot sizes from the stream.
type progress struct {
	w      io.Writer
	trials int

	mu      sync.Mutex
	spinner *cliui.Spinner
	trial   int
	nodes   int
	done    chan struct{}
	closed  bool
}

var _ eventstream.Publisher = (*progress)(nil)

func newProgress(w io.Writer, trials int) *progress {
	p := &progress{w: w, trials: trials, done: make(chan struct{})}
	p.spinner = cliui.NewSpinner(w, p.message())
	return p
}

func (p *progress) message() string {
	return fmt.Sprintf("Trial %d/%d %s",
		p.trial+1, p.trials,
		cliui.StepStyle.Render(fmt.Sprintf("(%d nodes)", p.nodes)),
	)
}

// snapshot records the size of the latest tree.
func (p *progress) snapshot(nodes int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.spinner == nil {
		return
	}
	p.nodes = nodes
	p.spinner.Update(p.message())
}

func (p *progress) Publish(_ context.Context, ev *eventstream.SearchEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch ev.EventType {
	case eventstream.EventTypeSearchCommitted:
		if p.spinner == nil || len(ev.Frozen) == 0 {
			return nil
		}
		committed := ev.Frozen[len(ev.Frozen)-1]
		p.spinner.Update(fmt.Sprintf("Trial %d/%d committed %s %s",
			ev.Trials, p.trials,
			cliui.KindStyle.Render(committed.Kind),
			utils.Truncate(committed.Content, 60),
		))
		p.spinner.Stop(nil)
		p.trial = ev.Trials
		p.spinner = nil
		if p.trial < p.trials {
			p.spinner = cliui.NewSpinner(p.w, p.message())
		}
	case eventstream.EventTypeSearchFinished:
		if !p.closed {
			p.closed = true
			close(p.done)
		}
	}
	return nil
}

// stop ends the running spinner, if any.
func (p *progress) stop(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.spinner != nil {
		p.spinner.Stop(err)
		p.spinner = nil
	}
}

func (p *progress) Close() error {
	p.stop(nil)
	return nil
}
