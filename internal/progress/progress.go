package progress

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/fatih/color"
	"github.com/gosuri/uilive"
)

// Reporter follows the steps of a build
type Reporter interface {
	Begin(step, detail string)
	Finish(step string)
}

// Nop reports nothing
type Nop struct{}

func (Nop) Begin(step, detail string) {}
func (Nop) Finish(step string)        {}

type stepState struct {
	name   string
	detail string
	active bool
}

// Live redraws a step list in place on a terminal
type Live struct {
	mu     sync.Mutex
	writer *uilive.Writer
	steps  []*stepState
	failed bool
}

// NewLive returns a Live reporter writing to out
func NewLive(out io.Writer) *Live {
	w := uilive.New()
	w.Out = out
	return &Live{writer: w}
}

func (l *Live) Start() {
	l.writer.Start()
}

// Stop draws the final state. ok false marks the active step as failed.
func (l *Live) Stop(ok bool) {
	l.mu.Lock()
	l.failed = !ok
	l.mu.Unlock()
	l.update()
	l.writer.Stop()
}

func (l *Live) Begin(step, detail string) {
	l.mu.Lock()
	l.steps = append(l.steps, &stepState{name: step, detail: detail, active: true})
	l.mu.Unlock()
	l.update()
}

func (l *Live) Finish(step string) {
	l.mu.Lock()
	for _, s := range l.steps {
		if s.name == step {
			s.active = false
		}
	}
	l.mu.Unlock()
	l.update()
}

func (l *Live) update() {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprint(l.writer, render(l.steps, l.failed))
}

func render(steps []*stepState, failed bool) string {
	cyan := color.New(color.FgCyan).SprintFunc()
	grn := color.New(color.FgHiGreen).SprintFunc()
	red := color.New(color.FgHiRed).SprintFunc()

	done := 0
	for _, s := range steps {
		if !s.active {
			done++
		}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s Steps completed\n", cyan(fmt.Sprintf("[%d/%d]", done, len(steps))))
	for _, s := range steps {
		if !s.active {
			continue
		}
		line := fmt.Sprintf("\t%s: %s\n", s.name, s.detail)
		if failed {
			sb.WriteString(red(line))
		} else {
			sb.WriteString(grn(line))
		}
	}
	return sb.String()
}
