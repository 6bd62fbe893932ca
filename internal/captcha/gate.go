package captcha

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
)

// Gate suspends the run until a human reports the challenge solved.
type Gate interface {
	Wait(ctx context.Context, reason string) error
}

// TerminalGate asks on a terminal and resumes when a line is entered.
// A single goroutine reads the input for the life of the gate, so a Wait
// abandoned on cancellation leaves no reader behind.
type TerminalGate struct {
	mu    sync.Mutex
	in    *bufio.Reader
	out   io.Writer
	once  sync.Once
	lines chan error
}

// NewTerminalGate returns a gate prompting on out and reading from in.
func NewTerminalGate(in io.Reader, out io.Writer) *TerminalGate {
	return &TerminalGate{in: bufio.NewReader(in), out: out, lines: make(chan error)}
}

// read delivers one result per input line and closes lines at the first
// read error.
func (g *TerminalGate) read() {
	defer close(g.lines)
	for {
		_, err := g.in.ReadString('\n')
		g.lines <- err
		if err != nil {
			return
		}
	}
}

// Wait implements Gate.
func (g *TerminalGate) Wait(ctx context.Context, reason string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	line := strings.Repeat("=", 60)
	fmt.Fprintf(g.out, "\n%s\nCAPTCHA needs a human (%s).\nSolve it in the browser, then press Enter to resume.\n%s\n", line, reason, line)

	g.once.Do(func() { go g.read() })

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err, ok := <-g.lines:
		if !ok || errors.Is(err, io.EOF) {
			return ErrNoInput
		}
		return err
	}
}

// ChannelGate resumes when Resume is called, so another front end, such
// as an HTTP handler, can release the run.
type ChannelGate struct {
	resume  chan struct{}
	prompts chan string
}

// NewChannelGate returns a ChannelGate.
func NewChannelGate() *ChannelGate {
	return &ChannelGate{
		resume:  make(chan struct{}, 1),
		prompts: make(chan string, 1),
	}
}

// Prompts delivers the reason of each Wait. A reason is dropped while an
// earlier one is still unread.
func (g *ChannelGate) Prompts() <-chan string {
	return g.prompts
}

// Resume releases the current or next Wait.
func (g *ChannelGate) Resume() {
	select {
	case g.resume <- struct{}{}:
	default:
	}
}

// Wait implements Gate.
func (g *ChannelGate) Wait(ctx context.Context, reason string) error {
	select {
	case g.prompts <- reason:
	default:
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-g.resume:
		return nil
	}
}

var (
	_ Gate = (*TerminalGate)(nil)
	_ Gate = (*ChannelGate)(nil)
)
