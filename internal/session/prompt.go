package session

import (
	"fmt"
	"io"
	"sync"
)

// DefaultLoginMessage is printed the first time a command hits a 401.
const DefaultLoginMessage = "Your session is missing or has expired. Run `greencycle login` to sign in."

// LoginPrompt is an unauthorized listener that shows its message at most once
// until Reset, however many 401s arrive.
type LoginPrompt struct {
	out     io.Writer
	message string

	mu    sync.Mutex
	shown bool
	count int
}

// NewLoginPrompt writes message to out. An empty message uses the default.
func NewLoginPrompt(out io.Writer, message string) *LoginPrompt {
	if message == "" {
		message = DefaultLoginMessage
	}
	return &LoginPrompt{out: out, message: message}
}

// Notify is the listener function registered with the event registry.
func (p *LoginPrompt) Notify() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.count++
	if p.shown {
		return
	}
	p.shown = true
	if p.out != nil {
		fmt.Fprintln(p.out, p.message)
	}
}

// Shown reports whether the prompt is currently displayed.
func (p *LoginPrompt) Shown() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.shown
}

// Count is the number of broadcasts received.
func (p *LoginPrompt) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.count
}

// Reset dismisses the prompt so the next broadcast shows it again.
func (p *LoginPrompt) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.shown = false
}
