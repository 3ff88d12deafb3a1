// Package coretest provides a recording core.SignalConnection for tests.
package coretest

import (
	"encoding/json"
	"errors"
	"sync"

	"github.com/mavprep/voice/internal/core"
)

var (
	ErrFull   = errors.New("queue full")
	ErrClosed = errors.New("closed")
)

// Event is a decoded frame; Type is lifted out for filtering.
type Event struct {
	Type string
	Raw  map[string]any
}

func (e Event) Field(key string) string {
	s, _ := e.Raw[key].(string)
	return s
}

// Conn records every frame it accepts. Setting Full makes TrySend fail the
// way a saturated websocket queue does.
type Conn struct {
	mu     sync.Mutex
	frames []core.Frame
	full   bool
	closed bool
}

func NewConn() *Conn { return &Conn{} }

func (c *Conn) TrySend(f core.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if c.full {
		return ErrFull
	}
	c.frames = append(c.frames, f)
	return nil
}

func (c *Conn) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

func (c *Conn) SetFull(full bool) {
	c.mu.Lock()
	c.full = full
	c.mu.Unlock()
}

func (c *Conn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Conn) Events() []Event {
	c.mu.Lock()
	frames := make([]core.Frame, len(c.frames))
	copy(frames, c.frames)
	c.mu.Unlock()

	out := make([]Event, 0, len(frames))
	for _, f := range frames {
		raw := map[string]any{}
		if err := json.Unmarshal(f, &raw); err != nil {
			continue
		}
		t, _ := raw["type"].(string)
		out = append(out, Event{Type: t, Raw: raw})
	}
	return out
}

// OfType returns the recorded events of type t in arrival order.
func (c *Conn) OfType(t string) []Event {
	var out []Event
	for _, e := range c.Events() {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func (c *Conn) Reset() {
	c.mu.Lock()
	c.frames = nil
	c.mu.Unlock()
}
