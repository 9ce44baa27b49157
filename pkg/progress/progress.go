// Package progress renders mobyprogress updates as plain text lines or as a
// stream of JSON messages.
package progress

import (
	"fmt"
	"io"
	"sync"

	"github.com/pcj/mobyprogress"
)

// NewProgressOutput returns an Output writing one plain text line per
// update.
func NewProgressOutput(out io.Writer) mobyprogress.Output {
	return &progressOutput{sf: &rawProgressFormatter{}, out: out}
}

// NewJSONOutput returns an Output writing one JSON message per update.
func NewJSONOutput(out io.Writer) mobyprogress.Output {
	return &progressOutput{sf: &jsonProgressFormatter{}, out: out}
}

// Discard is an Output that drops every update.
var Discard mobyprogress.Output = discard{}

type discard struct{}

func (discard) WriteProgress(mobyprogress.Progress) error { return nil }

type formatProgress interface {
	formatStatus(id, status string) []byte
	formatProgress(id, action string, progress *JSONProgress, last bool) []byte
}

type progressOutput struct {
	sf  formatProgress
	mu  sync.Mutex
	out io.Writer
}

// WriteProgress implements mobyprogress.Output.  It is safe for concurrent
// use.
func (out *progressOutput) WriteProgress(prog mobyprogress.Progress) error {
	var formatted []byte
	if prog.Message != "" {
		formatted = out.sf.formatStatus(prog.ID, prog.Message)
	} else {
		jsonProgress := JSONProgress{Current: prog.Current, Total: prog.Total, HideCounts: prog.HideCounts, Units: prog.Units}
		formatted = out.sf.formatProgress(prog.ID, prog.Action, &jsonProgress, prog.LastUpdate)
	}
	out.mu.Lock()
	defer out.mu.Unlock()
	_, err := out.out.Write(formatted)
	return err
}

// JSONProgress is the counter part of an update.
type JSONProgress struct {
	Current    int64  `json:"current,omitempty"`
	Total      int64  `json:"total,omitempty"`
	Units      string `json:"units,omitempty"`
	HideCounts bool   `json:"-"`
}

// String renders "current/total units", or "" when there is nothing to show.
func (p *JSONProgress) String() string {
	if p == nil || p.HideCounts || (p.Current <= 0 && p.Total <= 0) {
		return ""
	}
	s := fmt.Sprintf("%d", p.Current)
	if p.Total > 0 {
		s += fmt.Sprintf("/%d", p.Total)
	}
	if p.Units != "" {
		s += " " + p.Units
	}
	return s
}
