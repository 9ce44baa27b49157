package loader

import "fmt"

// State is the lifecycle position of a ModuleJob.  Transitions only move
// forward: Pending, Instantiating, Linking, Evaluating, then Done or Failed.
type State int

const (
	Pending State = iota
	Instantiating
	Linking
	Evaluating
	Done
	Failed
)

var stateNames = [...]string{
	Pending:       "pending",
	Instantiating: "instantiating",
	Linking:       "linking",
	Evaluating:    "evaluating",
	Done:          "done",
	Failed:        "failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

// Finished reports whether s is terminal.
func (s State) Finished() bool {
	return s == Done || s == Failed
}
