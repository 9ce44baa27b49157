package legacy

import "strings"

// requireStack is the chain of files currently being required, outermost
// first.
type requireStack []string

// push returns a new stack with x on top; the receiver is not modified.
func (s requireStack) push(x string) requireStack {
	next := make(requireStack, len(s), len(s)+1)
	copy(next, s)
	return append(next, x)
}

// peek returns the top element, or false if the stack is empty.
func (s requireStack) peek() (string, bool) {
	if len(s) == 0 {
		return "", false
	}
	return s[len(s)-1], true
}

func (s requireStack) contains(x string) bool {
	for _, e := range s {
		if e == x {
			return true
		}
	}
	return false
}

func (s requireStack) String() string {
	return strings.Join(s, " -> ")
}
