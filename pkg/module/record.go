// Package module defines the executable module contract shared by every
// loading strategy: a Record declares its dependency requests, is evaluated
// once against the namespaces of those dependencies, and exposes its own
// Namespace.
package module

import (
	"context"
	"net/url"
)

// Imports maps a dependency request (exactly as written in the module) to
// the namespace it was linked to.
type Imports map[string]*Namespace

// Record is an instantiated module.
type Record interface {
	// URL returns the canonical location of the module.
	URL() *url.URL
	// Requests returns the statically declared dependency specifiers, in
	// source order, without duplicates.
	Requests() []string
	// Namespace returns the module's namespace.  It is available as soon as
	// the record exists; its bindings are assigned during Evaluate.
	Namespace() *Namespace
	// Evaluate executes the module body.  It is called at most once, after
	// every request has been linked.
	Evaluate(ctx context.Context, imports Imports) error
}
