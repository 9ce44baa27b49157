package loader

import (
	"context"
	"sync"
	"sync/atomic"
)

// session is a link session: the jobs driven by one top-level Run.  Jobs
// re-entered by their owning session are cyclic and yield their partial
// record.
type session struct {
	id uint64

	mu    sync.Mutex
	owned []*ModuleJob
}

func (s *session) own(j *ModuleJob) {
	s.mu.Lock()
	s.owned = append(s.owned, j)
	s.mu.Unlock()
}

type sessionKey struct{}

func withSession(ctx context.Context, s *session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

func sessionFrom(ctx context.Context) (*session, bool) {
	s, ok := ctx.Value(sessionKey{}).(*session)
	return s, ok
}

// waitGraph records which session each blocked session waits for.  A wait
// that would close a cycle is refused.
type waitGraph struct {
	next atomic.Uint64

	mu    sync.Mutex
	waits map[*session]*session
}

func newWaitGraph() *waitGraph {
	return &waitGraph{waits: make(map[*session]*session)}
}

func (g *waitGraph) newSession() *session {
	return &session{id: g.next.Add(1)}
}

// begin records that s waits for owner.  It reports false, recording
// nothing, when owner (transitively) waits for s.
func (g *waitGraph) begin(s, owner *session) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	for t := owner; t != nil; t = g.waits[t] {
		if t == s {
			return false
		}
	}
	g.waits[s] = owner
	return true
}

func (g *waitGraph) end(s *session) {
	g.mu.Lock()
	delete(g.waits, s)
	g.mu.Unlock()
}
