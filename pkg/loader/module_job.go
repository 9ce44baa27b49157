package loader

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"github.com/rs/zerolog"

	"github.com/stackb/modload/pkg/format"
	"github.com/stackb/modload/pkg/module"
)

// ModuleJob drives one module through instantiation, linking and
// evaluation.  It runs at most once; its outcome, success or failure, is
// kept and returned to every later caller.
type ModuleJob struct {
	loader   *Loader
	url      *url.URL
	format   format.Format
	strategy format.Strategy
	logger   zerolog.Logger

	mu     sync.Mutex
	state  State
	owner  *session
	linked bool
	record module.Record
	deps   []dependency
	err    error
	// wake is closed and replaced whenever the job finishes or is released
	// by its owner.
	wake chan struct{}
	done chan struct{}
}

type dependency struct {
	specifier string
	job       *ModuleJob
}

func newModuleJob(l *Loader, u *url.URL, f format.Format, strategy format.Strategy) *ModuleJob {
	return &ModuleJob{
		loader:   l,
		url:      u,
		format:   f,
		strategy: strategy,
		logger:   l.logger.With().Str("url", u.String()).Logger(),
		wake:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// URL returns the canonical location of the module.
func (j *ModuleJob) URL() *url.URL { return j.url }

// Format returns the module format.
func (j *ModuleJob) Format() format.Format { return j.format }

// State returns the current state.
func (j *ModuleJob) State() State {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state
}

// Err returns the failure of a Failed job.
func (j *ModuleJob) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.err
}

// Record returns the module record, nil before instantiation.
func (j *ModuleJob) Record() module.Record {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.record
}

// Done is closed when the job is Done or Failed.
func (j *ModuleJob) Done() <-chan struct{} {
	return j.done
}

// Dependencies returns the jobs linked to the module's requests, keyed by
// request.
func (j *ModuleJob) Dependencies() map[string]*ModuleJob {
	j.mu.Lock()
	defer j.mu.Unlock()
	deps := make(map[string]*ModuleJob, len(j.deps))
	for _, d := range j.deps {
		deps[d.specifier] = d.job
	}
	return deps
}

// Run instantiates, links and evaluates the module and its dependencies.
// Calls from other link sessions wait for the outcome; a call that would
// wait on a cycle of sessions, or that re-enters a job of its own session,
// returns the record as it currently is.
func (j *ModuleJob) Run(ctx context.Context) (module.Record, error) {
	s, nested := sessionFrom(ctx)
	if !nested {
		s = j.loader.waits.newSession()
		ctx = withSession(ctx, s)
		defer j.loader.endSession(s)
	}

	if err := j.link(ctx, s); err != nil {
		return nil, err
	}
	if err := j.evaluate(ctx, s); err != nil {
		return nil, err
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state == Failed {
		return nil, j.err
	}
	if j.record == nil {
		return nil, fmt.Errorf("module %s is still being instantiated", j.url)
	}
	return j.record, nil
}

// enter claims the job for s.  It reports true when s must drive the job.
// Otherwise the job is finished, cyclic for s, or owned by a session that
// would deadlock with s; err is the failure of a Failed job.
func (j *ModuleJob) enter(s *session) (bool, error) {
	for {
		j.mu.Lock()
		switch {
		case j.state == Failed:
			err := j.err
			j.mu.Unlock()
			return false, err
		case j.state == Done:
			j.mu.Unlock()
			return false, nil
		case j.owner == s:
			j.mu.Unlock()
			return false, nil
		case j.owner == nil:
			j.owner = s
			s.own(j)
			if j.state == Pending {
				j.setState(Instantiating)
			}
			j.mu.Unlock()
			return true, nil
		}
		owner, wake := j.owner, j.wake
		j.mu.Unlock()

		if !j.loader.waits.begin(s, owner) {
			j.logger.Debug().Msg("cyclic wait between link sessions; using partial module")
			return false, nil
		}
		<-wake
		j.loader.waits.end(s)
	}
}

func (j *ModuleJob) link(ctx context.Context, s *session) error {
	proceed, err := j.enter(s)
	if !proceed || err != nil {
		return err
	}

	j.mu.Lock()
	if j.linked {
		// Adopted from a session that ended before evaluating it.
		deps := j.deps
		j.mu.Unlock()
		for _, d := range deps {
			if err := d.job.link(ctx, s); err != nil {
				return j.fail(&LinkError{URL: j.url.String(), Specifier: d.specifier, Err: err})
			}
		}
		return nil
	}
	j.mu.Unlock()

	rec, err := j.strategy(ctx, j.url)
	if err != nil {
		return j.fail(err)
	}

	j.mu.Lock()
	j.record = rec
	j.setState(Linking)
	j.mu.Unlock()

	deps := make([]dependency, 0, len(rec.Requests()))
	for _, req := range rec.Requests() {
		dep, err := j.loader.ModuleJob(ctx, req, j.url.String())
		if err != nil {
			return j.fail(&LinkError{URL: j.url.String(), Specifier: req, Err: err})
		}
		if err := dep.link(ctx, s); err != nil {
			return j.fail(&LinkError{URL: j.url.String(), Specifier: req, Err: err})
		}
		deps = append(deps, dependency{specifier: req, job: dep})
	}

	j.mu.Lock()
	j.deps = deps
	j.linked = true
	j.mu.Unlock()
	return nil
}

func (j *ModuleJob) evaluate(ctx context.Context, s *session) error {
	j.mu.Lock()
	switch {
	case j.state == Failed:
		err := j.err
		j.mu.Unlock()
		return err
	case j.state == Done, j.owner != s, j.state == Evaluating, !j.linked:
		j.mu.Unlock()
		return nil
	}
	j.setState(Evaluating)
	rec, deps := j.record, j.deps
	j.mu.Unlock()

	imports := make(module.Imports, len(deps))
	for _, d := range deps {
		if err := d.job.evaluate(ctx, s); err != nil {
			return j.fail(&LinkError{URL: j.url.String(), Specifier: d.specifier, Err: err})
		}
		depRec := d.job.Record()
		if depRec == nil {
			return j.fail(&LinkError{URL: j.url.String(), Specifier: d.specifier, Err: fmt.Errorf("module %s is still being instantiated", d.job.url)})
		}
		imports[d.specifier] = depRec.Namespace()
	}

	if err := rec.Evaluate(ctx, imports); err != nil {
		return j.fail(&EvaluationError{URL: j.url.String(), Err: err})
	}

	j.mu.Lock()
	j.setState(Done)
	j.notify()
	close(j.done)
	j.mu.Unlock()
	return nil
}

func (j *ModuleJob) fail(err error) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state.Finished() {
		return j.err
	}
	j.err = err
	j.setState(Failed)
	j.notify()
	close(j.done)
	j.logger.Debug().Err(err).Msg("module failed")
	return err
}

// release gives up ownership of an unfinished job when its session ends
// so another session can adopt it.
func (j *ModuleJob) release(s *session) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.owner != s || j.state.Finished() {
		return
	}
	j.owner = nil
	j.notify()
}

func (j *ModuleJob) notify() {
	close(j.wake)
	j.wake = make(chan struct{})
}

// setState must be called with j.mu held.
func (j *ModuleJob) setState(st State) {
	if st <= j.state {
		return
	}
	j.state = st
	j.logger.Debug().Stringer("state", st).Msg("module job")
	j.loader.reportState(j, st)
}
