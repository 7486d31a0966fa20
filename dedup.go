package docdedup

import (
	"context"
	"errors"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// OutputIndex is the persisted key to output mapping consulted before a job
// runs. *index.Store implements it.
type OutputIndex interface {
	TryGetOutput(ctx context.Context, key string) (string, bool, error)
	RegisterOutput(ctx context.Context, key, outputPath string) error
}

// Result describes where the output for a request lives.
type Result struct {
	Key        CacheKey
	OutputPath string
	Cached     bool // true when served from the index without running a job
}

// Deduplicator skips translation jobs whose output is already on disk.
type Deduplicator struct {
	index OutputIndex
	log   logrus.FieldLogger
	group singleflight.Group

	mu      sync.Mutex
	flights map[CacheKey]*flight
}

// flight is the job context shared by every caller waiting on one key. It
// is cancelled once the last waiter leaves.
type flight struct {
	ctx     context.Context
	cancel  context.CancelFunc
	waiters int
}

// DeduplicatorOption configures a Deduplicator.
type DeduplicatorOption func(*Deduplicator)

// WithLogger sets the logger used by the Deduplicator.
func WithLogger(log logrus.FieldLogger) DeduplicatorOption {
	return func(d *Deduplicator) {
		d.log = log
	}
}

// NewDeduplicator creates a Deduplicator over idx. Share one instance per
// index file.
func NewDeduplicator(idx OutputIndex, opts ...DeduplicatorOption) *Deduplicator {
	d := &Deduplicator{
		index:   idx,
		log:     logrus.StandardLogger(),
		flights: make(map[CacheKey]*flight),
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Lookup derives the key for req and checks the index without running any
// job. The Result is nil on a miss.
func (d *Deduplicator) Lookup(ctx context.Context, req Request) (*Result, error) {
	key, err := DeriveKey(ctx, req)
	if err != nil {
		return nil, err
	}
	return d.lookup(ctx, key)
}

// Translate returns the output for req, running job only when the index has
// no live entry for the request's key. Concurrent calls for the same key
// share a single job run. A caller whose ctx ends stops waiting without
// affecting the others; the job is cancelled only when every caller waiting
// on it has left.
//
// When the job succeeds but registering its output fails, the Result is
// returned together with the registration error.
func (d *Deduplicator) Translate(ctx context.Context, req Request, job Job) (*Result, error) {
	// Hashing happens here, outside the index lock.
	key, err := DeriveKey(ctx, req)
	if err != nil {
		return nil, err
	}

	res, err := d.lookup(ctx, key)
	if err != nil || res != nil {
		return res, err
	}

	jobCtx, leave := d.join(ctx, key)
	defer leave()

	ch := d.group.DoChan(string(key), func() (interface{}, error) {
		return d.run(jobCtx, req, key, job)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		// Callers sharing a flight must not share the Result.
		if shared, ok := r.Val.(*Result); ok && shared != nil {
			out := *shared
			return &out, r.Err
		}
		return nil, r.Err
	}
}

// run executes job for key and registers its output.
func (d *Deduplicator) run(ctx context.Context, req Request, key CacheKey, job Job) (*Result, error) {
	// A call that shared this flight's key may have registered meanwhile.
	if res, err := d.lookup(ctx, key); err != nil || res != nil {
		return res, err
	}

	d.log.WithField("key", key.Short()).Debug("cache miss, running job")
	path, err := job.Run(ctx, req, key)
	if err != nil {
		return nil, &JobError{Key: key, Cause: err}
	}

	res := &Result{Key: key, OutputPath: path}
	if err := d.index.RegisterOutput(ctx, string(key), path); err != nil {
		d.log.WithError(err).WithField("key", key.Short()).Error("failed to register output")
		return res, err
	}
	return res, nil
}

// join registers the caller as a waiter on key and returns the job context
// for the key. The context keeps ctx's values but not its cancellation; it
// is cancelled by leave when no waiter remains, and the key is then
// forgotten so a later caller starts a fresh job.
func (d *Deduplicator) join(ctx context.Context, key CacheKey) (context.Context, func()) {
	d.mu.Lock()
	f, ok := d.flights[key]
	if !ok {
		jobCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		f = &flight{ctx: jobCtx, cancel: cancel}
		d.flights[key] = f
	}
	f.waiters++
	d.mu.Unlock()

	return f.ctx, func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		f.waiters--
		if f.waiters > 0 {
			return
		}
		f.cancel()
		if d.flights[key] == f {
			delete(d.flights, key)
		}
		d.group.Forget(string(key))
	}
}

// lookup consults the index for key. Index failures other than cancellation
// degrade to a miss.
func (d *Deduplicator) lookup(ctx context.Context, key CacheKey) (*Result, error) {
	path, ok, err := d.index.TryGetOutput(ctx, string(key))
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		d.log.WithError(err).WithField("key", key.Short()).Warn("index lookup failed")
	}
	if !ok {
		return nil, nil
	}

	d.log.WithFields(logrus.Fields{"key": key.Short(), "path": path}).Debug("cache hit")
	return &Result{Key: key, OutputPath: path, Cached: true}, nil
}
