// Package dispatch accepts work requests, serves them from the cache
// journal when possible, and otherwise runs them on a bounded worker pool
// under per-endpoint rate limits, journaling every outcome that reached
// the network.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/pario-ai/oracle/pkg/journal"
	"github.com/pario-ai/oracle/pkg/models"
	"github.com/pario-ai/oracle/pkg/observe"
	"github.com/pario-ai/oracle/pkg/provider"
	"github.com/pario-ai/oracle/pkg/throttle"
	"github.com/pario-ai/oracle/pkg/worker"
)

// ErrClosed is returned when work is submitted after Close.
var ErrClosed = errors.New("dispatcher closed")

// DefaultPollTimeout is the overall wait used by PollNext when neither the
// caller nor Options sets one.
const DefaultPollTimeout = 480 * time.Second

// Resolver maps model identifiers to endpoints.
type Resolver interface {
	Resolve(modelID string) (models.Endpoint, error)
	Default() string
}

// Executor performs one blocking exchange with an endpoint.
type Executor interface {
	Execute(ctx context.Context, ep models.Endpoint, req models.WorkRequest) (*worker.Exchange, error)
}

// Journal is the cache journal as seen by the dispatcher.
type Journal interface {
	Get(ctx context.Context, sort string, req models.WorkRequest) (*models.WorkOutcome, error)
	Put(ctx context.Context, sort string, outcome *models.WorkOutcome) error
}

// Options configures a Dispatcher. Directory, Executor and Pool are
// required.
type Options struct {
	Directory Resolver
	Executor  Executor
	Pool      *worker.Pool
	Limiter   *throttle.Limiter
	// Journal is optional; without one every request goes to the network.
	Journal Journal
	Sort    string
	// DefaultModel replaces an empty WorkRequest.Model. Defaults to the
	// directory's default.
	DefaultModel string
	// ShutdownDeadline, when non-zero, fails requests whose execution
	// would start after it.
	ShutdownDeadline time.Time
	// JournalTimeout bounds each journal exchange. Defaults to 10s.
	JournalTimeout time.Duration
	// DefaultTimeout is how long PollNext waits when called with a
	// non-positive timeout. Defaults to DefaultPollTimeout.
	DefaultTimeout time.Duration
	Metrics        *observe.Metrics
	Logger         *slog.Logger
}

// Dispatcher runs WorkRequests. Results are consumed either by polling
// (Submit and PollNext) or by waiting on a single request (Await); both
// share the same pool and limiter.
type Dispatcher struct {
	dir          Resolver
	exec         Executor
	pool         *worker.Pool
	limiter      *throttle.Limiter
	journal      Journal
	sort         string
	defaultModel string
	deadline     time.Time
	jtimeout     time.Duration
	ptimeout     time.Duration
	metrics      *observe.Metrics
	logger       *slog.Logger

	mu      sync.Mutex
	closed  bool
	ready   []*models.WorkOutcome
	wake    chan struct{}
	pending int

	work sync.WaitGroup
	puts sync.WaitGroup
}

// New creates a Dispatcher.
func New(opts Options) (*Dispatcher, error) {
	if opts.Directory == nil {
		return nil, errors.New("dispatch: directory is required")
	}
	if opts.Executor == nil {
		return nil, errors.New("dispatch: executor is required")
	}
	if opts.Pool == nil {
		return nil, errors.New("dispatch: worker pool is required")
	}

	d := &Dispatcher{
		dir:          opts.Directory,
		exec:         opts.Executor,
		pool:         opts.Pool,
		limiter:      opts.Limiter,
		journal:      opts.Journal,
		sort:         models.NormalizeSort(opts.Sort),
		defaultModel: opts.DefaultModel,
		deadline:     opts.ShutdownDeadline,
		jtimeout:     opts.JournalTimeout,
		ptimeout:     opts.DefaultTimeout,
		metrics:      opts.Metrics,
		logger:       opts.Logger,
		wake:         make(chan struct{}),
	}
	if d.limiter == nil {
		d.limiter = throttle.New()
	}
	if d.sort == "" {
		d.sort = models.SortApproxOracle
	}
	if d.defaultModel == "" {
		d.defaultModel = d.dir.Default()
	}
	if d.jtimeout <= 0 {
		d.jtimeout = 10 * time.Second
	}
	if d.ptimeout <= 0 {
		d.ptimeout = DefaultPollTimeout
	}
	if d.metrics == nil {
		d.metrics = observe.DefaultMetrics()
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	return d, nil
}

// Submit queues req and returns immediately. Its outcome is delivered by
// PollNext.
func (d *Dispatcher) Submit(req models.WorkRequest) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}
	d.pending++
	d.start(context.Background(), req, d.enqueue)
	return nil
}

// PollNext returns the next finished outcome, in completion order. It
// reports false if nothing finished within timeout; outstanding work is
// not affected. A non-positive timeout uses the configured default.
func (d *Dispatcher) PollNext(timeout time.Duration) (*models.WorkOutcome, bool) {
	if timeout <= 0 {
		timeout = d.ptimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		d.mu.Lock()
		if len(d.ready) > 0 {
			out := d.ready[0]
			d.ready[0] = nil
			d.ready = d.ready[1:]
			d.pending--
			d.mu.Unlock()
			return out, true
		}
		wake := d.wake
		d.mu.Unlock()

		select {
		case <-wake:
		case <-timer.C:
			return nil, false
		}
	}
}

// Pending returns the number of submitted outcomes not yet returned by
// PollNext.
func (d *Dispatcher) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending
}

// Await runs req and waits for its outcome. If ctx ends first Await
// returns ctx.Err(); the request still runs to completion and is
// journaled.
func (d *Dispatcher) Await(ctx context.Context, req models.WorkRequest) (*models.WorkOutcome, error) {
	done := make(chan *models.WorkOutcome, 1)

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil, ErrClosed
	}
	d.start(context.WithoutCancel(ctx), req, func(out *models.WorkOutcome) { done <- out })
	d.mu.Unlock()

	select {
	case out := <-done:
		return out, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close stops accepting work and waits for in-flight requests and journal
// writes to finish, or for ctx to end.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.work.Wait()
		d.puts.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) enqueue(out *models.WorkOutcome) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ready = append(d.ready, out)
	close(d.wake)
	d.wake = make(chan struct{})
}

// start launches the lifecycle of one request. Must be called with mu held
// so that Close cannot begin waiting before work.Add.
func (d *Dispatcher) start(ctx context.Context, req models.WorkRequest, deliver func(*models.WorkOutcome)) {
	d.work.Add(1)
	go func() {
		defer d.work.Done()

		ctx, span := observe.StartSpan(ctx, "dispatch.execute",
			trace.WithAttributes(attribute.String("request.key", req.Key)))

		ep, req, out := d.prepare(ctx, req)
		if out != nil {
			d.finish(ctx, span, out)
			deliver(out)
			return
		}

		d.work.Add(1)
		d.pool.Go(func() {
			defer d.work.Done()
			out := d.run(ctx, ep, req)
			d.finish(ctx, span, out)
			deliver(out)
		})
	}()
}

// prepare resolves the model and consults the journal. A non-nil outcome
// means the request is already finished.
func (d *Dispatcher) prepare(ctx context.Context, req models.WorkRequest) (models.Endpoint, models.WorkRequest, *models.WorkOutcome) {
	if req.Model == "" {
		req.Model = d.defaultModel
	}
	ep, err := d.dir.Resolve(req.Model)
	if err != nil {
		return ep, req, models.NewFailure(req, models.ErrUnknownModel, err.Error(), "")
	}
	req.Model = ep.ID
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("model", ep.ID))

	if d.journal == nil {
		return ep, req, nil
	}

	jctx, cancel := context.WithTimeout(ctx, d.jtimeout)
	cached, err := d.journal.Get(jctx, d.sort, req)
	cancel()
	switch {
	case err == nil && cached.Value() != "":
		cached.CacheHit = true
		d.metrics.RecordCacheLookup(ctx, observe.CacheHit)
		return ep, req, cached
	case err == nil || errors.Is(err, journal.ErrMiss):
		d.metrics.RecordCacheLookup(ctx, observe.CacheMiss)
	default:
		d.metrics.RecordCacheLookup(ctx, observe.CacheUnavailable)
		d.metrics.RecordJournalError(ctx, "get")
		observe.Logger(ctx, d.logger).Debug("journal lookup failed",
			"kind", models.ErrJournalUnavailable, "key", req.Key, "error", err)
	}
	return ep, req, nil
}

// run executes req on the calling pool slot.
func (d *Dispatcher) run(ctx context.Context, ep models.Endpoint, req models.WorkRequest) *models.WorkOutcome {
	d.metrics.InFlight.Add(ctx, 1)
	defer d.metrics.InFlight.Add(ctx, -1)

	if d.pastDeadline() {
		return d.deadlineFailure(req)
	}

	// The throttle sleep must not carry a request past the deadline.
	wctx := ctx
	if !d.deadline.IsZero() {
		var cancel context.CancelFunc
		wctx, cancel = context.WithDeadline(ctx, d.deadline)
		defer cancel()
	}
	wait, err := d.limiter.Wait(wctx, ep.ThrottleKey(), ep.Rate)
	if wait > 0 {
		d.metrics.RecordThrottleWait(ctx, ep.ID, wait)
	}
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && d.pastDeadline() {
			return d.deadlineFailure(req)
		}
		return models.NewFailure(req, models.ErrDeadlineExceeded, err.Error(), "")
	}
	if d.pastDeadline() {
		return d.deadlineFailure(req)
	}

	out, reached := d.call(ctx, ep, req)
	if reached && d.journal != nil {
		d.put(ctx, out)
	}
	return out
}

func (d *Dispatcher) pastDeadline() bool {
	return !d.deadline.IsZero() && !time.Now().Before(d.deadline)
}

func (d *Dispatcher) deadlineFailure(req models.WorkRequest) *models.WorkOutcome {
	return models.NewFailure(req, models.ErrDeadlineExceeded,
		fmt.Sprintf("shutdown deadline %s has passed", d.deadline.Format(time.RFC3339)), "")
}

// call runs the executor, converting errors and panics into failures. It
// reports whether the exchange reached the network.
func (d *Dispatcher) call(ctx context.Context, ep models.Endpoint, req models.WorkRequest) (out *models.WorkOutcome, reached bool) {
	defer func() {
		if r := recover(); r != nil {
			out = models.NewFailure(req, models.ErrPanic, fmt.Sprint(r), string(debug.Stack()))
			reached = false
		}
	}()

	ex, err := d.exec.Execute(ctx, ep, req)
	if ex != nil {
		d.metrics.RecordExecution(ctx, ep.ID, ex.End.Sub(ex.Start))
	}
	if err != nil {
		out = models.NewFailure(req, provider.Classify(err), err.Error(), string(debug.Stack()))
		out.Failure.Raw = provider.RawBody(err)
		return out, ex != nil
	}
	res := ex.Result
	return models.NewSuccess(req, models.Success{
		Thinking: res.Thinking,
		Value:    res.Value,
		Params:   res.Params,
		Usage:    res.Usage,
		Raw:      res.Raw,
		Start:    ex.Start,
		End:      ex.End,
	}), true
}

// put writes out to the journal without blocking delivery.
func (d *Dispatcher) put(ctx context.Context, out *models.WorkOutcome) {
	d.puts.Add(1)
	go func() {
		defer d.puts.Done()
		pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.jtimeout)
		defer cancel()
		if err := d.journal.Put(pctx, d.sort, out); err != nil {
			d.metrics.RecordJournalError(ctx, "put")
			observe.Logger(ctx, d.logger).Debug("journal write failed",
				"kind", models.ErrJournalUnavailable, "key", out.Request.Key, "error", err)
		}
	}()
}

func (d *Dispatcher) finish(ctx context.Context, span trace.Span, out *models.WorkOutcome) {
	defer span.End()
	span.SetAttributes(attribute.Bool("cache_hit", out.CacheHit))

	log := observe.Logger(ctx, d.logger)
	if out.OK() {
		d.metrics.RecordRequest(ctx, out.Request.Model, "ok", "")
		span.SetStatus(codes.Ok, "")
		log.Debug("request finished", "key", out.Request.Key, "model", out.Request.Model, "cache_hit", out.CacheHit)
		return
	}
	kind := string(out.Kind())
	d.metrics.RecordRequest(ctx, out.Request.Model, "failed", kind)
	span.SetStatus(codes.Error, out.Failure.Message)
	log.Warn("request failed", "key", out.Request.Key, "model", out.Request.Model, "kind", kind, "error", out.Failure.Message)
}
