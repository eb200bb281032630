package worker

import (
	"context"
	"time"

	"github.com/pario-ai/oracle/pkg/models"
	"github.com/pario-ai/oracle/pkg/provider"
)

// Exchange is the result of one provider round trip with its wall-clock
// bounds.
type Exchange struct {
	Result *provider.Result
	Start  time.Time
	End    time.Time
}

// Worker executes a single request against an endpoint using the
// strategy registered for the endpoint's protocol. It does not retry.
type Worker struct {
	providers *provider.Registry
	timeout   time.Duration
}

// New creates a Worker. A positive timeout bounds each exchange.
func New(providers *provider.Registry, timeout time.Duration) *Worker {
	return &Worker{providers: providers, timeout: timeout}
}

// Execute performs the exchange. On error the returned Exchange still
// carries the start and end times.
func (w *Worker) Execute(ctx context.Context, ep models.Endpoint, req models.WorkRequest) (*Exchange, error) {
	p, err := w.providers.Lookup(ep.Protocol)
	if err != nil {
		return nil, err
	}
	if w.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}

	ex := &Exchange{Start: time.Now()}
	res, err := p.Complete(ctx, ep, req)
	ex.End = time.Now()
	if err != nil {
		return ex, err
	}
	ex.Result = res
	return ex, nil
}
