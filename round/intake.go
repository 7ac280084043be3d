package round

import (
	"context"
	"sync"

	"betrounds/service"
)

// intake hands engagements from the transport to the supervisor loop.
// Once closed, every delivery fails with ErrEntryClosed.
type intake struct {
	events    chan Engagement
	closed    chan struct{}
	closeOnce sync.Once
}

func newIntake() *intake {
	return &intake{
		events: make(chan Engagement),
		closed: make(chan struct{}),
	}
}

func (in *intake) deliver(ctx context.Context, e Engagement) error {
	select {
	case <-in.closed:
		return service.ErrEntryClosed
	default:
	}

	select {
	case in.events <- e:
		return nil
	case <-in.closed:
		return service.ErrEntryClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (in *intake) close() {
	in.closeOnce.Do(func() { close(in.closed) })
}
