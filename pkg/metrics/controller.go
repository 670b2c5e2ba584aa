package metrics

import "context"

// snapshotRequest pairs a snapshot demand with its one-shot response
// channel.
type snapshotRequest struct {
	resp chan *Snapshot
}

// Controller requests snapshots from the aggregator. It is the sole read
// path to aggregated state; nothing ever hands out the live maps, so torn
// reads cannot happen. Controllers are plain values: copy them anywhere.
type Controller struct {
	control chan<- snapshotRequest
	done    <-chan struct{}
}

// Snapshot blocks until the aggregator answers, the context is cancelled,
// or the engine terminates. A request made after termination fails with
// ErrAggregatorGone rather than blocking forever. A caller that stops
// waiting simply abandons the response; the aggregator's send is
// best-effort and needs no notification.
func (c Controller) Snapshot(ctx context.Context) (*Snapshot, error) {
	req := snapshotRequest{resp: make(chan *Snapshot, 1)}

	select {
	case c.control <- req:
	case <-c.done:
		return nil, ErrAggregatorGone
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case snap := <-req.resp:
		return snap, nil
	case <-c.done:
		// The aggregator may have answered on its way out.
		select {
		case snap := <-req.resp:
			return snap, nil
		default:
			return nil, ErrAggregatorGone
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
