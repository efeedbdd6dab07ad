package subscriber

import "context"

// notifyPump wakes pumpLoop after an enqueue; the send is non-blocking
// since pumpLoop only ever needs to know "there might be more", not how
// many notifications fired since it last woke.
func (e *Engine) notifyPump() {
	select {
	case e.notify <- struct{}{}:
	default:
	}
}

// pumpLoop drains the inbound queue (decoupled from network read pace
// by the Block-policy buffer) onto the public Measurements channel,
// where a blocking send provides the caller-facing backpressure.
func (e *Engine) pumpLoop(ctx context.Context) {
	defer e.wg.Done()
	for {
		m, ok := e.inbound.Read()
		if !ok {
			select {
			case <-e.notify:
				continue
			case <-e.shutdown:
				return
			case <-ctx.Done():
				return
			}
		}
		select {
		case e.stream <- m:
		case <-e.shutdown:
			return
		case <-ctx.Done():
			return
		}
	}
}
