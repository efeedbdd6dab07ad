package subscriber

import (
	"context"
	"time"

	"github.com/c360/sttp/config"
	"github.com/c360/sttp/errors"
	"github.com/c360/sttp/pkg/retry"
)

// maxReconnectAttempts bounds pkg/retry's loop rather than leaving it
// literally unbounded; at the configured cap backoff this still amounts
// to effectively-indefinite retry for any realistic outage.
const maxReconnectAttempts = 1_000_000

// reconnectRetryConfig maps the subscriber's reconnect tuning onto
// pkg/retry's Config.
func reconnectRetryConfig(b config.ReconnectBackoff) retry.Config {
	return retry.Config{
		MaxAttempts:  maxReconnectAttempts,
		InitialDelay: time.Duration(b.BaseMs) * time.Millisecond,
		MaxDelay:     time.Duration(b.CapMs) * time.Millisecond,
		Multiplier:   b.Factor,
		AddJitter:    b.Jitter > 0,
	}
}

// supervise watches for disconnects and reconnects with backoff,
// resubscribing (via connectOnce) to the last active subscription. It
// exits only when the engine is closed or the retry budget is
// exhausted, which given maxReconnectAttempts only happens if the
// caller's context is canceled first.
func (e *Engine) supervise(ctx context.Context) {
	defer e.wg.Done()
	attempt := 0
	for {
		select {
		case <-e.shutdown:
			return
		case <-e.reconnectSignal:
		}
		select {
		case <-e.shutdown:
			return
		default:
		}

		cfg := reconnectRetryConfig(e.cfg.ReconnectBackoff)
		err := retry.Do(ctx, cfg, func() error {
			select {
			case <-e.shutdown:
				return retry.NonRetryable(errEngineClosed())
			default:
			}
			attempt++
			e.callbacks.reconnecting(attempt)
			return e.connectOnce(ctx)
		})
		if err != nil {
			e.callbacks.error(errors.WrapFatal(err, "subscriber", "supervise", "reconnect exhausted"))
			return
		}
		attempt = 0
	}
}
