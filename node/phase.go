package node

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"

	"github.com/powsim/nodesim/logging"
	"github.com/powsim/nodesim/rpc"
	"github.com/powsim/nodesim/shared"
)

// Names of the protocol phases.
const (
	PhaseSubmitWork         = "submit_work"
	PhasePollStatus         = "poll_status"
	PhaseSubmitVerification = "submit_verification"
)

var (
	ErrPhaseFailed = errors.New("phase failed")

	errNotAccepted = errors.New("response not accepted")
)

// Phase is one request/response step of the protocol that is retried until
// the proxy returns an acceptable answer.
type Phase struct {
	Name   string
	Method string
	// Build renders the signed request params. It is called once per run.
	Build  func() ([]string, error)
	Accept func(rpc.Response) bool
	Policy RetryPolicy
}

func (n *Node) runPhase(ctx context.Context, p Phase) (rpc.Response, error) {
	logger := logging.FromContext(ctx).With(zap.String("phase", p.Name))

	params, err := p.Build()
	if err != nil {
		phaseOutcomes.WithLabelValues(p.Name, "build_error").Inc()
		return rpc.Response{}, fmt.Errorf("building %s request: %w", p.Name, err)
	}

	var (
		accepted rpc.Response
		attempts int
		wait     time.Duration
	)
	// retry.Do only decides whether to go on. The delay it would sleep is
	// waited on the node's clock before the next attempt instead.
	backoff := p.Policy.backoff(n.clock, n.deadline)
	next := retry.BackoffFunc(func() (time.Duration, bool) {
		d, stop := backoff.Next()
		wait = d
		return 0, stop
	})
	err = retry.Do(ctx, next, func(ctx context.Context) error {
		if err := shared.Sleep(ctx, n.clock, wait); err != nil {
			return err
		}
		attempts++
		phaseAttempts.WithLabelValues(p.Name).Inc()
		res := n.caller.Call(ctx, p.Method, params)
		if !p.Accept(res) {
			logger.Debug("response not accepted",
				zap.Int("attempt", attempts),
				zap.Stringer("status", res.Status),
				zap.Error(res.Err),
			)
			return retry.RetryableError(errNotAccepted)
		}
		accepted = res
		return nil
	})

	switch {
	case err == nil:
		phaseOutcomes.WithLabelValues(p.Name, "accepted").Inc()
		logger.Debug("response accepted", zap.Int("attempts", attempts))
		return accepted, nil
	case ctx.Err() != nil:
		phaseOutcomes.WithLabelValues(p.Name, "cancelled").Inc()
		return rpc.Response{}, fmt.Errorf("%s: %w", p.Name, ctx.Err())
	default:
		phaseOutcomes.WithLabelValues(p.Name, "exhausted").Inc()
		logger.Warn("retries exhausted, giving up this run", zap.Int("attempts", attempts))
		return rpc.Response{}, fmt.Errorf("%w: %s after %d attempts", ErrPhaseFailed, p.Name, attempts)
	}
}
