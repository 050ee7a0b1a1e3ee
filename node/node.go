package node

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/powsim/nodesim/difficulty"
	"github.com/powsim/nodesim/identity"
	"github.com/powsim/nodesim/logging"
	"github.com/powsim/nodesim/rpc"
	"github.com/powsim/nodesim/shared"
	"github.com/powsim/nodesim/signing"
)

var ErrBusy = errors.New("node is still running a previous round")

// State of a node within a proof of work run.
type State int32

const (
	Idle State = iota
	Requesting
	Waiting
	Checking
	Verifying
	Completed
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Requesting:
		return "requesting"
	case Waiting:
		return "waiting"
	case Checking:
		return "checking"
	case Verifying:
		return "verifying"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Kind of difficulty a run is made for.
type Kind string

const (
	Shard Kind = "shard"
	DS    Kind = "ds"
)

// Methods maps protocol phases to RPC method names.
type Methods struct {
	SubmitWork         string
	PollStatus         string
	SubmitVerification string
}

type Config struct {
	Methods Methods
	Request RetryPolicy
	Check   RetryPolicy
	Verify  RetryPolicy
	// WaitBeforeCheck is the pause between an accepted work request and the
	// first status poll.
	WaitBeforeCheck time.Duration
	// DividedDifficulty selects the finer grained boundaries of proxies
	// running with divided difficulty.
	DividedDifficulty bool
}

func DefaultConfig() Config {
	return Config{
		Methods: Methods{
			SubmitWork:         "zil_requestWork",
			PollStatus:         "zil_checkWorkStatus",
			SubmitVerification: "zil_verifyResult",
		},
		Request:         RetryPolicy{MaxRetries: 3, Delay: FixedDelay(2 * time.Second)},
		Check:           RetryPolicy{MaxRetries: 5, Delay: SpreadDelay{}},
		Verify:          RetryPolicy{MaxRetries: 3, Delay: FixedDelay(2 * time.Second)},
		WaitBeforeCheck: 10 * time.Second,
	}
}

// Outcome of a single run.
type Outcome struct {
	Kind       Kind
	Difficulty uint8
	State      State
	Err        error
}

// Report collects the outcomes of the runs made by a node for a block.
type Report struct {
	Node     int
	Block    uint64
	Outcomes []Outcome
}

// Completed reports whether the run for kind completed.
func (r *Report) Completed(kind Kind) bool {
	for _, o := range r.Outcomes {
		if o.Kind == kind {
			return o.State == Completed
		}
	}
	return false
}

// Node is a simulated miner talking to the proxy with its own key.
type Node struct {
	id     int
	key    *identity.KeyPair
	caller rpc.Caller
	cfg    Config
	clock  clock.Clock

	busy  atomic.Bool
	state atomic.Int32

	// set at the start of each DoPoW and read only by the running goroutine.
	deadline time.Time
}

type newNodeOptionFunc func(*newNodeOptions)

type newNodeOptions struct {
	cfg   Config
	clock clock.Clock
}

func WithConfig(cfg Config) newNodeOptionFunc {
	return func(opts *newNodeOptions) {
		opts.cfg = cfg
	}
}

func WithClock(clk clock.Clock) newNodeOptionFunc {
	return func(opts *newNodeOptions) {
		opts.clock = clk
	}
}

func New(id int, key *identity.KeyPair, caller rpc.Caller, opts ...newNodeOptionFunc) (*Node, error) {
	if !key.CanSign() {
		return nil, fmt.Errorf("node %d: %w", id, identity.ErrNoPrivateKey)
	}
	options := newNodeOptions{
		cfg:   DefaultConfig(),
		clock: clock.New(),
	}
	for _, opt := range opts {
		opt(&options)
	}
	return &Node{
		id:     id,
		key:    key,
		caller: caller,
		cfg:    options.cfg,
		clock:  options.clock,
	}, nil
}

func (n *Node) ID() int {
	return n.id
}

func (n *Node) Key() *identity.KeyPair {
	return n.key
}

func (n *Node) State() State {
	return State(n.state.Load())
}

func (n *Node) String() string {
	return fmt.Sprintf("node-%d", n.id)
}

func (n *Node) setState(s State) {
	n.state.Store(int32(s))
}

// DoPoW creates one Work for block and runs the protocol for the shard
// difficulty and then for the DS difficulty. deadline is the end of the
// PoW window. Failures of a run are reported, not returned.
func (n *Node) DoPoW(ctx context.Context, block uint64, deadline time.Time, shardDiff, dsDiff uint8) (*Report, error) {
	if !n.busy.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	defer n.busy.Store(false)

	n.deadline = deadline
	logger := logging.FromContext(ctx).Named(n.String()).With(zap.Uint64("block", block))
	ctx = logging.NewContext(ctx, logger)

	work, err := NewWork(block)
	if err != nil {
		return nil, fmt.Errorf("creating work: %w", err)
	}

	report := &Report{Node: n.id, Block: block}
	runs := []struct {
		kind Kind
		diff uint8
	}{{Shard, shardDiff}, {DS, dsDiff}}
	for _, run := range runs {
		logger.Info("starting pow", zap.String("kind", string(run.kind)), zap.Uint8("difficulty", run.diff))
		err := n.startPoW(ctx, work, run.diff)
		outcome := Outcome{Kind: run.kind, Difficulty: run.diff, State: n.State(), Err: err}
		report.Outcomes = append(report.Outcomes, outcome)
		runOutcomes.WithLabelValues(string(run.kind), outcome.State.String()).Inc()
		if err != nil {
			logger.Info("pow failed", zap.String("kind", string(run.kind)), zap.Error(err))
		} else {
			logger.Info("pow completed", zap.String("kind", string(run.kind)))
		}
		if ctx.Err() != nil {
			break
		}
	}
	return report, nil
}

func (n *Node) startPoW(ctx context.Context, work Work, diff uint8) error {
	var boundary [difficulty.BoundarySize]byte
	copy(boundary[:], n.boundary(diff))
	logging.FromContext(ctx).Debug("boundary",
		zap.Uint8("difficulty", diff),
		zap.Uint("leading_zeros", difficulty.FromBoundary(boundary[:])),
	)

	n.setState(Requesting)
	if _, err := n.runPhase(ctx, n.requestPhase(work, boundary)); err != nil {
		n.setState(Failed)
		return err
	}

	n.setState(Waiting)
	if err := shared.Sleep(ctx, n.clock, n.cfg.WaitBeforeCheck); err != nil {
		n.setState(Failed)
		return fmt.Errorf("waiting for result: %w", err)
	}

	n.setState(Checking)
	if _, err := n.runPhase(ctx, n.checkPhase(work, boundary)); err != nil {
		n.setState(Failed)
		return err
	}

	n.setState(Verifying)
	if _, err := n.runPhase(ctx, n.verifyPhase(work, boundary)); err != nil {
		n.setState(Failed)
		return err
	}

	n.setState(Completed)
	return nil
}

func (n *Node) boundary(diff uint8) []byte {
	if n.cfg.DividedDifficulty {
		return difficulty.ToBoundaryDivided(diff)
	}
	return difficulty.ToBoundary(diff)
}

func (n *Node) requestPhase(work Work, boundary [difficulty.BoundarySize]byte) Phase {
	return Phase{
		Name:   PhaseSubmitWork,
		Method: n.cfg.Methods.SubmitWork,
		Policy: n.cfg.Request,
		Accept: rpc.Response.Ok,
		Build: func() ([]string, error) {
			req := signing.WorkRequest{
				Header:   work.Header,
				BlockNum: work.BlockNum,
				Boundary: boundary,
				Timeout:  n.timeout(),
			}
			copy(req.PubKey[:], n.key.PublicKey())
			signed, err := signing.Sign(req, n.key)
			if err != nil {
				return nil, err
			}
			return signed.Params(), nil
		},
	}
}

func (n *Node) checkPhase(work Work, boundary [difficulty.BoundarySize]byte) Phase {
	return Phase{
		Name:   PhasePollStatus,
		Method: n.cfg.Methods.PollStatus,
		Policy: n.cfg.Check,
		Accept: func(res rpc.Response) bool {
			return res.First().Ok()
		},
		Build: func() ([]string, error) {
			req := signing.StatusRequest{Header: work.Header, Boundary: boundary}
			copy(req.PubKey[:], n.key.PublicKey())
			signed, err := signing.Sign(req, n.key)
			if err != nil {
				return nil, err
			}
			return signed.Params(), nil
		},
	}
}

func (n *Node) verifyPhase(work Work, boundary [difficulty.BoundarySize]byte) Phase {
	return Phase{
		Name:   PhaseSubmitVerification,
		Method: n.cfg.Methods.SubmitVerification,
		Policy: n.cfg.Verify,
		Accept: rpc.Response.Ok,
		Build: func() ([]string, error) {
			req := signing.VerifyRequest{Verified: true, Header: work.Header, Boundary: boundary}
			copy(req.PubKey[:], n.key.PublicKey())
			signed, err := signing.Sign(req, n.key)
			if err != nil {
				return nil, err
			}
			return signed.Params(), nil
		},
	}
}

// timeout is the number of whole seconds left until the deadline.
func (n *Node) timeout() uint32 {
	left := n.deadline.Sub(n.clock.Now()) / time.Second
	switch {
	case left <= 0:
		return 0
	case left > math.MaxUint32:
		return math.MaxUint32
	default:
		return uint32(left)
	}
}
