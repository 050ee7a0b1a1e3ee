package round

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/powsim/nodesim/logging"
	"github.com/powsim/nodesim/node"
	"github.com/powsim/nodesim/shared"
)

var ErrNoWorkers = errors.New("no workers to run")

// Worker runs proof of work for a block until the deadline.
type Worker interface {
	DoPoW(ctx context.Context, block uint64, deadline time.Time, shardDiff, dsDiff uint8) (*node.Report, error)
	String() string
}

type Config struct {
	// PowWindow bounds how long a round waits for its workers.
	PowWindow time.Duration
	// EpochTime is the pause between the end of a round and the next one.
	EpochTime  time.Duration
	StartBlock uint64
	// Block overrides the first block when not negative.
	Block int64
	// ResumeGap is added to a persisted block when resuming.
	ResumeGap uint64
	JitterMin time.Duration
	JitterMax time.Duration

	ShardDifficulty uint8
	DSDifficulty    uint8
}

func DefaultConfig() Config {
	return Config{
		PowWindow:       60 * time.Second,
		EpochTime:       120 * time.Second,
		StartBlock:      1,
		Block:           -1,
		ResumeGap:       10,
		JitterMin:       time.Second,
		JitterMax:       5 * time.Second,
		ShardDifficulty: 5,
		DSDifficulty:    10,
	}
}

func (c Config) validate() error {
	if c.PowWindow <= 0 {
		return fmt.Errorf("pow window must be positive, got %v", c.PowWindow)
	}
	if c.EpochTime < 0 {
		return fmt.Errorf("epoch time must not be negative, got %v", c.EpochTime)
	}
	if c.JitterMin < 0 || c.JitterMax < c.JitterMin {
		return fmt.Errorf("invalid jitter range [%v, %v)", c.JitterMin, c.JitterMax)
	}
	return nil
}

// Summary of a finished round.
type Summary struct {
	Block          uint64
	Launched       int
	Finished       int
	ShardCompleted int
	DSCompleted    int
	// Busy counts workers still running a previous round.
	Busy     int
	TimedOut bool
}

// Orchestrator advances the block counter and fans out one proof of work
// run per worker per round.
type Orchestrator struct {
	cfg     Config
	workers []Worker
	store   Store
	clock   clock.Clock
	rnd     *rand.Rand
}

type newOrchestratorOptionFunc func(*newOrchestratorOptions)

type newOrchestratorOptions struct {
	clock clock.Clock
	rnd   *rand.Rand
}

func WithClock(clk clock.Clock) newOrchestratorOptionFunc {
	return func(opts *newOrchestratorOptions) {
		opts.clock = clk
	}
}

func WithRand(rnd *rand.Rand) newOrchestratorOptionFunc {
	return func(opts *newOrchestratorOptions) {
		opts.rnd = rnd
	}
}

func New(cfg Config, workers []Worker, store Store, opts ...newOrchestratorOptionFunc) (*Orchestrator, error) {
	if len(workers) == 0 {
		return nil, ErrNoWorkers
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	options := newOrchestratorOptions{
		clock: clock.New(),
	}
	for _, opt := range opts {
		opt(&options)
	}
	if options.rnd == nil {
		options.rnd = rand.New(rand.NewSource(time.Now().UnixNano())) //#nosec G404
	}
	return &Orchestrator{
		cfg:     cfg,
		workers: workers,
		store:   store,
		clock:   options.clock,
		rnd:     options.rnd,
	}, nil
}

// Run executes rounds until ctx is cancelled.
func (o *Orchestrator) Run(ctx context.Context) error {
	logger := logging.FromContext(ctx).Named("round")
	ctx = logging.NewContext(ctx, logger)

	block := o.startBlock(ctx)
	logger.Info("starting round loop", zap.Uint64("block", block), zap.Int("workers", len(o.workers)))
	for {
		if ctx.Err() != nil {
			return nil
		}
		summary := o.RunRound(ctx, block)
		logger.Info("round finished",
			zap.Uint64("block", summary.Block),
			zap.Int("launched", summary.Launched),
			zap.Int("finished", summary.Finished),
			zap.Int("shard_completed", summary.ShardCompleted),
			zap.Int("ds_completed", summary.DSCompleted),
			zap.Int("busy", summary.Busy),
			zap.Bool("timed_out", summary.TimedOut),
		)

		logger.Debug("waiting for next round", zap.Duration("epoch", o.cfg.EpochTime))
		if err := shared.Sleep(ctx, o.clock, o.cfg.EpochTime); err != nil {
			return nil
		}
		block++
		if err := o.store.Set(ctx, block); err != nil {
			logger.Warn("failed to persist block", zap.Uint64("block", block), zap.Error(err))
		}
	}
}

type result struct {
	report *node.Report
	err    error
}

// RunRound runs all workers for block and waits for them until the end of
// the PoW window. Workers still running at the deadline are cancelled and
// their results dropped.
func (o *Orchestrator) RunRound(ctx context.Context, block uint64) Summary {
	logger := logging.FromContext(ctx).With(zap.Uint64("block", block))
	roundsMetric.Inc()
	blockMetric.Set(float64(block))

	start := o.clock.Now()
	deadline := start.Add(o.cfg.PowWindow)
	roundCtx, cancel := o.clock.WithDeadline(ctx, deadline)
	defer cancel()

	logger.Info("starting round", zap.Time("deadline", deadline))
	results := make(chan result, len(o.workers))
	for _, w := range o.workers {
		jitter := o.jitter()
		inFlightMetric.Inc()
		go func(w Worker) {
			defer inFlightMetric.Dec()
			if err := shared.Sleep(roundCtx, o.clock, jitter); err != nil {
				results <- result{err: err}
				return
			}
			report, err := w.DoPoW(roundCtx, block, deadline, o.cfg.ShardDifficulty, o.cfg.DSDifficulty)
			results <- result{report: report, err: err}
		}(w)
	}

	summary := Summary{Block: block, Launched: len(o.workers)}
	defer func() {
		roundDurationMetric.Observe(o.clock.Since(start).Seconds())
	}()
	for pending := len(o.workers); pending > 0; pending-- {
		select {
		case res := <-results:
			o.tally(ctx, &summary, res)
		case <-roundCtx.Done():
			if ctx.Err() == nil {
				summary.TimedOut = true
				timedOutMetric.Inc()
				logger.Info("pow window elapsed, cancelling remaining workers", zap.Int("pending", pending))
			}
			return summary
		}
	}
	return summary
}

func (o *Orchestrator) tally(ctx context.Context, summary *Summary, res result) {
	switch {
	case errors.Is(res.err, node.ErrBusy):
		summary.Busy++
		logging.FromContext(ctx).Warn("worker skipped round", zap.Error(res.err))
	case res.err != nil:
		logging.FromContext(ctx).Debug("worker did not run", zap.Error(res.err))
	default:
		summary.Finished++
		if res.report.Completed(node.Shard) {
			summary.ShardCompleted++
		}
		if res.report.Completed(node.DS) {
			summary.DSCompleted++
		}
	}
}

func (o *Orchestrator) jitter() time.Duration {
	span := o.cfg.JitterMax - o.cfg.JitterMin
	if span <= 0 {
		return o.cfg.JitterMin
	}
	return o.cfg.JitterMin + time.Duration(o.rnd.Int63n(int64(span)))
}

func (o *Orchestrator) startBlock(ctx context.Context) uint64 {
	logger := logging.FromContext(ctx)
	if o.cfg.Block >= 0 {
		return uint64(o.cfg.Block)
	}
	block, err := o.store.Get(ctx)
	switch {
	case err == nil:
		logger.Info("resuming from persisted block", zap.Uint64("persisted", block), zap.Uint64("gap", o.cfg.ResumeGap))
		return block + o.cfg.ResumeGap
	case errors.Is(err, ErrNoBlock):
	default:
		logger.Warn("failed to read persisted block", zap.Error(err))
	}
	return o.cfg.StartBlock
}
