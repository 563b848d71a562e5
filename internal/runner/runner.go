// Package runner drives one pass over all channels: resolve each channel's
// policy, execute the resulting strategy and collect the outcomes.
package runner

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/dmp1ce/charge-lnd/internal/history"
	"github.com/dmp1ce/charge-lnd/internal/policy"
	"github.com/dmp1ce/charge-lnd/internal/scid"
	"github.com/dmp1ce/charge-lnd/internal/strategy"
)

// ChannelSource lists the channels to evaluate.
type ChannelSource interface {
	ListChannels(ctx context.Context) ([]policy.Channel, error)
}

// FeeSetter applies fee decisions to the node.
type FeeSetter interface {
	UpdateChannelPolicy(ctx context.Context, channelPoint string, baseFeeMsat int64, feeRatePpm int64, timeLockDelta int64) error
	UpdateChanStatus(ctx context.Context, channelPoint string, enable bool) error
}

type Options struct {
	DryRun bool
	// Concurrency bounds how many channels resolve at once. Policy order
	// within a channel is always sequential.
	Concurrency int
	// UpdatesPerSecond paces UpdateChannelPolicy calls; every update is
	// gossiped to the network.
	UpdatesPerSecond float64
}

const (
	defaultConcurrency      = 4
	defaultUpdatesPerSecond = 4
)

type Runner struct {
	gateway policy.Gateway
	source  ChannelSource
	setter  FeeSetter
	logger  *log.Logger
	limiter *rate.Limiter
	opts    Options
}

func New(gateway policy.Gateway, source ChannelSource, setter FeeSetter, logger *log.Logger, opts Options) *Runner {
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}
	if opts.UpdatesPerSecond <= 0 {
		opts.UpdatesPerSecond = defaultUpdatesPerSecond
	}
	return &Runner{
		gateway: gateway,
		source:  source,
		setter:  setter,
		logger:  logger,
		limiter: rate.NewLimiter(rate.Limit(opts.UpdatesPerSecond), 1),
		opts:    opts,
	}
}

// ChannelResult is one channel's outcome for this run.
type ChannelResult struct {
	Channel    policy.Channel
	Outcome    policy.Outcome
	PolicyName string
	Strategy   string
	Action     strategy.Action
	Applied    bool
	Err        error
}

type Summary struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	DryRun     bool
	Results    []ChannelResult
	Resolved   int
	Defaulted  int
	Unresolved int
	Failed     int
	Applied    int
}

// Run evaluates every channel against the given policies. Per-channel
// failures are recorded in the summary and never abort the run; Run itself
// only fails when the channel list cannot be fetched.
func (r *Runner) Run(ctx context.Context, policies []policy.Definition, defaultSec *policy.Section) (Summary, error) {
	summary := Summary{
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
		DryRun:    r.opts.DryRun,
	}

	channels, err := r.source.ListChannels(ctx)
	if err != nil {
		return summary, err
	}

	resolver := policy.NewResolver(r.gateway, policies, defaultSec, r.logger)
	summary.Results = make([]ChannelResult, len(channels))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Concurrency)
	for i, channel := range channels {
		g.Go(func() error {
			summary.Results[i] = r.evalChannel(gctx, resolver, channel)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return summary, err
	}

	for _, res := range summary.Results {
		switch res.Outcome {
		case policy.OutcomeResolved:
			summary.Resolved++
		case policy.OutcomeDefaulted:
			summary.Defaulted++
		case policy.OutcomeUnresolved:
			summary.Unresolved++
		case policy.OutcomeFailed:
			summary.Failed++
		}
		if res.Applied {
			summary.Applied++
		}
	}
	summary.FinishedAt = time.Now()
	return summary, nil
}

func (r *Runner) evalChannel(ctx context.Context, resolver *policy.Resolver, channel policy.Channel) ChannelResult {
	result := ChannelResult{Channel: channel}

	res := resolver.Resolve(ctx, channel)
	result.Outcome = res.Outcome
	switch res.Outcome {
	case policy.OutcomeFailed:
		result.PolicyName = res.FailedPolicy
		result.Err = res.Err
		return result
	case policy.OutcomeUnresolved:
		return result
	}

	result.PolicyName = res.Policy.Name
	result.Strategy = res.Policy.Strategy

	action, err := strategy.Compute(ctx, r.gateway, channel, res.Policy)
	if err != nil {
		r.logger.Printf("strategy failed for channel %s in policy %q: %v",
			scid.Format(channel.ChanID), res.Policy.Name, err)
		result.Outcome = policy.OutcomeFailed
		result.Err = err
		return result
	}
	result.Action = action

	if action.Kind == strategy.KindSkip || r.opts.DryRun {
		return result
	}

	if err := r.apply(ctx, channel, action); err != nil {
		r.logger.Printf("update failed for channel %s in policy %q: %v",
			scid.Format(channel.ChanID), res.Policy.Name, err)
		result.Err = err
		return result
	}
	result.Applied = true
	return result
}

func (r *Runner) apply(ctx context.Context, channel policy.Channel, action strategy.Action) error {
	if err := r.limiter.Wait(ctx); err != nil {
		return err
	}
	switch action.Kind {
	case strategy.KindDisable:
		return r.setter.UpdateChanStatus(ctx, channel.ChannelPoint, false)
	case strategy.KindSetFees:
		return r.setter.UpdateChannelPolicy(ctx, channel.ChannelPoint,
			action.BaseFeeMsat, action.FeeRatePpm, action.TimeLockDelta)
	default:
		return nil
	}
}

// HistoryRows converts the summary into audit rows for the history store.
func (s Summary) HistoryRows() []history.Row {
	rows := make([]history.Row, 0, len(s.Results))
	for _, res := range s.Results {
		row := history.Row{
			RunID:       s.RunID,
			RecordedAt:  s.FinishedAt,
			ChannelID:   scid.Format(res.Channel.ChanID),
			PolicyName:  res.PolicyName,
			Strategy:    res.Strategy,
			Outcome:     res.Outcome.String(),
			BaseFeeMsat: res.Action.BaseFeeMsat,
			FeeRatePpm:  res.Action.FeeRatePpm,
			DryRun:      s.DryRun,
		}
		if res.Err != nil {
			row.ErrorText = res.Err.Error()
		}
		rows = append(rows, row)
	}
	return rows
}
