// Package strategy turns a resolved policy into a concrete fee action for
// one channel.
package strategy

import (
	"context"
	"fmt"
	"math"

	"github.com/dmp1ce/charge-lnd/internal/policy"
)

// Kind classifies the action a strategy produced.
type Kind int

const (
	// KindSkip leaves the channel untouched.
	KindSkip Kind = iota
	// KindSetFees applies the base fee and fee rate in the action.
	KindSetFees
	// KindDisable disables forwarding on the channel.
	KindDisable
)

// Action is the fee decision for one channel.
type Action struct {
	Kind          Kind
	BaseFeeMsat   int64
	FeeRatePpm    int64
	TimeLockDelta int64
}

const defaultTimeLockDelta = 80

// Compute executes the resolved policy's strategy. Option keys not set on the
// policy fall back to the channel's currently advertised values, so a static
// policy setting only fee_ppm keeps the existing base fee.
func Compute(ctx context.Context, gw policy.Gateway, channel policy.Channel, resolved *policy.Resolved) (Action, error) {
	switch resolved.Strategy {
	case "ignore":
		return Action{Kind: KindSkip}, nil
	case "disable":
		return Action{Kind: KindDisable}, nil
	case "static":
		return computeStatic(ctx, gw, channel, resolved.Config)
	case "match_peer":
		return computeMatchPeer(ctx, gw, channel, resolved.Config)
	case "proportional":
		return computeProportional(ctx, gw, channel, resolved.Config)
	default:
		return Action{}, fmt.Errorf("unknown strategy %q in policy %q", resolved.Strategy, resolved.Name)
	}
}

func computeStatic(ctx context.Context, gw policy.Gateway, channel policy.Channel, cfg *policy.Section) (Action, error) {
	current, err := currentPolicies(ctx, gw, channel)
	if err != nil {
		return Action{}, err
	}
	return buildAction(cfg, current.own.FeeBaseMsat, current.own.FeeRatePpm, current.timeLockDelta)
}

func computeMatchPeer(ctx context.Context, gw policy.Gateway, channel policy.Channel, cfg *policy.Section) (Action, error) {
	current, err := currentPolicies(ctx, gw, channel)
	if err != nil {
		return Action{}, err
	}
	if current.peer == nil {
		return Action{}, fmt.Errorf("peer policy unavailable for channel %d", channel.ChanID)
	}

	delta, err := cfg.GetInt("fee_ppm_delta", 0)
	if err != nil {
		return Action{}, err
	}
	return buildAction(cfg, current.peer.FeeBaseMsat, current.peer.FeeRatePpm+delta, current.timeLockDelta)
}

// computeProportional interpolates the fee rate between min_fee_ppm and
// max_fee_ppm: a full channel charges the minimum, a drained one the maximum.
func computeProportional(ctx context.Context, gw policy.Gateway, channel policy.Channel, cfg *policy.Section) (Action, error) {
	if !cfg.Has("min_fee_ppm") || !cfg.Has("max_fee_ppm") {
		return Action{}, fmt.Errorf("proportional strategy requires min_fee_ppm and max_fee_ppm")
	}
	min, err := cfg.GetInt("min_fee_ppm", 0)
	if err != nil {
		return Action{}, err
	}
	max, err := cfg.GetInt("max_fee_ppm", 0)
	if err != nil {
		return Action{}, err
	}
	if max < min {
		return Action{}, fmt.Errorf("proportional strategy: max_fee_ppm %d below min_fee_ppm %d", max, min)
	}

	ratio := 0.0
	if total := channel.LocalBalanceSat + channel.RemoteBalanceSat; total > 0 {
		ratio = float64(channel.LocalBalanceSat) / float64(total)
	}
	ppm := min + int64(math.Round(float64(max-min)*(1-ratio)))

	current, err := currentPolicies(ctx, gw, channel)
	if err != nil {
		return Action{}, err
	}
	return buildAction(cfg, current.own.FeeBaseMsat, ppm, current.timeLockDelta)
}

// buildAction overlays explicit base_fee_msat / fee_ppm / time_lock_delta
// options onto the computed fallbacks.
func buildAction(cfg *policy.Section, baseFallback int64, ppmFallback int64, tldFallback int64) (Action, error) {
	base, err := cfg.GetInt("base_fee_msat", baseFallback)
	if err != nil {
		return Action{}, err
	}
	ppm, err := cfg.GetInt("fee_ppm", ppmFallback)
	if err != nil {
		return Action{}, err
	}
	tld, err := cfg.GetInt("time_lock_delta", tldFallback)
	if err != nil {
		return Action{}, err
	}
	if ppm < 0 || base < 0 {
		return Action{}, fmt.Errorf("negative fee values: base %d ppm %d", base, ppm)
	}
	return Action{Kind: KindSetFees, BaseFeeMsat: base, FeeRatePpm: ppm, TimeLockDelta: tld}, nil
}

type channelPolicies struct {
	own           policy.FeePolicy
	peer          *policy.FeePolicy
	timeLockDelta int64
}

// currentPolicies fetches both advertised policy sides for the channel. The
// own side backs fallback values; a channel without a graph edge yet falls
// back to zeros and the default time lock delta.
func currentPolicies(ctx context.Context, gw policy.Gateway, channel policy.Channel) (channelPolicies, error) {
	out := channelPolicies{timeLockDelta: defaultTimeLockDelta}

	info, err := gw.GetChanInfo(ctx, channel.ChanID)
	if err != nil {
		return out, err
	}
	if info == nil {
		return out, nil
	}

	ownPubkey, err := gw.OwnPubkey(ctx)
	if err != nil {
		return out, err
	}

	ownSide, peerSide := info.Node1Policy, info.Node2Policy
	if info.Node2Pub == ownPubkey {
		ownSide, peerSide = info.Node2Policy, info.Node1Policy
	}
	if ownSide != nil {
		out.own = *ownSide
		if ownSide.TimeLockDelta > 0 {
			out.timeLockDelta = ownSide.TimeLockDelta
		}
	}
	out.peer = peerSide
	return out, nil
}
