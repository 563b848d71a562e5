package policy

import (
	"context"
	"strings"

	"github.com/dmp1ce/charge-lnd/internal/scid"
)

var chanKeys = map[string]bool{
	"id":                 true,
	"initiator":          true,
	"private":            true,
	"min_ratio":          true,
	"max_ratio":          true,
	"min_capacity":       true,
	"max_capacity":       true,
	"min_local_balance":  true,
	"max_local_balance":  true,
	"min_remote_balance": true,
	"max_remote_balance": true,
	"min_base_fee_msat":  true,
	"max_base_fee_msat":  true,
	"min_fee_ppm":        true,
	"max_fee_ppm":        true,
	"min_age":            true,
	"max_age":            true,
	"activity_period":    true,
	"min_htlcs_in":       true,
	"max_htlcs_in":       true,
	"min_htlcs_out":      true,
	"max_htlcs_out":      true,
	"min_sats_in":        true,
	"max_sats_in":        true,
	"min_sats_out":       true,
	"max_sats_out":       true,
}

// blockIntervalSeconds is the target block interval used to estimate a
// channel's age in seconds from its age in blocks.
const blockIntervalSeconds = 600

// matchChannel evaluates all chan.* criteria against the channel record, the
// peer's advertised fee policy and forwarding activity. All configured
// criteria must hold. Missing chan-info or node-info makes the affected
// criteria a non-match; unknown keys, malformed periods and unreadable list
// files fail the channel.
func (r *Resolver) matchChannel(ctx context.Context, channel Channel, sec *Section) (bool, error) {
	if err := validateKeys(sec, "chan", chanKeys); err != nil {
		return false, err
	}

	if sec.Has("chan.id") {
		var ids []uint64
		for _, item := range sec.GetList("chan.id") {
			if strings.HasPrefix(item, FileScheme) {
				fromFile, err := ReadChanList(item, r.logger)
				if err != nil {
					return false, err
				}
				ids = append(ids, fromFile...)
				continue
			}
			id, err := scid.Parse(item)
			if err != nil {
				return false, err
			}
			ids = append(ids, id)
		}
		if !containsUint64(ids, channel.ChanID) {
			return false, nil
		}
	}

	if sec.Has("chan.initiator") {
		want, err := sec.GetBool("chan.initiator", false)
		if err != nil {
			return false, err
		}
		if channel.Initiator != want {
			return false, nil
		}
	}
	if sec.Has("chan.private") {
		want, err := sec.GetBool("chan.private", false)
		if err != nil {
			return false, err
		}
		if channel.Private != want {
			return false, nil
		}
	}

	// Ratio bounds are skipped when the channel holds no funds at all: the
	// local/(local+remote) ratio is undefined there.
	total := channel.LocalBalanceSat + channel.RemoteBalanceSat
	if total > 0 {
		ratio := float64(channel.LocalBalanceSat) / float64(total)
		if sec.Has("chan.min_ratio") {
			min, err := sec.GetFloat("chan.min_ratio", 0)
			if err != nil {
				return false, err
			}
			if ratio < min {
				return false, nil
			}
		}
		if sec.Has("chan.max_ratio") {
			max, err := sec.GetFloat("chan.max_ratio", 0)
			if err != nil {
				return false, err
			}
			if ratio > max {
				return false, nil
			}
		}
	}

	if ok, err := withinBounds(sec, "chan.min_capacity", "chan.max_capacity", channel.CapacitySat); err != nil || !ok {
		return ok, err
	}
	if ok, err := withinBounds(sec, "chan.min_local_balance", "chan.max_local_balance", channel.LocalBalanceSat); err != nil || !ok {
		return ok, err
	}
	if ok, err := withinBounds(sec, "chan.min_remote_balance", "chan.max_remote_balance", channel.RemoteBalanceSat); err != nil || !ok {
		return ok, err
	}

	if sec.Has("chan.min_base_fee_msat") || sec.Has("chan.max_base_fee_msat") ||
		sec.Has("chan.min_fee_ppm") || sec.Has("chan.max_fee_ppm") {
		ok, err := r.matchPeerFees(ctx, channel, sec)
		if err != nil || !ok {
			return ok, err
		}
	}

	needsAge := sec.Has("chan.min_age") || sec.Has("chan.max_age") || sec.Has("chan.activity_period")
	if !needsAge {
		return true, nil
	}

	info, err := r.gateway.GetInfo(ctx)
	if err != nil {
		// no block height, no age: non-match
		return false, nil
	}
	age := info.BlockHeight - int64(scid.BlockHeight(channel.ChanID))

	if ok, err := withinBounds(sec, "chan.min_age", "chan.max_age", age); err != nil || !ok {
		return ok, err
	}

	if sec.Has("chan.activity_period") {
		return r.matchActivity(ctx, channel, sec, age)
	}
	return true, nil
}

// matchPeerFees checks the peer's advertised fee policy. The policy side is
// the one whose pubkey is not our own. An unknown channel edge is a
// non-match.
func (r *Resolver) matchPeerFees(ctx context.Context, channel Channel, sec *Section) (bool, error) {
	info, err := r.gateway.GetChanInfo(ctx, channel.ChanID)
	if err != nil || info == nil {
		return false, nil
	}
	ownPubkey, err := r.gateway.OwnPubkey(ctx)
	if err != nil {
		return false, nil
	}

	peerPolicy := info.Node2Policy
	if info.Node2Pub == ownPubkey {
		peerPolicy = info.Node1Policy
	}
	if peerPolicy == nil {
		return false, nil
	}

	if ok, err := withinBounds(sec, "chan.min_base_fee_msat", "chan.max_base_fee_msat", peerPolicy.FeeBaseMsat); err != nil || !ok {
		return ok, err
	}
	if ok, err := withinBounds(sec, "chan.min_fee_ppm", "chan.max_fee_ppm", peerPolicy.FeeRatePpm); err != nil || !ok {
		return ok, err
	}
	return true, nil
}

// matchActivity applies the forwarding-activity criteria over the configured
// trailing window. A channel younger than the window never matches.
func (r *Resolver) matchActivity(ctx context.Context, channel Channel, sec *Section, ageBlocks int64) (bool, error) {
	seconds, err := ParsePeriod(sec.Get("chan.activity_period", ""))
	if err != nil {
		return false, err
	}

	if ageBlocks*blockIntervalSeconds < seconds {
		// too young to judge over this window
		return false, nil
	}

	fwds, err := r.gateway.GetForwardHistory(ctx, channel.ChanID, seconds)
	if err != nil {
		return false, nil
	}

	if ok, err := withinBounds(sec, "chan.min_htlcs_in", "chan.max_htlcs_in", fwds.HtlcIn); err != nil || !ok {
		return ok, err
	}
	if ok, err := withinBounds(sec, "chan.min_htlcs_out", "chan.max_htlcs_out", fwds.HtlcOut); err != nil || !ok {
		return ok, err
	}
	if ok, err := withinBounds(sec, "chan.min_sats_in", "chan.max_sats_in", fwds.SatIn); err != nil || !ok {
		return ok, err
	}
	if ok, err := withinBounds(sec, "chan.min_sats_out", "chan.max_sats_out", fwds.SatOut); err != nil || !ok {
		return ok, err
	}
	return true, nil
}
