package policy

import (
	"context"
	"strings"
)

var nodeKeys = map[string]bool{
	"id":           true,
	"min_channels": true,
	"max_channels": true,
	"min_capacity": true,
	"max_capacity": true,
}

// matchNode evaluates all node.* criteria against the channel's remote node.
// All configured criteria must hold; absent criteria are vacuously satisfied.
func (r *Resolver) matchNode(ctx context.Context, channel Channel, sec *Section) (bool, error) {
	if err := validateKeys(sec, "node", nodeKeys); err != nil {
		return false, err
	}

	if sec.Has("node.id") {
		var pubkeys []string
		for _, item := range sec.GetList("node.id") {
			if strings.HasPrefix(item, FileScheme) {
				fromFile, err := ReadNodeList(item, r.logger)
				if err != nil {
					return false, err
				}
				pubkeys = append(pubkeys, fromFile...)
				continue
			}
			pubkeys = append(pubkeys, item)
		}
		if !containsString(pubkeys, channel.RemotePubkey) {
			return false, nil
		}
	}

	if !sec.Has("node.min_channels") && !sec.Has("node.max_channels") &&
		!sec.Has("node.min_capacity") && !sec.Has("node.max_capacity") {
		return true, nil
	}

	stats, err := r.gateway.GetNodeInfo(ctx, channel.RemotePubkey)
	if err != nil {
		// missing node record is a non-match, not a failure
		return false, nil
	}

	if ok, err := withinBounds(sec, "node.min_channels", "node.max_channels", stats.NumChannels); err != nil || !ok {
		return ok, err
	}
	if ok, err := withinBounds(sec, "node.min_capacity", "node.max_capacity", stats.TotalCapacitySat); err != nil || !ok {
		return ok, err
	}
	return true, nil
}

// withinBounds applies optional inclusive min/max keys to value.
func withinBounds(sec *Section, minKey, maxKey string, value int64) (bool, error) {
	if sec.Has(minKey) {
		min, err := sec.GetInt(minKey, 0)
		if err != nil {
			return false, err
		}
		if value < min {
			return false, nil
		}
	}
	if sec.Has(maxKey) {
		max, err := sec.GetInt(maxKey, 0)
		if err != nil {
			return false, err
		}
		if value > max {
			return false, nil
		}
	}
	return true, nil
}

func containsString(list []string, want string) bool {
	for _, item := range list {
		if item == want {
			return true
		}
	}
	return false
}

func containsUint64(list []uint64, want uint64) bool {
	for _, item := range list {
		if item == want {
			return true
		}
	}
	return false
}
