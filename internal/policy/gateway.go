package policy

import "context"

// Channel is the per-channel snapshot the resolver evaluates. It carries the
// static fields from ListChannels; everything else is fetched on demand
// through the Gateway.
type Channel struct {
	RemotePubkey     string
	ChanID           uint64
	ChannelPoint     string
	CapacitySat      int64
	LocalBalanceSat  int64
	RemoteBalanceSat int64
	Initiator        bool
	Private          bool
}

// NodeStats are aggregate figures for a remote node across all of its
// advertised channels.
type NodeStats struct {
	NumChannels      int64
	TotalCapacitySat int64
}

// FeePolicy is one side's advertised forwarding fee policy on a channel.
type FeePolicy struct {
	FeeBaseMsat   int64
	FeeRatePpm    int64
	TimeLockDelta int64
}

// ChanInfo is the bidirectional channel edge as gossiped.
type ChanInfo struct {
	Node1Pub    string
	Node2Pub    string
	Node1Policy *FeePolicy
	Node2Policy *FeePolicy
}

// ForwardStats aggregates forwarding activity over a trailing time window.
type ForwardStats struct {
	HtlcIn  int64
	HtlcOut int64
	SatIn   int64
	SatOut  int64
}

// Info is the node-level snapshot used for age computation.
type Info struct {
	BlockHeight int64
}

// Gateway is the narrow view of the Lightning node the matchers need. A nil
// ChanInfo with a nil error means the edge is not known, which matchers treat
// as a non-match rather than a failure.
type Gateway interface {
	GetInfo(ctx context.Context) (Info, error)
	OwnPubkey(ctx context.Context) (string, error)
	GetNodeInfo(ctx context.Context, pubkey string) (NodeStats, error)
	GetChanInfo(ctx context.Context, chanID uint64) (*ChanInfo, error)
	GetForwardHistory(ctx context.Context, chanID uint64, seconds int64) (ForwardStats, error)
}
