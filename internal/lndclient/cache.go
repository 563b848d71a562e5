package lndclient

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dmp1ce/charge-lnd/internal/policy"
)

const (
	nodeCacheSize = 2048
	chanCacheSize = 4096
)

// CachedGateway memoizes node-info and chan-info lookups for the duration of
// one run. Forwarding history is window-dependent and not cached. The cache
// is safe for concurrent channel evaluations.
type CachedGateway struct {
	inner policy.Gateway
	nodes *lru.Cache[string, policy.NodeStats]
	edges *lru.Cache[uint64, *policy.ChanInfo]
}

func NewCachedGateway(inner policy.Gateway) (*CachedGateway, error) {
	nodes, err := lru.New[string, policy.NodeStats](nodeCacheSize)
	if err != nil {
		return nil, err
	}
	edges, err := lru.New[uint64, *policy.ChanInfo](chanCacheSize)
	if err != nil {
		return nil, err
	}
	return &CachedGateway{inner: inner, nodes: nodes, edges: edges}, nil
}

func (g *CachedGateway) GetInfo(ctx context.Context) (policy.Info, error) {
	return g.inner.GetInfo(ctx)
}

func (g *CachedGateway) OwnPubkey(ctx context.Context) (string, error) {
	return g.inner.OwnPubkey(ctx)
}

func (g *CachedGateway) GetNodeInfo(ctx context.Context, pubkey string) (policy.NodeStats, error) {
	if stats, ok := g.nodes.Get(pubkey); ok {
		return stats, nil
	}
	stats, err := g.inner.GetNodeInfo(ctx, pubkey)
	if err != nil {
		return policy.NodeStats{}, err
	}
	g.nodes.Add(pubkey, stats)
	return stats, nil
}

func (g *CachedGateway) GetChanInfo(ctx context.Context, chanID uint64) (*policy.ChanInfo, error) {
	if info, ok := g.edges.Get(chanID); ok {
		return info, nil
	}
	info, err := g.inner.GetChanInfo(ctx, chanID)
	if err != nil {
		return nil, err
	}
	// absent edges are cached too; nil means not in the graph
	g.edges.Add(chanID, info)
	return info, nil
}

func (g *CachedGateway) GetForwardHistory(ctx context.Context, chanID uint64, seconds int64) (policy.ForwardStats, error) {
	return g.inner.GetForwardHistory(ctx, chanID, seconds)
}
