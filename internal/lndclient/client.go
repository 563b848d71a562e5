// Package lndclient talks to LND over gRPC and exposes the narrow gateway
// surface the policy matchers and strategies consume.
package lndclient

import (
	"context"
	"crypto/x509"
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/lightningnetwork/lnd/lnrpc"
	"github.com/lightningnetwork/lnd/lnrpc/routerrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/status"

	"github.com/dmp1ce/charge-lnd/internal/config"
	"github.com/dmp1ce/charge-lnd/internal/policy"
)

const (
	maxGRPCMsgSize     = 32 * 1024 * 1024
	forwardingPageSize = 50000
	infoCacheTTL       = 30 * time.Second
)

type Client struct {
	cfg    config.LNDConfig
	logger *log.Logger

	infoMu      sync.Mutex
	infoCache   policy.Info
	infoPubkey  string
	infoCacheAt time.Time
}

func New(cfg config.LNDConfig, logger *log.Logger) *Client {
	return &Client{cfg: cfg, logger: logger}
}

type macaroonCredential struct {
	macaroon string
}

func (m macaroonCredential) GetRequestMetadata(ctx context.Context, uri ...string) (map[string]string, error) {
	return map[string]string{"macaroon": m.macaroon}, nil
}

func (m macaroonCredential) RequireTransportSecurity() bool {
	return true
}

func (c *Client) dial(ctx context.Context) (*grpc.ClientConn, error) {
	tlsCert, err := os.ReadFile(c.cfg.TLSCertPath)
	if err != nil {
		return nil, err
	}
	certPool := x509.NewCertPool()
	if ok := certPool.AppendCertsFromPEM(tlsCert); !ok {
		return nil, fmt.Errorf("failed to parse LND TLS cert")
	}

	macBytes, err := os.ReadFile(c.cfg.MacaroonPath)
	if err != nil {
		return nil, err
	}

	opts := []grpc.DialOption{
		grpc.WithTransportCredentials(credentials.NewClientTLSFromCert(certPool, "")),
		grpc.WithDefaultCallOptions(grpc.MaxCallRecvMsgSize(maxGRPCMsgSize)),
		grpc.WithPerRPCCredentials(macaroonCredential{hex.EncodeToString(macBytes)}),
	}

	return grpc.DialContext(ctx, c.cfg.GRPCHost, opts...)
}

func (c *Client) getInfo(ctx context.Context) (policy.Info, string, error) {
	c.infoMu.Lock()
	defer c.infoMu.Unlock()

	if c.infoPubkey != "" && time.Since(c.infoCacheAt) < infoCacheTTL {
		return c.infoCache, c.infoPubkey, nil
	}

	conn, err := c.dial(ctx)
	if err != nil {
		return policy.Info{}, "", err
	}
	defer conn.Close()

	resp, err := lnrpc.NewLightningClient(conn).GetInfo(ctx, &lnrpc.GetInfoRequest{})
	if err != nil {
		return policy.Info{}, "", err
	}

	c.infoCache = policy.Info{BlockHeight: int64(resp.BlockHeight)}
	c.infoPubkey = resp.IdentityPubkey
	c.infoCacheAt = time.Now()
	return c.infoCache, c.infoPubkey, nil
}

func (c *Client) GetInfo(ctx context.Context) (policy.Info, error) {
	info, _, err := c.getInfo(ctx)
	return info, err
}

func (c *Client) OwnPubkey(ctx context.Context) (string, error) {
	_, pubkey, err := c.getInfo(ctx)
	return pubkey, err
}

func (c *Client) GetNodeInfo(ctx context.Context, pubkey string) (policy.NodeStats, error) {
	conn, err := c.dial(ctx)
	if err != nil {
		return policy.NodeStats{}, err
	}
	defer conn.Close()

	resp, err := lnrpc.NewLightningClient(conn).GetNodeInfo(ctx, &lnrpc.NodeInfoRequest{PubKey: pubkey})
	if err != nil {
		return policy.NodeStats{}, err
	}

	return policy.NodeStats{
		NumChannels:      int64(resp.NumChannels),
		TotalCapacitySat: resp.TotalCapacity,
	}, nil
}

// GetChanInfo returns nil with no error when the channel edge is not in the
// graph, so callers can treat absence as a non-match.
func (c *Client) GetChanInfo(ctx context.Context, chanID uint64) (*policy.ChanInfo, error) {
	conn, err := c.dial(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	edge, err := lnrpc.NewLightningClient(conn).GetChanInfo(ctx, &lnrpc.ChanInfoRequest{ChanId: chanID})
	if err != nil {
		if isEdgeNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return edgeToChanInfo(edge), nil
}

func isEdgeNotFound(err error) bool {
	if status.Code(err) == codes.NotFound {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "edge not found")
}

func edgeToChanInfo(edge *lnrpc.ChannelEdge) *policy.ChanInfo {
	if edge == nil {
		return nil
	}
	info := &policy.ChanInfo{
		Node1Pub: edge.Node1Pub,
		Node2Pub: edge.Node2Pub,
	}
	if p := edge.Node1Policy; p != nil {
		info.Node1Policy = &policy.FeePolicy{
			FeeBaseMsat:   p.FeeBaseMsat,
			FeeRatePpm:    p.FeeRateMilliMsat,
			TimeLockDelta: int64(p.TimeLockDelta),
		}
	}
	if p := edge.Node2Policy; p != nil {
		info.Node2Policy = &policy.FeePolicy{
			FeeBaseMsat:   p.FeeBaseMsat,
			FeeRatePpm:    p.FeeRateMilliMsat,
			TimeLockDelta: int64(p.TimeLockDelta),
		}
	}
	return info
}

// GetForwardHistory sums forwarding events touching chanID over the trailing
// window of the given length.
func (c *Client) GetForwardHistory(ctx context.Context, chanID uint64, seconds int64) (policy.ForwardStats, error) {
	conn, err := c.dial(ctx)
	if err != nil {
		return policy.ForwardStats{}, err
	}
	defer conn.Close()

	client := lnrpc.NewLightningClient(conn)
	startTime := time.Now().Unix() - seconds
	if startTime < 0 {
		startTime = 0
	}

	var stats policy.ForwardStats
	var offset uint32
	for {
		resp, err := client.ForwardingHistory(ctx, &lnrpc.ForwardingHistoryRequest{
			StartTime:    uint64(startTime),
			IndexOffset:  offset,
			NumMaxEvents: forwardingPageSize,
		})
		if err != nil {
			return policy.ForwardStats{}, err
		}
		if resp == nil || len(resp.ForwardingEvents) == 0 {
			break
		}

		sumForwardEvents(&stats, resp.ForwardingEvents, chanID)

		if len(resp.ForwardingEvents) < forwardingPageSize {
			break
		}
		offset = resp.LastOffsetIndex
	}
	return stats, nil
}

func sumForwardEvents(stats *policy.ForwardStats, events []*lnrpc.ForwardingEvent, chanID uint64) {
	for _, evt := range events {
		if evt == nil {
			continue
		}
		if evt.ChanIdIn == chanID {
			stats.HtlcIn++
			stats.SatIn += int64(evt.AmtIn)
		}
		if evt.ChanIdOut == chanID {
			stats.HtlcOut++
			stats.SatOut += int64(evt.AmtOut)
		}
	}
}

// ListChannels returns the per-channel snapshots the resolver evaluates.
func (c *Client) ListChannels(ctx context.Context) ([]policy.Channel, error) {
	conn, err := c.dial(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	resp, err := lnrpc.NewLightningClient(conn).ListChannels(ctx, &lnrpc.ListChannelsRequest{})
	if err != nil {
		return nil, err
	}

	channels := make([]policy.Channel, 0, len(resp.Channels))
	for _, ch := range resp.Channels {
		if ch == nil {
			continue
		}
		channels = append(channels, policy.Channel{
			RemotePubkey:     ch.RemotePubkey,
			ChanID:           ch.ChanId,
			ChannelPoint:     ch.ChannelPoint,
			CapacitySat:      ch.Capacity,
			LocalBalanceSat:  ch.LocalBalance,
			RemoteBalanceSat: ch.RemoteBalance,
			Initiator:        ch.Initiator,
			Private:          ch.Private,
		})
	}
	return channels, nil
}

// UpdateChannelPolicy sets the outbound fee policy on one channel.
func (c *Client) UpdateChannelPolicy(ctx context.Context, channelPoint string, baseFeeMsat int64, feeRatePpm int64, timeLockDelta int64) error {
	conn, err := c.dial(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	cp, err := parseChannelPoint(channelPoint)
	if err != nil {
		return err
	}

	req := &lnrpc.PolicyUpdateRequest{
		BaseFeeMsat:   baseFeeMsat,
		FeeRatePpm:    uint32(feeRatePpm),
		TimeLockDelta: uint32(timeLockDelta),
		Scope:         &lnrpc.PolicyUpdateRequest_ChanPoint{ChanPoint: cp},
	}

	_, err = lnrpc.NewLightningClient(conn).UpdateChannelPolicy(ctx, req)
	return err
}

// UpdateChanStatus enables or disables forwarding on one channel.
func (c *Client) UpdateChanStatus(ctx context.Context, channelPoint string, enable bool) error {
	conn, err := c.dial(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	cp, err := parseChannelPoint(channelPoint)
	if err != nil {
		return err
	}

	action := routerrpc.ChanStatusAction_ENABLE
	if !enable {
		action = routerrpc.ChanStatusAction_DISABLE
	}

	_, err = routerrpc.NewRouterClient(conn).UpdateChanStatus(ctx, &routerrpc.UpdateChanStatusRequest{
		ChanPoint: cp,
		Action:    action,
	})
	return err
}

func parseChannelPoint(channelPoint string) (*lnrpc.ChannelPoint, error) {
	txid, indexStr, found := strings.Cut(strings.TrimSpace(channelPoint), ":")
	if !found || txid == "" {
		return nil, fmt.Errorf("invalid channel point %q", channelPoint)
	}
	var index uint32
	if _, err := fmt.Sscanf(indexStr, "%d", &index); err != nil {
		return nil, fmt.Errorf("invalid channel point %q", channelPoint)
	}
	return &lnrpc.ChannelPoint{
		FundingTxid: &lnrpc.ChannelPoint_FundingTxidStr{FundingTxidStr: txid},
		OutputIndex: index,
	}, nil
}
