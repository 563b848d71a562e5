package lndclient

import (
	"context"
	"errors"
	"testing"

	"github.com/lightningnetwork/lnd/lnrpc"

	"github.com/dmp1ce/charge-lnd/internal/policy"
)

func TestSumForwardEvents(t *testing.T) {
	events := []*lnrpc.ForwardingEvent{
		{ChanIdIn: 7, ChanIdOut: 9, AmtIn: 1000, AmtOut: 990},
		{ChanIdIn: 9, ChanIdOut: 7, AmtIn: 500, AmtOut: 495},
		{ChanIdIn: 3, ChanIdOut: 4, AmtIn: 100, AmtOut: 99},
		nil,
	}

	var stats policy.ForwardStats
	sumForwardEvents(&stats, events, 7)

	if stats.HtlcIn != 1 || stats.SatIn != 1000 {
		t.Fatalf("unexpected inbound: htlcs=%d sats=%d", stats.HtlcIn, stats.SatIn)
	}
	if stats.HtlcOut != 1 || stats.SatOut != 495 {
		t.Fatalf("unexpected outbound: htlcs=%d sats=%d", stats.HtlcOut, stats.SatOut)
	}
}

func TestEdgeToChanInfo(t *testing.T) {
	edge := &lnrpc.ChannelEdge{
		Node1Pub:    "aa",
		Node2Pub:    "bb",
		Node1Policy: &lnrpc.RoutingPolicy{FeeBaseMsat: 1000, FeeRateMilliMsat: 250},
	}

	info := edgeToChanInfo(edge)
	if info.Node1Pub != "aa" || info.Node2Pub != "bb" {
		t.Fatalf("unexpected pubkeys: %+v", info)
	}
	if info.Node1Policy == nil || info.Node1Policy.FeeRatePpm != 250 {
		t.Fatalf("node1 policy not carried over: %+v", info.Node1Policy)
	}
	if info.Node2Policy != nil {
		t.Fatalf("missing node2 policy must stay nil")
	}
	if edgeToChanInfo(nil) != nil {
		t.Fatalf("nil edge must map to nil info")
	}
}

func TestIsEdgeNotFound(t *testing.T) {
	if !isEdgeNotFound(errors.New("rpc error: code = Unknown desc = edge not found")) {
		t.Fatalf("expected match on edge not found message")
	}
	if isEdgeNotFound(errors.New("connection refused")) {
		t.Fatalf("unexpected match on transport error")
	}
}

func TestParseChannelPoint(t *testing.T) {
	cp, err := parseChannelPoint("deadbeef:1")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if cp.GetFundingTxidStr() != "deadbeef" || cp.OutputIndex != 1 {
		t.Fatalf("unexpected channel point: %+v", cp)
	}

	for _, text := range []string{"", "deadbeef", ":1", "deadbeef:x"} {
		if _, err := parseChannelPoint(text); err == nil {
			t.Fatalf("expected error for %q", text)
		}
	}
}

func TestMacaroonCredentialMetadata(t *testing.T) {
	cred := macaroonCredential{macaroon: "abcd"}
	md, err := cred.GetRequestMetadata(context.Background())
	if err != nil {
		t.Fatalf("metadata failed: %v", err)
	}
	if md["macaroon"] != "abcd" {
		t.Fatalf("unexpected metadata: %v", md)
	}
	if !cred.RequireTransportSecurity() {
		t.Fatalf("macaroon credential must require transport security")
	}
}
