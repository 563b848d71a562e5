package policy

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestNodeIdMembership(t *testing.T) {
	ch := testChannel()
	r := newTestResolver(&fakeGateway{}, []Definition{
		{Name: "friends", Section: section(map[string]string{
			"node.id":  ch.RemotePubkey,
			"strategy": "static",
		})},
	}, nil)
	if res := r.Resolve(context.Background(), ch); res.Outcome != OutcomeResolved {
		t.Fatalf("listed pubkey must match, got %s", res.Outcome)
	}

	stranger := testChannel()
	stranger.RemotePubkey = "03" + strings.Repeat("c", 64)
	if res := r.Resolve(context.Background(), stranger); res.Outcome != OutcomeUnresolved {
		t.Fatalf("unlisted pubkey must not match, got %s", res.Outcome)
	}
}

func TestNodeIdFromFile(t *testing.T) {
	ch := testChannel()
	path := writeListFile(t, ch.RemotePubkey+" # good peer\n")

	r := newTestResolver(&fakeGateway{}, []Definition{
		{Name: "friends", Section: section(map[string]string{
			"node.id":  FileScheme + path,
			"strategy": "static",
		})},
	}, nil)
	if res := r.Resolve(context.Background(), ch); res.Outcome != OutcomeResolved {
		t.Fatalf("pubkey from list file must match, got %s", res.Outcome)
	}
}

func TestNodeIdMissingFileFailsChannel(t *testing.T) {
	r := newTestResolver(&fakeGateway{}, []Definition{
		{Name: "friends", Section: section(map[string]string{
			"node.id":  FileScheme + "/does/not/exist",
			"strategy": "static",
		})},
	}, nil)
	if res := r.Resolve(context.Background(), testChannel()); res.Outcome != OutcomeFailed {
		t.Fatalf("unreadable node list must fail the channel, got %s", res.Outcome)
	}
}

func TestNodeBoundsInclusive(t *testing.T) {
	ch := testChannel()
	gw := &fakeGateway{
		nodeStats: map[string]NodeStats{
			ch.RemotePubkey: {NumChannels: 20, TotalCapacitySat: 50_000_000},
		},
	}

	r := newTestResolver(gw, []Definition{
		{Name: "mid-size", Section: section(map[string]string{
			"node.min_channels": "20",
			"node.max_channels": "20",
			"node.min_capacity": "50000000",
			"node.max_capacity": "50000000",
			"strategy":          "static",
		})},
	}, nil)
	if res := r.Resolve(context.Background(), ch); res.Outcome != OutcomeResolved {
		t.Fatalf("values at both bounds must match, got %s", res.Outcome)
	}

	r = newTestResolver(gw, []Definition{
		{Name: "bigger", Section: section(map[string]string{
			"node.min_channels": "21",
			"strategy":          "static",
		})},
	}, nil)
	if res := r.Resolve(context.Background(), ch); res.Outcome != OutcomeUnresolved {
		t.Fatalf("20 channels must fail min 21, got %s", res.Outcome)
	}
}

func TestNodeStatsFetchedOnlyWhenNeeded(t *testing.T) {
	ch := testChannel()
	gw := &fakeGateway{}
	r := newTestResolver(gw, []Definition{
		{Name: "friends", Section: section(map[string]string{
			"node.id":  ch.RemotePubkey,
			"strategy": "static",
		})},
	}, nil)

	if res := r.Resolve(context.Background(), ch); res.Outcome != OutcomeResolved {
		t.Fatalf("expected resolved, got %s", res.Outcome)
	}
	if gw.nodeInfoCalls != 0 {
		t.Fatalf("node stats must not be fetched without bound criteria, got %d calls", gw.nodeInfoCalls)
	}
}

func TestNodeStatsFailureIsNonMatch(t *testing.T) {
	r := newTestResolver(&fakeGateway{nodeStatsErr: errors.New("unknown node")}, []Definition{
		{Name: "big", Section: section(map[string]string{
			"node.min_channels": "1",
			"strategy":          "static",
		})},
	}, nil)
	if res := r.Resolve(context.Background(), testChannel()); res.Outcome != OutcomeUnresolved {
		t.Fatalf("node stats failure must be a non-match, got %s", res.Outcome)
	}
}

func TestUnknownNodeKeyFailsChannel(t *testing.T) {
	r := newTestResolver(&fakeGateway{}, []Definition{
		{Name: "broken", Section: section(map[string]string{
			"node.alias": "whatever",
			"strategy":   "static",
		})},
	}, nil)

	res := r.Resolve(context.Background(), testChannel())
	if res.Outcome != OutcomeFailed {
		t.Fatalf("expected failed, got %s", res.Outcome)
	}
	var unknown *UnknownPropertyError
	if !errors.As(res.Err, &unknown) || unknown.Key != "node.alias" {
		t.Fatalf("expected unknown property error for node.alias, got %v", res.Err)
	}
}
