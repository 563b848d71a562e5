package runner

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"sync"
	"testing"

	"github.com/dmp1ce/charge-lnd/internal/policy"
	"github.com/dmp1ce/charge-lnd/internal/scid"
)

type fakeNode struct {
	mu       sync.Mutex
	channels []policy.Channel
	listErr  error
	updates  map[string][3]int64
	disabled map[string]bool
}

func newFakeNode(channels ...policy.Channel) *fakeNode {
	return &fakeNode{
		channels: channels,
		updates:  make(map[string][3]int64),
		disabled: make(map[string]bool),
	}
}

func (n *fakeNode) ListChannels(ctx context.Context) ([]policy.Channel, error) {
	return n.channels, n.listErr
}

func (n *fakeNode) UpdateChannelPolicy(ctx context.Context, channelPoint string, baseFeeMsat int64, feeRatePpm int64, timeLockDelta int64) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.updates[channelPoint] = [3]int64{baseFeeMsat, feeRatePpm, timeLockDelta}
	return nil
}

func (n *fakeNode) UpdateChanStatus(ctx context.Context, channelPoint string, enable bool) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.disabled[channelPoint] = !enable
	return nil
}

type fakeGateway struct{}

func (fakeGateway) GetInfo(ctx context.Context) (policy.Info, error) {
	return policy.Info{BlockHeight: 800000}, nil
}

func (fakeGateway) OwnPubkey(ctx context.Context) (string, error) {
	return "03own", nil
}

func (fakeGateway) GetNodeInfo(ctx context.Context, pubkey string) (policy.NodeStats, error) {
	return policy.NodeStats{}, errors.New("not found")
}

func (fakeGateway) GetChanInfo(ctx context.Context, chanID uint64) (*policy.ChanInfo, error) {
	return nil, nil
}

func (fakeGateway) GetForwardHistory(ctx context.Context, chanID uint64, seconds int64) (policy.ForwardStats, error) {
	return policy.ForwardStats{}, nil
}

func testLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func chanAt(block uint32, point string, capacity int64) policy.Channel {
	return policy.Channel{
		ChanID:           scid.Pack(block, 1, 0),
		ChannelPoint:     point,
		CapacitySat:      capacity,
		LocalBalanceSat:  capacity / 2,
		RemoteBalanceSat: capacity / 2,
	}
}

func staticPolicy(name string, pairs map[string]string) policy.Definition {
	sec := policy.NewSection()
	sec.Set("strategy", "static")
	for k, v := range pairs {
		sec.Set(k, v)
	}
	return policy.Definition{Name: name, Section: sec}
}

func TestRunAppliesMatchingPolicies(t *testing.T) {
	node := newFakeNode(
		chanAt(700000, "aa:0", 2_000_000),
		chanAt(700001, "bb:1", 400_000),
	)
	r := New(fakeGateway{}, node, node, testLogger(), Options{})

	defs := []policy.Definition{
		staticPolicy("big", map[string]string{
			"chan.min_capacity": "1000000",
			"fee_ppm":           "50",
			"base_fee_msat":     "0",
		}),
	}

	summary, err := r.Run(context.Background(), defs, nil)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if summary.Resolved != 1 || summary.Unresolved != 1 || summary.Applied != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	update, ok := node.updates["aa:0"]
	if !ok {
		t.Fatalf("expected update on aa:0, got %v", node.updates)
	}
	if update[0] != 0 || update[1] != 50 {
		t.Fatalf("unexpected fees applied: %v", update)
	}
	if _, ok := node.updates["bb:1"]; ok {
		t.Fatalf("unmatched channel must not be updated")
	}
}

func TestRunDryRunAppliesNothing(t *testing.T) {
	node := newFakeNode(chanAt(700000, "aa:0", 2_000_000))
	r := New(fakeGateway{}, node, node, testLogger(), Options{DryRun: true})

	defs := []policy.Definition{
		staticPolicy("all", map[string]string{"fee_ppm": "50", "base_fee_msat": "0"}),
	}

	summary, err := r.Run(context.Background(), defs, nil)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if summary.Resolved != 1 || summary.Applied != 0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if len(node.updates) != 0 {
		t.Fatalf("dry run must not update, got %v", node.updates)
	}
}

func TestRunDisableStrategy(t *testing.T) {
	node := newFakeNode(chanAt(700000, "aa:0", 2_000_000))
	r := New(fakeGateway{}, node, node, testLogger(), Options{})

	sec := policy.NewSection()
	sec.Set("strategy", "disable")
	summary, err := r.Run(context.Background(), []policy.Definition{{Name: "off", Section: sec}}, nil)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if summary.Applied != 1 || !node.disabled["aa:0"] {
		t.Fatalf("expected channel disabled, summary=%+v disabled=%v", summary, node.disabled)
	}
}

func TestRunIsolatesFailedChannels(t *testing.T) {
	node := newFakeNode(
		chanAt(700000, "aa:0", 2_000_000),
		chanAt(700001, "bb:1", 2_000_000),
	)
	r := New(fakeGateway{}, node, node, testLogger(), Options{Concurrency: 1})

	// unknown key fails each channel's resolution, one at a time
	broken := policy.NewSection()
	broken.Set("chan.bogus", "1")
	broken.Set("strategy", "static")

	defs := []policy.Definition{
		{Name: "broken", Section: broken},
	}

	summary, err := r.Run(context.Background(), defs, nil)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if summary.Failed != 2 {
		t.Fatalf("unknown key must fail each channel independently, got %+v", summary)
	}
	if len(node.updates) != 0 {
		t.Fatalf("failed channels must not be updated")
	}
}

func TestRunDefaultPolicyApplies(t *testing.T) {
	node := newFakeNode(chanAt(700000, "aa:0", 2_000_000))
	r := New(fakeGateway{}, node, node, testLogger(), Options{})

	defs := []policy.Definition{
		staticPolicy("never", map[string]string{"chan.min_capacity": "100000000"}),
	}
	defaultSec := policy.NewSection()
	defaultSec.Set("strategy", "static")
	defaultSec.Set("fee_ppm", "10")
	defaultSec.Set("base_fee_msat", "1000")

	summary, err := r.Run(context.Background(), defs, defaultSec)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if summary.Defaulted != 1 || summary.Applied != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
}

func TestHistoryRows(t *testing.T) {
	node := newFakeNode(chanAt(700000, "aa:0", 2_000_000))
	r := New(fakeGateway{}, node, node, testLogger(), Options{DryRun: true})

	defs := []policy.Definition{
		staticPolicy("all", map[string]string{"fee_ppm": "50", "base_fee_msat": "0"}),
	}
	summary, err := r.Run(context.Background(), defs, nil)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	rows := summary.HistoryRows()
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	row := rows[0]
	if row.RunID != summary.RunID || !row.DryRun {
		t.Fatalf("unexpected row: %+v", row)
	}
	if row.PolicyName != "all" || row.Outcome != "resolved" || row.FeeRatePpm != 50 {
		t.Fatalf("unexpected row: %+v", row)
	}
}

func TestPrintSummary(t *testing.T) {
	node := newFakeNode(chanAt(700000, "aa:0", 2_000_000))
	r := New(fakeGateway{}, node, node, testLogger(), Options{DryRun: true})

	defs := []policy.Definition{
		staticPolicy("all", map[string]string{"fee_ppm": "50", "base_fee_msat": "0"}),
	}
	summary, err := r.Run(context.Background(), defs, nil)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	var buf bytes.Buffer
	summary.Print(&buf)
	out := buf.String()
	if !strings.Contains(out, "policy=all") || !strings.Contains(out, "dry-run") {
		t.Fatalf("unexpected report output: %q", out)
	}
}
