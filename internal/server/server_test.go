package server

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dmp1ce/charge-lnd/internal/policy"
	"github.com/dmp1ce/charge-lnd/internal/runner"
	"github.com/dmp1ce/charge-lnd/internal/scid"
)

func testServer() *Server {
	return New(log.New(io.Discard, "", 0), nil)
}

func getStatus(t *testing.T, s *Server) statusPayload {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status code %d", rec.Code)
	}
	var payload statusPayload
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	return payload
}

func TestStatusEmptyBeforeFirstRun(t *testing.T) {
	payload := getStatus(t, testServer())
	if payload.RunID != "" || payload.Channels != 0 {
		t.Fatalf("unexpected payload before first run: %+v", payload)
	}
}

func TestStatusReflectsLastRun(t *testing.T) {
	s := testServer()
	s.SetLastRun(runner.Summary{
		RunID:    "run-1",
		DryRun:   true,
		Resolved: 1,
		Results: []runner.ChannelResult{
			{
				Channel:    policy.Channel{ChanID: scid.Pack(700000, 1, 0)},
				Outcome:    policy.OutcomeResolved,
				PolicyName: "big",
				Strategy:   "static",
			},
		},
	})

	payload := getStatus(t, s)
	if payload.RunID != "run-1" || !payload.DryRun || payload.Resolved != 1 {
		t.Fatalf("unexpected payload: %+v", payload)
	}
	if len(payload.Items) != 1 || payload.Items[0].ChannelID != "700000x1x0" {
		t.Fatalf("unexpected items: %+v", payload.Items)
	}
}

func TestStatusCarriesLastError(t *testing.T) {
	s := testServer()
	s.SetLastError(errors.New("node unreachable"))

	payload := getStatus(t, s)
	if payload.LastError != "node unreachable" {
		t.Fatalf("unexpected last error %q", payload.LastError)
	}

	s.SetLastRun(runner.Summary{RunID: "run-2"})
	if payload := getStatus(t, s); payload.LastError != "" {
		t.Fatalf("successful run must clear last error, got %q", payload.LastError)
	}
}

func TestRunsWithoutStore(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/runs", nil)
	rec := httptest.NewRecorder()
	testServer().Routes().ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 without history store, got %d", rec.Code)
	}
}
