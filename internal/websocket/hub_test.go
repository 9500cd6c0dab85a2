package websocket

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"cyclehunter/internal/cycle"
	"cyclehunter/internal/evaluator"
)

func testCycle() cycle.Cycle {
	return cycle.Cycle{
		ID:     "USDT-BTC-ETH-USDT",
		Assets: []string{"USDT", "BTC", "ETH", "USDT"},
		Steps: []cycle.Step{
			{PairSymbol: "BTCUSDT", From: "USDT", To: "BTC", Side: cycle.Buy},
			{PairSymbol: "ETHBTC", From: "BTC", To: "ETH", Side: cycle.Buy},
			{PairSymbol: "ETHUSDT", From: "ETH", To: "USDT", Side: cycle.Sell},
		},
	}
}

func TestNewHub(t *testing.T) {
	hub := NewHub()
	if hub == nil {
		t.Fatal("NewHub returned nil")
	}
	if hub.ClientCount() != 0 {
		t.Errorf("expected 0 clients, got %d", hub.ClientCount())
	}
}

func TestHub_RegisterUnregister(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	client := &Client{hub: hub, send: make(chan []byte, clientSendBufferSize)}
	hub.register <- client

	deadline := time.After(time.Second)
	for hub.ClientCount() != 1 {
		select {
		case <-deadline:
			t.Fatal("client never registered")
		default:
		}
	}

	hub.unregister <- client
	for hub.ClientCount() != 0 {
		select {
		case <-deadline:
			t.Fatal("client never unregistered")
		default:
		}
	}
}

func TestBroadcastOpportunityDeliversJSON(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	client := &Client{hub: hub, send: make(chan []byte, clientSendBufferSize)}
	hub.register <- client
	time.Sleep(10 * time.Millisecond)

	opp := evaluator.Opportunity{
		Cycle:      testCycle(),
		ProfitPct:  decimal.NewFromFloat(1.25),
		DetectedAt: time.Unix(0, 0).UTC(),
	}
	hub.BroadcastOpportunity(opp)

	select {
	case msg := <-client.send:
		var decoded OpportunityMessage
		if err := json.Unmarshal(msg, &decoded); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if decoded.Type != "opportunity" {
			t.Errorf("type = %q, want opportunity", decoded.Type)
		}
		if decoded.Cycle != "USDT -> BTC -> ETH -> USDT" {
			t.Errorf("cycle = %q", decoded.Cycle)
		}
		if decoded.ProfitPct != "1.25" {
			t.Errorf("profit_pct = %q, want 1.25", decoded.ProfitPct)
		}
	case <-time.After(time.Second):
		t.Fatal("client never received broadcast")
	}
}

func TestBroadcastProfitSnapshotDeliversJSON(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	client := &Client{hub: hub, send: make(chan []byte, clientSendBufferSize)}
	hub.register <- client
	time.Sleep(10 * time.Millisecond)

	snap := evaluator.Snapshot{
		LastUpdated: time.Unix(0, 0).UTC(),
		Profits: []evaluator.ProfitEntry{
			{Cycle: "USDT -> BTC -> ETH -> USDT", ProfitPct: decimal.NewFromFloat(0.42)},
		},
	}
	hub.BroadcastProfitSnapshot(snap)

	select {
	case msg := <-client.send:
		var decoded ProfitSnapshotMessage
		if err := json.Unmarshal(msg, &decoded); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if decoded.Type != "profitSnapshot" {
			t.Errorf("type = %q, want profitSnapshot", decoded.Type)
		}
		if len(decoded.Profits) != 1 {
			t.Fatalf("expected 1 profit entry, got %d", len(decoded.Profits))
		}
	case <-time.After(time.Second):
		t.Fatal("client never received broadcast")
	}
}

func TestOriginChecker_Check(t *testing.T) {
	checker := &OriginChecker{
		allowedOrigins: map[string]struct{}{
			"http://localhost:3000": {},
			"https://example.com":   {},
		},
		allowAll: false,
	}

	tests := []struct {
		origin string
		want   bool
	}{
		{"", true},
		{"http://localhost:3000", true},
		{"https://example.com", true},
		{"http://evil.com", false},
		{"http://localhost:8080", false},
	}

	for _, tt := range tests {
		if got := checker.Check(tt.origin); got != tt.want {
			t.Errorf("Check(%q) = %v, want %v", tt.origin, got, tt.want)
		}
	}
}

func TestOriginChecker_AllowAll(t *testing.T) {
	checker := &OriginChecker{allowAll: true}
	for _, origin := range []string{"http://localhost:3000", "https://evil.com"} {
		if !checker.Check(origin) {
			t.Errorf("allowAll=true but Check(%q) = false", origin)
		}
	}
}
