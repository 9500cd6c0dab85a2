package history

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"

	"cyclehunter/internal/exchange"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func tick(symbol, bid, ask string) exchange.BookTicker {
	return exchange.BookTicker{Symbol: symbol, BestBid: dec(bid), BestAsk: dec(ask)}
}

func TestTickRepositoryInsert(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec(`INSERT INTO ticks`).
		WithArgs("BTCUSDT", "50000", "50001", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	repo := NewTickRepository(db)
	bt := tick("btcusdt", "50000", "50001")
	if err := repo.Insert(bt); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestTickRepositoryRangeBetween(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{"symbol", "best_bid", "best_ask", "recorded_at"}).
		AddRow("BTCUSDT", "49999", "50000", start.Add(time.Minute)).
		AddRow("BTCUSDT", "50001", "50002", start.Add(2*time.Minute))

	mock.ExpectQuery(`SELECT symbol, best_bid, best_ask, recorded_at`).
		WithArgs(start, end).
		WillReturnRows(rows)

	repo := NewTickRepository(db)
	ticks, err := repo.RangeBetween(start, end)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ticks) != 2 {
		t.Fatalf("expected 2 ticks, got %d", len(ticks))
	}
	if !ticks[0].BestBid.Equal(dec("49999")) {
		t.Fatalf("unexpected first tick bid: %s", ticks[0].BestBid)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestTickRepositoryCount(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM ticks`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(42))

	repo := NewTickRepository(db)
	count, err := repo.Count()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 42 {
		t.Fatalf("expected 42, got %d", count)
	}
}

func TestReplayCallsOnTickInOrder(t *testing.T) {
	ticks := []exchange.BookTicker{
		tick("BTCUSDT", "1", "1"),
		tick("ETHBTC", "2", "2"),
		tick("ETHUSDT", "3", "3"),
	}

	var seen []string
	Replay(ticks, func(bt exchange.BookTicker) {
		seen = append(seen, bt.Symbol)
	})

	want := []string{"BTCUSDT", "ETHBTC", "ETHUSDT"}
	if len(seen) != len(want) {
		t.Fatalf("expected %v, got %v", want, seen)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("expected order %v, got %v", want, seen)
		}
	}
}
