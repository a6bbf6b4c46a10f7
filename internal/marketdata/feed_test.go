package marketdata

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/efreitasn/tradecore/internal/domain"
)

func newTestFeed(t *testing.T, timeframes ...domain.Timeframe) *Feed {
	t.Helper()
	if len(timeframes) == 0 {
		timeframes = []domain.Timeframe{domain.Timeframe1m}
	}
	registry := domain.NewInstrumentRegistry()
	require.NoError(t, registry.Register(domain.Instrument{
		Symbol: "TEST", TickSize: 1, LotSize: 1, MinPrice: 1, MaxPrice: 1_000_000,
	}))
	return NewFeed(registry, timeframes)
}

func TestIngestTrade_UnknownSymbol(t *testing.T) {
	f := newTestFeed(t)

	err := f.IngestTrade("NOPE", 10000, 1, time.Now())
	assert.ErrorIs(t, err, domain.ErrUnknownSymbol)
}

func TestIngestTrade_NonMonotonicTimestamp(t *testing.T) {
	f := newTestFeed(t)
	ts := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

	require.NoError(t, f.IngestTrade("TEST", 10000, 1, ts))
	err := f.IngestTrade("TEST", 10100, 1, ts.Add(-time.Second))
	assert.ErrorIs(t, err, domain.ErrNonMonotonicTimestamp)

	// Equal timestamps are allowed.
	assert.NoError(t, f.IngestTrade("TEST", 10100, 1, ts))
}

func TestSummary_SessionStats(t *testing.T) {
	f := newTestFeed(t)
	ts := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

	summary, err := f.Summary("TEST")
	require.NoError(t, err)
	assert.False(t, summary.HasTrade)

	require.NoError(t, f.IngestTrade("TEST", 10000, 5, ts))
	require.NoError(t, f.IngestTrade("TEST", 10500, 3, ts.Add(time.Second)))
	require.NoError(t, f.IngestTrade("TEST", 9800, 2, ts.Add(2*time.Second)))

	summary, err = f.Summary("TEST")
	require.NoError(t, err)
	assert.True(t, summary.HasTrade)
	assert.Equal(t, int64(9800), summary.LastPrice)
	assert.Equal(t, int64(-200), summary.Change)
	assert.InDelta(t, -2.0, summary.ChangePercent, 0.001)
	assert.Equal(t, int64(10500), summary.High)
	assert.Equal(t, int64(9800), summary.Low)
	assert.Equal(t, int64(10), summary.Volume)

	_, err = f.Summary("NOPE")
	assert.ErrorIs(t, err, domain.ErrUnknownSymbol)
}

func TestLastPrice(t *testing.T) {
	f := newTestFeed(t)

	_, ok := f.LastPrice("TEST")
	assert.False(t, ok)

	require.NoError(t, f.IngestTrade("TEST", 10000, 1, time.Now()))
	price, ok := f.LastPrice("TEST")
	assert.True(t, ok)
	assert.Equal(t, int64(10000), price)
}

func TestCandles_RollAcrossBuckets(t *testing.T) {
	f := newTestFeed(t)
	base := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

	sub, err := f.SubscribeCandles("TEST", domain.Timeframe1m)
	require.NoError(t, err)
	defer sub.Close()

	require.NoError(t, f.IngestTrade("TEST", 10000, 2, base.Add(10*time.Second)))
	require.NoError(t, f.IngestTrade("TEST", 10200, 1, base.Add(30*time.Second)))
	// Crossing into the next minute closes the first candle.
	require.NoError(t, f.IngestTrade("TEST", 10100, 4, base.Add(65*time.Second)))

	select {
	case closed := <-sub.C():
		assert.Equal(t, base, closed.StartsAt)
		assert.Equal(t, int64(10000), closed.Open)
		assert.Equal(t, int64(10200), closed.High)
		assert.Equal(t, int64(10000), closed.Low)
		assert.Equal(t, int64(10200), closed.Close)
		assert.Equal(t, int64(3), closed.Volume)
	default:
		t.Fatal("expected a closed candle on the subscription")
	}

	candles, err := f.Candles("TEST", domain.Timeframe1m, 10)
	require.NoError(t, err)
	require.Len(t, candles, 2)
	// The final element is the open candle.
	assert.Equal(t, base.Add(time.Minute), candles[1].StartsAt)
	assert.Equal(t, int64(10100), candles[1].Open)
	assert.Equal(t, int64(4), candles[1].Volume)
}

func TestCandles_LimitKeepsNewest(t *testing.T) {
	f := newTestFeed(t)
	base := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		require.NoError(t, f.IngestTrade("TEST", 10000+int64(i), 1, base.Add(time.Duration(i)*time.Minute)))
	}

	candles, err := f.Candles("TEST", domain.Timeframe1m, 2)
	require.NoError(t, err)
	require.Len(t, candles, 2)
	assert.Equal(t, base.Add(3*time.Minute), candles[0].StartsAt)
	assert.Equal(t, base.Add(4*time.Minute), candles[1].StartsAt)
}

func TestPublishTrade_ClampsEarlierTimestamps(t *testing.T) {
	f := newTestFeed(t)
	ts := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

	require.NoError(t, f.IngestTrade("TEST", 10000, 1, ts))

	// An engine print stamped before the last ingest is clamped, not
	// rejected.
	f.PublishTrade("TEST", 10200, 1, ts.Add(-time.Minute))

	summary, err := f.Summary("TEST")
	require.NoError(t, err)
	assert.Equal(t, int64(10200), summary.LastPrice)
	assert.Equal(t, ts, summary.LastTradeAt)
}

func TestSubscribeBookTop(t *testing.T) {
	f := newTestFeed(t)

	sub, err := f.SubscribeBookTop("TEST")
	require.NoError(t, err)
	defer sub.Close()

	top := domain.BookTop{
		Symbol: "TEST",
		Bid:    &domain.Quote{Price: 10000, Quantity: 5},
		Ask:    &domain.Quote{Price: 10100, Quantity: 3},
	}
	f.PublishBookTop(top)

	select {
	case got := <-sub.C():
		assert.Equal(t, top, got)
	default:
		t.Fatal("expected a book top on the subscription")
	}

	snapshot, err := f.BestQuote("TEST")
	require.NoError(t, err)
	assert.Equal(t, top, snapshot)
}

func TestSubscribeCandles_UnknownTimeframe(t *testing.T) {
	f := newTestFeed(t, domain.Timeframe1m)

	_, err := f.SubscribeCandles("TEST", domain.Timeframe5m)
	assert.ErrorIs(t, err, domain.ErrUnknownTimeframe)

	_, err = f.SubscribeCandles("NOPE", domain.Timeframe1m)
	assert.ErrorIs(t, err, domain.ErrUnknownSymbol)
}
