package domain

import "time"

// Timeframe identifies a candle bucket duration.
type Timeframe string

const (
	Timeframe1m  Timeframe = "1m"
	Timeframe5m  Timeframe = "5m"
	Timeframe15m Timeframe = "15m"
	Timeframe1h  Timeframe = "1h"
	Timeframe4h  Timeframe = "4h"
	Timeframe1d  Timeframe = "1d"
)

var timeframeDurations = map[Timeframe]time.Duration{
	Timeframe1m:  time.Minute,
	Timeframe5m:  5 * time.Minute,
	Timeframe15m: 15 * time.Minute,
	Timeframe1h:  time.Hour,
	Timeframe4h:  4 * time.Hour,
	Timeframe1d:  24 * time.Hour,
}

// ParseTimeframe validates a timeframe string. It returns
// ErrUnknownTimeframe for anything outside the supported set.
func ParseTimeframe(s string) (Timeframe, error) {
	tf := Timeframe(s)
	if _, ok := timeframeDurations[tf]; !ok {
		return "", ErrUnknownTimeframe
	}
	return tf, nil
}

// Duration returns the bucket duration of the timeframe.
func (tf Timeframe) Duration() time.Duration {
	return timeframeDurations[tf]
}

// BucketStart returns the UTC start of the bucket containing ts.
// Truncation is relative to the Unix epoch, so daily buckets start at
// UTC midnight.
func (tf Timeframe) BucketStart(ts time.Time) time.Time {
	return ts.UTC().Truncate(tf.Duration())
}

// Candle is one OHLCV bucket for a (symbol, timeframe) pair. A candle is
// mutable while its bucket is open and immutable once closed.
type Candle struct {
	Symbol    string
	Timeframe Timeframe
	Open      int64 // cents
	High      int64
	Low       int64
	Close     int64
	Volume    int64
	StartsAt  time.Time
}

// Apply rolls a trade into the candle.
func (c *Candle) Apply(price, qty int64) {
	if price > c.High {
		c.High = price
	}
	if price < c.Low {
		c.Low = price
	}
	c.Close = price
	c.Volume += qty
}
