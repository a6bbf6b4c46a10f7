package domain

// Position is the net exposure in one symbol derived from the fill
// stream. NetQuantity is signed: positive is long, negative is short.
// RealizedPnL accumulates on closing trades; unrealized P&L is derived
// from the mark price on demand and never stored.
type Position struct {
	Symbol        string
	NetQuantity   int64
	AvgEntryPrice int64 // cents
	RealizedPnL   int64 // cents
}

// Flat reports whether the position has no open quantity.
func (p Position) Flat() bool {
	return p.NetQuantity == 0
}

// MarketValue returns the absolute value of the position at the given
// mark price, in cents.
func (p Position) MarketValue(mark int64) int64 {
	qty := p.NetQuantity
	if qty < 0 {
		qty = -qty
	}
	return mark * qty
}

// CostBasis returns the absolute entry value of the position, in cents.
func (p Position) CostBasis() int64 {
	qty := p.NetQuantity
	if qty < 0 {
		qty = -qty
	}
	return p.AvgEntryPrice * qty
}

// UnrealizedPnL returns (mark − avg entry) × net quantity, in cents.
// The sign of NetQuantity makes short positions profit on falling marks.
func (p Position) UnrealizedPnL(mark int64) int64 {
	return (mark - p.AvgEntryPrice) * p.NetQuantity
}
