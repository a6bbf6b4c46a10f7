package domain

// Quote is one side of the top of book.
type Quote struct {
	Price    int64 // cents
	Quantity int64
}

// BookTop is the best bid/ask snapshot for a symbol. Either side may be
// nil when no orders rest on it.
type BookTop struct {
	Symbol string
	Bid    *Quote
	Ask    *Quote
}

// Spread returns best ask − best bid, or (0, false) when either side is
// empty.
func (t BookTop) Spread() (int64, bool) {
	if t.Bid == nil || t.Ask == nil {
		return 0, false
	}
	return t.Ask.Price - t.Bid.Price, true
}
