package oracle

import (
	"sync"
	"time"
)

// Feed is the production Oracle implementation, updated from the NATS
// price stream by the ingestion layer and read by the core.
type Feed struct {
	mu         sync.RWMutex
	price      int64
	ohlc       OHLC
	hasOHLC    bool
	marketOpen bool
	updatedAt  time.Time
}

func NewFeed() *Feed {
	return &Feed{}
}

// SetPrice records a spot price observation.
func (f *Feed) SetPrice(price int64, at time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.price = price
	f.updatedAt = at
}

// SetOHLC records a session band observation.
func (f *Feed) SetOHLC(o OHLC) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ohlc = o
	f.hasOHLC = true
	if f.price == 0 {
		f.price = o.Close
	}
	f.updatedAt = o.Timestamp
}

// SetMarketState records whether the tracked market is open.
func (f *Feed) SetMarketState(open bool, at time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.marketOpen = open
	f.updatedAt = at
}

func (f *Feed) CurrentPrice() (int64, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.price <= 0 {
		return 0, ErrNoPrice
	}
	return f.price, nil
}

func (f *Feed) SessionOHLC() (OHLC, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if !f.hasOHLC {
		return OHLC{}, ErrNoPrice
	}
	return f.ohlc, nil
}

func (f *Feed) IsMarketOpen() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.marketOpen
}

func (f *Feed) LastUpdated() time.Time {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.updatedAt
}
