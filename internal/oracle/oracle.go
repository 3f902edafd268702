package oracle

import (
	"errors"
	"time"
)

// ErrNoPrice is returned before the first price observation arrives.
var ErrNoPrice = errors.New("oracle: no price observed")

// OHLC is a price band snapshot for the current trading session.
// Prices use the 2-decimal fixed-point price scale.
type OHLC struct {
	Open      int64
	High      int64
	Low       int64
	Close     int64
	Timestamp time.Time
}

// Oracle reports the external market the synthetic asset tracks.
// Implementations must be safe for concurrent reads.
type Oracle interface {
	CurrentPrice() (int64, error)
	SessionOHLC() (OHLC, error)
	IsMarketOpen() bool
	LastUpdated() time.Time
}
