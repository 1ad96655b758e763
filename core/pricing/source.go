package pricing

import (
	"context"
	"errors"

	"github.com/smart-ev/chargectl/core/model"
)

// ErrUnavailable wraps every failure to obtain a price: transport errors,
// bad status codes and malformed feeds. A cycle that sees it is skipped.
var ErrUnavailable = errors.New("price feed unavailable")

// Source provides the current electricity price.
type Source interface {
	// Fetch returns the most recent usable price reading.
	Fetch(ctx context.Context) (model.PriceReading, error)
}
