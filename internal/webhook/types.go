package webhook

import (
	"context"

	"github.com/alpineops/vouchergw/internal/order"
)

// OrderRunner drives one accepted order end-to-end in the background. The
// server never waits on it and never sees its outcome.
type OrderRunner interface {
	Run(ctx context.Context, ev order.Event)
}

// AcceptedResponse is the JSON body for scheduled processing.
type AcceptedResponse struct {
	Status  string `json:"status"`
	OrderID string `json:"order_id"`
}

// IgnoredResponse is the JSON body for filtered-out events. A 200 tells the
// sender the delivery landed and should not be retried.
type IgnoredResponse struct {
	Message string `json:"message"`
}

// ErrorResponse is the JSON body for rejected deliveries.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Config holds webhook server settings resolved from the global config.
type Config struct {
	Listen             string
	Secret             string
	SignatureHeader    string
	MaxBodySize        int64
	DevEndpointEnabled bool
}

// DefaultMaxBodySize bounds request bodies when the config leaves it unset.
const DefaultMaxBodySize = 1 << 20 // 1 MB
