package mqtt

import (
	"context"

	"github.com/smart-ev/chargectl/core/model"
)

// CommandPublisher sends charge commands to the vehicle command topic.
type CommandPublisher interface {
	// PublishChargeCommand publishes the decision payload and waits for the
	// broker to accept it, bounded by the configured publish timeout and ctx.
	PublishChargeCommand(ctx context.Context, decision model.ChargeDecision) error
}
