package port

import (
	"context"

	"github.com/rl1809/rent-market/internal/core/domain"
)

type EventPublisher interface {
	Publish(ctx context.Context, event domain.Event) error
}
