package payment

import (
	"context"

	"github.com/google/uuid"
)

// MockGateway approves everything. It is used when no gateway key is
// configured.
type MockGateway struct{}

func (MockGateway) Authorize(ctx context.Context, req AuthorizeRequest) (Intent, error) {
	if err := ctx.Err(); err != nil {
		return Intent{}, err
	}
	id := "pi_mock_" + uuid.NewString()
	return Intent{ID: id, ClientSecret: id + "_secret_mock"}, nil
}

func (MockGateway) Refund(ctx context.Context, intentID string) error {
	return ctx.Err()
}
