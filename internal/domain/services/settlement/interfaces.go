package settlement

import (
	"context"

	"github.com/tipstream/tip_service/internal/domain/entities"
	"github.com/tipstream/tip_service/internal/infrastructure/adapters/signer"
)

// ChainProvider resolves chain configuration by id
type ChainProvider interface {
	Chain(id entities.ChainID) (*entities.ChainInfo, bool)
}

// RouteFinder discovers routes, best first
type RouteFinder interface {
	GetRoutes(ctx context.Context, req *entities.RouteRequest) ([]entities.Route, error)
}

// StatusSource reports the progress of a submitted transfer
type StatusSource interface {
	GetStatus(ctx context.Context, req *entities.StatusRequest) (*entities.BridgeTransferStatus, error)
}

// StepExecutor submits one route step through a signer
type StepExecutor interface {
	ExecuteStep(ctx context.Context, step *entities.RouteStep, s signer.Signer, opts entities.ExecuteOptions) (string, error)
}

// DirectTipPublisher hands same-chain tips to the direct tipping collaborator
type DirectTipPublisher interface {
	PublishDirectTip(ctx context.Context, req *entities.DirectTipRequest) error
}

// StatusPublisher fans status updates out to other subscribers
type StatusPublisher interface {
	PublishStatus(ctx context.Context, update entities.TipStatusUpdate) error
}
