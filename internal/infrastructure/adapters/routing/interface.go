package routing

import (
	"context"

	"github.com/tipstream/tip_service/internal/domain/entities"
	"github.com/tipstream/tip_service/internal/infrastructure/adapters/signer"
)

// RoutingClient defines the interface for routing API operations
type RoutingClient interface {
	// GetRoutes returns normalized routes, best first
	GetRoutes(ctx context.Context, req *entities.RouteRequest) ([]entities.Route, error)

	// GetStepTransaction returns unsigned calldata for a route step
	GetStepTransaction(ctx context.Context, step *entities.RouteStep, fromAddress string) (*entities.TransactionRequest, error)

	// GetStatus returns the transfer status of a submitted source transaction
	GetStatus(ctx context.Context, req *entities.StatusRequest) (*entities.BridgeTransferStatus, error)
}

// Executor submits a route step through a signer
type Executor interface {
	ExecuteStep(ctx context.Context, step *entities.RouteStep, s signer.Signer, opts entities.ExecuteOptions) (string, error)
}

// Ensure implementations satisfy their interfaces
var (
	_ RoutingClient = (*Client)(nil)
	_ Executor      = (*StepExecutor)(nil)
)
