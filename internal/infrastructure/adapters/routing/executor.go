package routing

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/tipstream/tip_service/internal/domain/entities"
	"github.com/tipstream/tip_service/internal/infrastructure/adapters/signer"
)

type stepTransactionSource interface {
	GetStepTransaction(ctx context.Context, step *entities.RouteStep, fromAddress string) (*entities.TransactionRequest, error)
}

// StepExecutor executes route steps: exact token approval when needed, then the step transaction
type StepExecutor struct {
	client stepTransactionSource
	logger *zap.Logger
}

// NewStepExecutor creates a step executor
func NewStepExecutor(client stepTransactionSource, logger *zap.Logger) *StepExecutor {
	return &StepExecutor{client: client, logger: logger}
}

// ExecuteStep submits step with s and returns the source transaction hash
func (e *StepExecutor) ExecuteStep(ctx context.Context, step *entities.RouteStep, s signer.Signer, opts entities.ExecuteOptions) (string, error) {
	if opts.InfiniteApproval {
		return "", ErrInfiniteApproval
	}
	if step == nil {
		return "", fmt.Errorf("execute step: step is required")
	}
	if !step.Kind.IsValid() {
		return "", fmt.Errorf("execute step %s: %w: %q", step.ID, ErrUnknownStepKind, step.Kind)
	}

	from, err := s.Address(ctx, step.FromChain)
	if err != nil {
		return "", fmt.Errorf("execute step %s: resolve sender: %w", step.ID, err)
	}

	if err := e.ensureAllowance(ctx, step, s, from); err != nil {
		return "", fmt.Errorf("execute step %s: %w", step.ID, err)
	}

	txReq, err := e.client.GetStepTransaction(ctx, step, from)
	if err != nil {
		return "", fmt.Errorf("execute step %s: %w", step.ID, err)
	}
	if txReq.From == "" {
		txReq.From = from
	}

	hash, err := s.SendTransaction(ctx, txReq)
	if err != nil {
		return "", fmt.Errorf("execute step %s: %w", step.ID, err)
	}

	e.logger.Info("Route step submitted",
		zap.String("step_id", step.ID),
		zap.String("kind", string(step.Kind)),
		zap.String("tool", step.Tool),
		zap.Int64("from_chain", int64(step.FromChain)),
		zap.Int64("to_chain", int64(step.ToChain)),
		zap.String("tx_hash", hash))
	return hash, nil
}

// ensureAllowance approves exactly the step amount when the current allowance is short
func (e *StepExecutor) ensureAllowance(ctx context.Context, step *entities.RouteStep, s signer.Signer, owner string) error {
	if step.ApprovalAddress == "" || isNativeToken(step.FromToken) || step.FromAmount == nil || step.FromAmount.Sign() <= 0 {
		return nil
	}

	allowance, err := s.Allowance(ctx, step.FromChain, step.FromToken, owner, step.ApprovalAddress)
	if err != nil {
		return fmt.Errorf("check allowance: %w", err)
	}
	if allowance.Cmp(step.FromAmount) >= 0 {
		return nil
	}

	hash, err := s.Approve(ctx, step.FromChain, step.FromToken, step.ApprovalAddress, step.FromAmount)
	if err != nil {
		return fmt.Errorf("approve: %w", err)
	}
	e.logger.Debug("Exact approval granted",
		zap.String("spender", step.ApprovalAddress),
		zap.String("amount", step.FromAmount.String()),
		zap.String("tx_hash", hash))
	return nil
}

func isNativeToken(address string) bool {
	return address == "" || strings.EqualFold(address, NativeTokenAddress)
}
