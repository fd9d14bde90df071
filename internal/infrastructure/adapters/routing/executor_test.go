package routing

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tipstream/tip_service/internal/domain/entities"
)

type MockSigner struct {
	mock.Mock
}

func (m *MockSigner) Address(ctx context.Context, chainID entities.ChainID) (string, error) {
	args := m.Called(ctx, chainID)
	return args.String(0), args.Error(1)
}

func (m *MockSigner) Allowance(ctx context.Context, chainID entities.ChainID, token, owner, spender string) (*big.Int, error) {
	args := m.Called(ctx, chainID, token, owner, spender)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*big.Int), args.Error(1)
}

func (m *MockSigner) Approve(ctx context.Context, chainID entities.ChainID, token, spender string, amount *big.Int) (string, error) {
	args := m.Called(ctx, chainID, token, spender, amount)
	return args.String(0), args.Error(1)
}

func (m *MockSigner) SendTransaction(ctx context.Context, tx *entities.TransactionRequest) (string, error) {
	args := m.Called(ctx, tx)
	return args.String(0), args.Error(1)
}

type MockStepSource struct {
	mock.Mock
}

func (m *MockStepSource) GetStepTransaction(ctx context.Context, step *entities.RouteStep, fromAddress string) (*entities.TransactionRequest, error) {
	args := m.Called(ctx, step, fromAddress)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.TransactionRequest), args.Error(1)
}

func tokenStep() *entities.RouteStep {
	return &entities.RouteStep{
		ID:              "step-1",
		Kind:            entities.StepKindCross,
		Tool:            "stargate",
		FromChain:       1,
		ToChain:         5000,
		FromToken:       "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48",
		FromAmount:      big.NewInt(10_000_000),
		ApprovalAddress: "0xspender",
	}
}

func TestExecuteStep_ApprovesExactAmount(t *testing.T) {
	s := new(MockSigner)
	source := new(MockStepSource)
	step := tokenStep()
	txReq := &entities.TransactionRequest{ChainID: 1, To: "0xdiamond", Data: "0x01"}

	s.On("Address", mock.Anything, entities.ChainID(1)).Return("0xsender", nil)
	s.On("Allowance", mock.Anything, entities.ChainID(1), step.FromToken, "0xsender", "0xspender").Return(big.NewInt(0), nil)
	s.On("Approve", mock.Anything, entities.ChainID(1), step.FromToken, "0xspender", step.FromAmount).Return("0xapprove", nil)
	source.On("GetStepTransaction", mock.Anything, step, "0xsender").Return(txReq, nil)
	s.On("SendTransaction", mock.Anything, mock.MatchedBy(func(tx *entities.TransactionRequest) bool {
		return tx.To == "0xdiamond" && tx.From == "0xsender"
	})).Return("0xsrc", nil)

	executor := NewStepExecutor(source, zap.NewNop())
	hash, err := executor.ExecuteStep(context.Background(), step, s, entities.ExecuteOptions{})

	require.NoError(t, err)
	assert.Equal(t, "0xsrc", hash)
	s.AssertExpectations(t)
	source.AssertExpectations(t)
}

func TestExecuteStep_SkipsApprovalWhenAllowanceSuffices(t *testing.T) {
	s := new(MockSigner)
	source := new(MockStepSource)
	step := tokenStep()

	s.On("Address", mock.Anything, entities.ChainID(1)).Return("0xsender", nil)
	s.On("Allowance", mock.Anything, entities.ChainID(1), step.FromToken, "0xsender", "0xspender").Return(big.NewInt(50_000_000), nil)
	source.On("GetStepTransaction", mock.Anything, step, "0xsender").Return(&entities.TransactionRequest{ChainID: 1, To: "0xdiamond"}, nil)
	s.On("SendTransaction", mock.Anything, mock.Anything).Return("0xsrc", nil)

	executor := NewStepExecutor(source, zap.NewNop())
	_, err := executor.ExecuteStep(context.Background(), step, s, entities.ExecuteOptions{})

	require.NoError(t, err)
	s.AssertNotCalled(t, "Approve", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestExecuteStep_RefusesInfiniteApproval(t *testing.T) {
	s := new(MockSigner)
	executor := NewStepExecutor(new(MockStepSource), zap.NewNop())

	_, err := executor.ExecuteStep(context.Background(), tokenStep(), s, entities.ExecuteOptions{InfiniteApproval: true})

	assert.ErrorIs(t, err, ErrInfiniteApproval)
	s.AssertNotCalled(t, "Address", mock.Anything, mock.Anything)
}

func TestExecuteStep_RejectsUnknownKind(t *testing.T) {
	step := tokenStep()
	step.Kind = "teleport"
	executor := NewStepExecutor(new(MockStepSource), zap.NewNop())

	_, err := executor.ExecuteStep(context.Background(), step, new(MockSigner), entities.ExecuteOptions{})
	assert.ErrorIs(t, err, ErrUnknownStepKind)
}

func TestExecuteStep_PropagatesSendFailure(t *testing.T) {
	s := new(MockSigner)
	source := new(MockStepSource)
	step := tokenStep()
	step.ApprovalAddress = ""

	s.On("Address", mock.Anything, entities.ChainID(1)).Return("0xsender", nil)
	source.On("GetStepTransaction", mock.Anything, step, "0xsender").Return(&entities.TransactionRequest{ChainID: 1, To: "0xdiamond"}, nil)
	s.On("SendTransaction", mock.Anything, mock.Anything).Return("", errors.New("nonce too low"))

	executor := NewStepExecutor(source, zap.NewNop())
	_, err := executor.ExecuteStep(context.Background(), step, s, entities.ExecuteOptions{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "nonce too low")
}
