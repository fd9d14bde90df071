package signer

import (
	"context"
	"math/big"

	"github.com/tipstream/tip_service/internal/domain/entities"
)

// Signer is the signing capability route steps are executed with. It never
// grants unlimited token approvals.
type Signer interface {
	// Address returns the sender address on the given chain
	Address(ctx context.Context, chainID entities.ChainID) (string, error)

	// Allowance returns how much spender may move of owner's token
	Allowance(ctx context.Context, chainID entities.ChainID, token, owner, spender string) (*big.Int, error)

	// Approve grants spender exactly amount of token and returns the approval tx hash
	Approve(ctx context.Context, chainID entities.ChainID, token, spender string, amount *big.Int) (string, error)

	// SendTransaction signs and broadcasts tx, returning its hash
	SendTransaction(ctx context.Context, tx *entities.TransactionRequest) (string, error)
}

// Ensure Client implements Signer interface
var _ Signer = (*Client)(nil)
