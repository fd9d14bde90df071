package entities

import (
	"encoding/json"
	"math/big"

	"github.com/shopspring/decimal"
)

// ChainFamily groups chains that share an address format
type ChainFamily string

const (
	ChainFamilyEVM    ChainFamily = "evm"
	ChainFamilySolana ChainFamily = "solana"
)

// SettlementToken is the stable token tips are denominated in on a chain
type SettlementToken struct {
	Address  string `json:"address"`
	Symbol   string `json:"symbol"`
	Decimals int32  `json:"decimals"`
}

// ChainInfo is the chain configuration the engine needs for one chain
type ChainInfo struct {
	ID              ChainID          `json:"id"`
	Name            string           `json:"name"`
	Family          ChainFamily      `json:"family"`
	RPC             string           `json:"rpc"`
	SettlementToken *SettlementToken `json:"settlementToken,omitempty"`
}

// StepKind tags the variant of an executable route step
type StepKind string

const (
	StepKindSwap     StepKind = "swap"
	StepKindCross    StepKind = "cross"
	StepKindLiFi     StepKind = "lifi"
	StepKindProtocol StepKind = "protocol"
)

// IsValid reports whether the kind is one the engine knows how to execute
func (k StepKind) IsValid() bool {
	switch k {
	case StepKindSwap, StepKindCross, StepKindLiFi, StepKindProtocol:
		return true
	}
	return false
}

// IsCrossChain reports whether the step moves value between chains
func (k StepKind) IsCrossChain() bool {
	return k == StepKindCross || k == StepKindLiFi
}

// RouteStep is one normalized, executable step of a route
type RouteStep struct {
	ID                string          `json:"id"`
	Kind              StepKind        `json:"kind"`
	Tool              string          `json:"tool"`
	FromChain         ChainID         `json:"fromChain"`
	ToChain           ChainID         `json:"toChain"`
	FromToken         string          `json:"fromToken"`
	ToToken           string          `json:"toToken"`
	FromAmount        *big.Int        `json:"fromAmount"`
	ApprovalAddress   string          `json:"approvalAddress,omitempty"`
	GasCostUSD        decimal.Decimal `json:"gasCostUsd"`
	FeeCostUSD        decimal.Decimal `json:"feeCostUsd"`
	ExecutionDuration int             `json:"executionDuration"`
	// Raw is the provider's step document, echoed back when requesting calldata
	Raw json.RawMessage `json:"-"`
}

// Route is a normalized route returned by the routing service
type Route struct {
	ID         string      `json:"id"`
	FromChain  ChainID     `json:"fromChain"`
	ToChain    ChainID     `json:"toChain"`
	FromAmount *big.Int    `json:"fromAmount"`
	ToAmount   *big.Int    `json:"toAmount"`
	Steps      []RouteStep `json:"steps"`
}

// RouteRequest asks the routing service for routes between two tokens
type RouteRequest struct {
	FromChain   ChainID
	ToChain     ChainID
	FromToken   string
	ToToken     string
	FromAmount  *big.Int
	FromAddress string
	ToAddress   string
}

// QuoteRequest is the input of quote resolution
type QuoteRequest struct {
	SourceChain      ChainID
	DestinationChain ChainID
	Amount           decimal.Decimal
	FromAddress      string
	ToAddress        string
}

// Quote is a priced plan for moving an amount across chains. It is never persisted.
type Quote struct {
	SourceChain          ChainID         `json:"sourceChain"`
	DestinationChain     ChainID         `json:"destinationChain"`
	InputAmount          decimal.Decimal `json:"inputAmount"`
	OutputAmount         decimal.Decimal `json:"outputAmount"`
	EstimatedGasUSD      decimal.Decimal `json:"estimatedGasUsd"`
	BridgeFeeUSD         decimal.Decimal `json:"bridgeFeeUsd"`
	EstimatedTimeSeconds int             `json:"estimatedTimeSeconds"`
	RouteID              string          `json:"routeId"`
	Tool                 string          `json:"tool"`
	Steps                []RouteStep     `json:"steps"`
}

// ExecuteOptions controls how a route step is executed
type ExecuteOptions struct {
	// InfiniteApproval is rejected by executors; approvals are always exact
	InfiniteApproval bool
}

// TransactionRequest is unsigned calldata produced for a route step
type TransactionRequest struct {
	ChainID  ChainID `json:"chainId"`
	From     string  `json:"from,omitempty"`
	To       string  `json:"to"`
	Data     string  `json:"data"`
	Value    string  `json:"value,omitempty"`
	GasLimit string  `json:"gasLimit,omitempty"`
	GasPrice string  `json:"gasPrice,omitempty"`
}

// BridgeStatusCode is the routing service's view of a transfer
type BridgeStatusCode string

const (
	BridgeStatusNotFound BridgeStatusCode = "NOT_FOUND"
	BridgeStatusInvalid  BridgeStatusCode = "INVALID"
	BridgeStatusPending  BridgeStatusCode = "PENDING"
	BridgeStatusDone     BridgeStatusCode = "DONE"
	BridgeStatusFailed   BridgeStatusCode = "FAILED"
)

// StatusRequest identifies a transfer to the routing service
type StatusRequest struct {
	TxHash    string
	Bridge    string
	FromChain ChainID
	ToChain   ChainID
	// StepCount is the number of route steps, used when the response carries no step list
	StepCount int
}

// BridgeTransferStatus is a normalized status response
type BridgeTransferStatus struct {
	Status          BridgeStatusCode `json:"status"`
	Substatus       string           `json:"substatus,omitempty"`
	Message         string           `json:"message,omitempty"`
	CompletedSteps  int              `json:"completedSteps"`
	TotalSteps      int              `json:"totalSteps"`
	ReceivingTxHash string           `json:"receivingTxHash,omitempty"`
}
