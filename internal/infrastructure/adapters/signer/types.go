package signer

import "github.com/tipstream/tip_service/internal/domain/entities"

type addressResponse struct {
	Address string `json:"address"`
}

type allowanceRequest struct {
	ChainID entities.ChainID `json:"chainId"`
	Token   string           `json:"token"`
	Owner   string           `json:"owner"`
	Spender string           `json:"spender"`
}

type allowanceResponse struct {
	Allowance string `json:"allowance"`
}

type approveRequest struct {
	ChainID entities.ChainID `json:"chainId"`
	Token   string           `json:"token"`
	Spender string           `json:"spender"`
	Amount  string           `json:"amount"`
}

type transactionResponse struct {
	TxHash string `json:"txHash"`
}
