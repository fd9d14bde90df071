package routing

import "github.com/tipstream/tip_service/internal/domain/entities"

type routesRequest struct {
	FromChainID      entities.ChainID `json:"fromChainId"`
	ToChainID        entities.ChainID `json:"toChainId"`
	FromTokenAddress string           `json:"fromTokenAddress"`
	ToTokenAddress   string           `json:"toTokenAddress"`
	FromAmount       string           `json:"fromAmount"`
	FromAddress      string           `json:"fromAddress,omitempty"`
	ToAddress        string           `json:"toAddress,omitempty"`
	Options          routeOptions     `json:"options"`
}

type routeOptions struct {
	Integrator       string         `json:"integrator,omitempty"`
	Slippage         float64        `json:"slippage,omitempty"`
	Order            string         `json:"order,omitempty"`
	AllowSwitchChain bool           `json:"allowSwitchChain"`
	Bridges          *bridgeFilters `json:"bridges,omitempty"`
}

type bridgeFilters struct {
	Allow []string `json:"allow,omitempty"`
}
