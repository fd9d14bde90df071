package chains

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tipstream/tip_service/internal/domain/entities"
	"github.com/tipstream/tip_service/internal/infrastructure/config"
)

// Registry maps chain ids to the chain configuration the engine needs
type Registry struct {
	chains map[entities.ChainID]*entities.ChainInfo
}

// NewRegistry builds a registry from the configured networks. A network whose
// settlement token key is missing from its token list is kept without a token.
func NewRegistry(cfg config.BlockchainConfig) (*Registry, error) {
	r := &Registry{chains: make(map[entities.ChainID]*entities.ChainInfo, len(cfg.Networks))}

	for key, network := range cfg.Networks {
		if network.ChainID == 0 {
			return nil, fmt.Errorf("network %s: chain id is required", key)
		}
		id := entities.ChainID(network.ChainID)
		if _, dup := r.chains[id]; dup {
			return nil, fmt.Errorf("network %s: duplicate chain id %d", key, network.ChainID)
		}

		family := entities.ChainFamily(strings.ToLower(network.Family))
		switch family {
		case entities.ChainFamilyEVM, entities.ChainFamilySolana:
		case "":
			family = entities.ChainFamilyEVM
		default:
			return nil, fmt.Errorf("network %s: unknown chain family %q", key, network.Family)
		}

		name := network.Name
		if name == "" {
			name = key
		}
		info := &entities.ChainInfo{
			ID:     id,
			Name:   name,
			Family: family,
			RPC:    network.RPC,
		}
		if token, ok := network.Tokens[strings.ToLower(network.SettlementToken)]; ok && token.Address != "" {
			info.SettlementToken = &entities.SettlementToken{
				Address:  token.Address,
				Symbol:   token.Symbol,
				Decimals: int32(token.Decimals),
			}
		}
		r.chains[id] = info
	}

	return r, nil
}

// NewStaticRegistry builds a registry from already-resolved chain infos
func NewStaticRegistry(infos ...entities.ChainInfo) *Registry {
	r := &Registry{chains: make(map[entities.ChainID]*entities.ChainInfo, len(infos))}
	for i := range infos {
		info := infos[i]
		r.chains[info.ID] = &info
	}
	return r
}

// Chain returns a copy of the chain's configuration
func (r *Registry) Chain(id entities.ChainID) (*entities.ChainInfo, bool) {
	info, ok := r.chains[id]
	if !ok {
		return nil, false
	}
	c := *info
	if info.SettlementToken != nil {
		token := *info.SettlementToken
		c.SettlementToken = &token
	}
	return &c, true
}

// Chains lists all configured chains ordered by id
func (r *Registry) Chains() []entities.ChainInfo {
	result := make([]entities.ChainInfo, 0, len(r.chains))
	for id := range r.chains {
		c, _ := r.Chain(id)
		result = append(result, *c)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}
