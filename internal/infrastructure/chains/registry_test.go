package chains

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tipstream/tip_service/internal/domain/entities"
	"github.com/tipstream/tip_service/internal/infrastructure/config"
)

func TestNewRegistry(t *testing.T) {
	cfg := config.BlockchainConfig{
		Networks: map[string]config.NetworkConfig{
			"mantle": {
				Name:            "Mantle",
				ChainID:         5000,
				Family:          "evm",
				SettlementToken: "usdc",
				Tokens: map[string]config.TokenConfig{
					"usdc": {Address: "0x09Bc4E0D864854c6aFB6eB9A9cdF58aC190D0dF9", Symbol: "USDC", Decimals: 6},
				},
			},
			"solana": {
				ChainID:         1151111081099710,
				Family:          "Solana",
				SettlementToken: "usdc",
				Tokens: map[string]config.TokenConfig{
					"usdc": {Address: "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v", Symbol: "USDC", Decimals: 6},
				},
			},
			"scroll": {ChainID: 534352},
		},
	}

	r, err := NewRegistry(cfg)
	require.NoError(t, err)

	mantle, ok := r.Chain(5000)
	require.True(t, ok)
	assert.Equal(t, entities.ChainFamilyEVM, mantle.Family)
	require.NotNil(t, mantle.SettlementToken)
	assert.Equal(t, int32(6), mantle.SettlementToken.Decimals)

	sol, ok := r.Chain(1151111081099710)
	require.True(t, ok)
	assert.Equal(t, entities.ChainFamilySolana, sol.Family)
	assert.Equal(t, "solana", sol.Name)

	scroll, ok := r.Chain(534352)
	require.True(t, ok)
	assert.Nil(t, scroll.SettlementToken)

	_, ok = r.Chain(10)
	assert.False(t, ok)

	chains := r.Chains()
	require.Len(t, chains, 3)
	assert.Equal(t, entities.ChainID(5000), chains[0].ID)
}

func TestNewRegistry_RejectsUnknownFamily(t *testing.T) {
	_, err := NewRegistry(config.BlockchainConfig{
		Networks: map[string]config.NetworkConfig{"x": {ChainID: 7, Family: "utxo"}},
	})
	assert.Error(t, err)
}

func TestRegistry_ChainReturnsCopy(t *testing.T) {
	r := NewStaticRegistry(entities.ChainInfo{
		ID:              1,
		Family:          entities.ChainFamilyEVM,
		SettlementToken: &entities.SettlementToken{Symbol: "USDC", Decimals: 6},
	})

	c, _ := r.Chain(1)
	c.SettlementToken.Decimals = 18

	again, _ := r.Chain(1)
	assert.Equal(t, int32(6), again.SettlementToken.Decimals)
}
