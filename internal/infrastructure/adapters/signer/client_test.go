package signer

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tipstream/tip_service/internal/domain/entities"
)

func TestAddress(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/address", r.URL.Path)
		assert.Equal(t, "1", r.URL.Query().Get("chainId"))
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(map[string]string{"address": "0xsender"})
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, APIKey: "secret"}, zap.NewNop())
	addr, err := client.Address(context.Background(), 1)

	require.NoError(t, err)
	assert.Equal(t, "0xsender", addr)
}

func TestAllowance(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/allowance", r.URL.Path)
		var req allowanceRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "0xspender", req.Spender)
		json.NewEncoder(w).Encode(map[string]string{"allowance": "2500000"})
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL}, zap.NewNop())
	allowance, err := client.Allowance(context.Background(), 1, "0xtoken", "0xowner", "0xspender")

	require.NoError(t, err)
	assert.Equal(t, int64(2500000), allowance.Int64())
}

func TestApprove(t *testing.T) {
	t.Run("sends exact amount", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var req approveRequest
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "10000000", req.Amount)
			json.NewEncoder(w).Encode(map[string]string{"txHash": "0xapprove"})
		}))
		defer server.Close()

		client := NewClient(Config{BaseURL: server.URL}, zap.NewNop())
		hash, err := client.Approve(context.Background(), 1, "0xtoken", "0xspender", big.NewInt(10_000_000))

		require.NoError(t, err)
		assert.Equal(t, "0xapprove", hash)
	})

	t.Run("refuses unlimited approval without calling the service", func(t *testing.T) {
		called := false
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
		}))
		defer server.Close()

		client := NewClient(Config{BaseURL: server.URL}, zap.NewNop())
		_, err := client.Approve(context.Background(), 1, "0xtoken", "0xspender", MaxUint256)

		assert.ErrorIs(t, err, ErrUnlimitedApproval)
		assert.False(t, called)
	})

	t.Run("refuses zero amount", func(t *testing.T) {
		client := NewClient(Config{BaseURL: "http://unused"}, zap.NewNop())
		_, err := client.Approve(context.Background(), 1, "0xtoken", "0xspender", big.NewInt(0))
		assert.ErrorIs(t, err, ErrInvalidAmount)
	})
}

func TestSendTransaction(t *testing.T) {
	t.Run("returns hash", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var tx entities.TransactionRequest
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&tx))
			assert.Equal(t, "0xrouter", tx.To)
			json.NewEncoder(w).Encode(map[string]string{"txHash": "0xsent"})
		}))
		defer server.Close()

		client := NewClient(Config{BaseURL: server.URL}, zap.NewNop())
		hash, err := client.SendTransaction(context.Background(), &entities.TransactionRequest{ChainID: 1, To: "0xrouter", Data: "0x"})

		require.NoError(t, err)
		assert.Equal(t, "0xsent", hash)
	})

	t.Run("surfaces API errors", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
			json.NewEncoder(w).Encode(map[string]string{"code": "POLICY_DENIED", "message": "spend limit exceeded"})
		}))
		defer server.Close()

		client := NewClient(Config{BaseURL: server.URL}, zap.NewNop())
		_, err := client.SendTransaction(context.Background(), &entities.TransactionRequest{ChainID: 1, To: "0xrouter"})

		var apiErr *ErrorResponse
		require.ErrorAs(t, err, &apiErr)
		assert.True(t, apiErr.IsUnauthorized())
		assert.Equal(t, "POLICY_DENIED", apiErr.Code)
	})
}
