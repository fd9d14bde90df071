package signer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/tipstream/tip_service/internal/domain/entities"
	"github.com/tipstream/tip_service/pkg/security"
)

const defaultTimeout = 60 * time.Second

// MaxUint256 is the amount wallets use for "unlimited" approvals
var MaxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// Config represents signing service client configuration
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client talks to the remote signing service that holds the platform keys
type Client struct {
	config         Config
	httpClient     *http.Client
	circuitBreaker *gobreaker.CircuitBreaker
	logger         *zap.Logger
}

// NewClient creates a new signing service client
func NewClient(config Config, logger *zap.Logger) *Client {
	if config.Timeout == 0 {
		config.Timeout = defaultTimeout
	}

	cbSettings := gobreaker.Settings{
		Name:        "SignerAPI",
		MaxRequests: 3,
		Interval:    10 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 3
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Info("Signer circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	}

	return &Client{
		config:         config,
		httpClient:     &http.Client{Timeout: config.Timeout},
		circuitBreaker: gobreaker.NewCircuitBreaker(cbSettings),
		logger:         logger,
	}
}

// Address returns the platform sender address on chainID
func (c *Client) Address(ctx context.Context, chainID entities.ChainID) (string, error) {
	endpoint := "/v1/address?chainId=" + url.QueryEscape(strconv.FormatInt(int64(chainID), 10))
	var resp addressResponse
	if err := c.doRequest(ctx, http.MethodGet, endpoint, nil, &resp); err != nil {
		return "", fmt.Errorf("get address failed: %w", err)
	}
	if resp.Address == "" {
		return "", fmt.Errorf("get address failed: empty address for chain %d", chainID)
	}
	return resp.Address, nil
}

// Allowance reads the current token allowance
func (c *Client) Allowance(ctx context.Context, chainID entities.ChainID, token, owner, spender string) (*big.Int, error) {
	req := allowanceRequest{ChainID: chainID, Token: token, Owner: owner, Spender: spender}
	var resp allowanceResponse
	if err := c.doRequest(ctx, http.MethodPost, "/v1/allowance", req, &resp); err != nil {
		return nil, fmt.Errorf("get allowance failed: %w", err)
	}
	allowance, ok := new(big.Int).SetString(resp.Allowance, 10)
	if !ok {
		return nil, fmt.Errorf("get allowance failed: invalid amount %q", resp.Allowance)
	}
	return allowance, nil
}

// Approve grants an exact allowance. Unlimited approvals are refused locally.
func (c *Client) Approve(ctx context.Context, chainID entities.ChainID, token, spender string, amount *big.Int) (string, error) {
	if amount == nil || amount.Sign() <= 0 {
		return "", ErrInvalidAmount
	}
	if amount.Cmp(MaxUint256) >= 0 {
		return "", ErrUnlimitedApproval
	}

	req := approveRequest{ChainID: chainID, Token: token, Spender: spender, Amount: amount.String()}
	var resp transactionResponse
	if err := c.doRequest(ctx, http.MethodPost, "/v1/approve", req, &resp); err != nil {
		return "", fmt.Errorf("approve failed: %w", err)
	}

	c.logger.Info("Token approval submitted",
		zap.Int64("chain_id", int64(chainID)),
		zap.String("token", token),
		zap.String("spender", spender),
		zap.String("amount", amount.String()),
		zap.String("tx_hash", resp.TxHash))
	return resp.TxHash, nil
}

// SendTransaction signs and broadcasts a transaction request
func (c *Client) SendTransaction(ctx context.Context, tx *entities.TransactionRequest) (string, error) {
	var resp transactionResponse
	if err := c.doRequest(ctx, http.MethodPost, "/v1/transactions", tx, &resp); err != nil {
		return "", fmt.Errorf("send transaction failed: %w", err)
	}
	if resp.TxHash == "" {
		return "", fmt.Errorf("send transaction failed: no tx hash returned")
	}
	return resp.TxHash, nil
}

func (c *Client) doRequest(ctx context.Context, method, endpoint string, body, response interface{}) error {
	_, err := c.circuitBreaker.Execute(func() (interface{}, error) {
		return nil, c.doRequestInternal(ctx, method, endpoint, body, response)
	})
	return err
}

// Signing calls are never retried here, a resend could broadcast twice
func (c *Client) doRequestInternal(ctx context.Context, method, endpoint string, body, response interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL+endpoint, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errResp ErrorResponse
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Message != "" {
			errResp.StatusCode = resp.StatusCode
			errResp.Message = security.MaskString(errResp.Message)
			return &errResp
		}
		return fmt.Errorf("API error: status %d, body: %s", resp.StatusCode, security.MaskString(string(respBody)))
	}

	if response != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, response); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}
