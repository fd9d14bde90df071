package routing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/tipstream/tip_service/internal/domain/entities"
	"github.com/tipstream/tip_service/pkg/security"
)

const defaultTimeout = 30 * time.Second

// Config represents routing client configuration
type Config struct {
	BaseURL           string
	APIKey            string
	Integrator        string
	Timeout           time.Duration
	RequestsPerSecond float64
	Slippage          float64
	Order             string
	AllowedBridges    []string
}

// Client represents a cross-chain routing API client. Each call is a single
// attempt; callers retry on their own schedule.
type Client struct {
	config         Config
	httpClient     *http.Client
	circuitBreaker *gobreaker.CircuitBreaker
	rateLimiter    *rate.Limiter
	logger         *zap.Logger
}

// NewClient creates a new routing API client
func NewClient(config Config, logger *zap.Logger) *Client {
	if config.Timeout == 0 {
		config.Timeout = defaultTimeout
	}
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	if config.RequestsPerSecond <= 0 {
		config.RequestsPerSecond = DefaultRequestsPerSecond
	}
	if config.Slippage == 0 {
		config.Slippage = DefaultSlippage
	}
	if config.Order == "" {
		config.Order = OrderRecommended
	}

	cbSettings := gobreaker.Settings{
		Name:        "RoutingAPI",
		MaxRequests: 5,
		Interval:    10 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		IsSuccessful: func(err error) bool {
			// 4xx answers mean the service is healthy
			if apiErr, ok := err.(*ErrorResponse); ok {
				return !apiErr.IsServerError() && !apiErr.IsRateLimited()
			}
			return err == nil
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Info("Routing circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	}

	return &Client{
		config:         config,
		httpClient:     &http.Client{Timeout: config.Timeout},
		circuitBreaker: gobreaker.NewCircuitBreaker(cbSettings),
		rateLimiter:    rate.NewLimiter(rate.Limit(config.RequestsPerSecond), 1),
		logger:         logger,
	}
}

// GetRoutes discovers routes for moving a token amount between chains, best first
func (c *Client) GetRoutes(ctx context.Context, req *entities.RouteRequest) ([]entities.Route, error) {
	if req.FromAmount == nil || req.FromAmount.Sign() <= 0 {
		return nil, fmt.Errorf("get routes failed: from amount must be positive")
	}

	payload := routesRequest{
		FromChainID:      req.FromChain,
		ToChainID:        req.ToChain,
		FromTokenAddress: req.FromToken,
		ToTokenAddress:   req.ToToken,
		FromAmount:       req.FromAmount.String(),
		FromAddress:      req.FromAddress,
		ToAddress:        req.ToAddress,
		Options: routeOptions{
			Integrator: c.config.Integrator,
			Slippage:   c.config.Slippage,
			Order:      c.config.Order,
		},
	}
	if len(c.config.AllowedBridges) > 0 {
		payload.Options.Bridges = &bridgeFilters{Allow: c.config.AllowedBridges}
	}

	body, err := c.doRequest(ctx, http.MethodPost, routesPath, payload)
	if err != nil {
		return nil, fmt.Errorf("get routes failed: %w", err)
	}

	routes, skipped, err := parseRoutes(body)
	if err != nil {
		return nil, fmt.Errorf("get routes failed: %w", err)
	}
	for _, reason := range skipped {
		c.logger.Warn("Dropped unusable route", zap.Error(reason))
	}
	return routes, nil
}

// GetStepTransaction asks the routing service for the calldata of one step
func (c *Client) GetStepTransaction(ctx context.Context, step *entities.RouteStep, fromAddress string) (*entities.TransactionRequest, error) {
	if len(step.Raw) == 0 {
		return nil, fmt.Errorf("get step transaction failed: %w: step %s has no source document", ErrMalformedResponse, step.ID)
	}

	var doc map[string]interface{}
	if err := json.Unmarshal(step.Raw, &doc); err != nil {
		return nil, fmt.Errorf("get step transaction failed: %w", err)
	}
	if action, ok := doc["action"].(map[string]interface{}); ok && fromAddress != "" {
		action["fromAddress"] = fromAddress
	}

	body, err := c.doRequest(ctx, http.MethodPost, stepTransactionPath, doc)
	if err != nil {
		return nil, fmt.Errorf("get step transaction failed: %w", err)
	}

	tx, err := parseTransactionRequest(body, step)
	if err != nil {
		return nil, fmt.Errorf("get step transaction failed: %w", err)
	}
	return tx, nil
}

// GetStatus fetches the transfer status of a submitted source transaction
func (c *Client) GetStatus(ctx context.Context, req *entities.StatusRequest) (*entities.BridgeTransferStatus, error) {
	query := url.Values{}
	query.Set("txHash", req.TxHash)
	if req.Bridge != "" {
		query.Set("bridge", req.Bridge)
	}
	if req.FromChain != 0 {
		query.Set("fromChain", strconv.FormatInt(int64(req.FromChain), 10))
	}
	if req.ToChain != 0 {
		query.Set("toChain", strconv.FormatInt(int64(req.ToChain), 10))
	}

	body, err := c.doRequest(ctx, http.MethodGet, statusPath+"?"+query.Encode(), nil)
	if err != nil {
		// Unindexed transfers are reported as 404 by some deployments
		if apiErr, ok := err.(*ErrorResponse); ok && apiErr.IsNotFound() {
			return &entities.BridgeTransferStatus{
				Status:     entities.BridgeStatusNotFound,
				Message:    apiErr.Message,
				TotalSteps: req.StepCount,
			}, nil
		}
		return nil, fmt.Errorf("get status failed: %w", err)
	}

	status, err := parseStatus(body, req.StepCount)
	if err != nil {
		return nil, fmt.Errorf("get status failed: %w", err)
	}
	return status, nil
}

func (c *Client) doRequest(ctx context.Context, method, endpoint string, payload interface{}) ([]byte, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	result, err := c.circuitBreaker.Execute(func() (interface{}, error) {
		return c.doRequestInternal(ctx, method, endpoint, payload)
	})
	if err != nil {
		return nil, err
	}
	return result.([]byte), nil
}

func (c *Client) doRequestInternal(ctx context.Context, method, endpoint string, payload interface{}) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL+endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.config.APIKey != "" {
		req.Header.Set("x-lifi-api-key", c.config.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	if resp.StatusCode >= 400 {
		errResp := ErrorResponse{StatusCode: resp.StatusCode}
		if json.Unmarshal(body, &errResp) == nil && errResp.Message != "" {
			errResp.StatusCode = resp.StatusCode
			errResp.Message = security.MaskString(errResp.Message)
			return nil, &errResp
		}
		errResp.Message = security.MaskString(string(body))
		return nil, &errResp
	}

	return body, nil
}
