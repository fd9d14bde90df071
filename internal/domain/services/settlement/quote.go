package settlement

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/tipstream/tip_service/internal/domain/entities"
	"github.com/tipstream/tip_service/internal/domain/errors"
	"github.com/tipstream/tip_service/internal/infrastructure/metrics"
)

// QuoteResolver prices the move of a settlement-token amount between chains
type QuoteResolver struct {
	chains  ChainProvider
	routes  RouteFinder
	metrics *metrics.Collector
	tracer  trace.Tracer
	logger  *zap.Logger
}

// NewQuoteResolver creates a quote resolver
func NewQuoteResolver(chains ChainProvider, routes RouteFinder, collector *metrics.Collector, tracer trace.Tracer, logger *zap.Logger) *QuoteResolver {
	return &QuoteResolver{
		chains:  chains,
		routes:  routes,
		metrics: collector,
		tracer:  tracer,
		logger:  logger,
	}
}

// GetQuote returns the best route's totals. It never mutates shared state.
func (r *QuoteResolver) GetQuote(ctx context.Context, req *entities.QuoteRequest) (quote *entities.Quote, err error) {
	ctx, span := r.tracer.Start(ctx, "settlement.GetQuote", trace.WithAttributes(
		attribute.Int64("source_chain", int64(req.SourceChain)),
		attribute.Int64("destination_chain", int64(req.DestinationChain)),
		attribute.String("amount", req.Amount.String()),
	))
	started := time.Now()
	defer func() {
		r.metrics.RecordQuote(time.Since(started), err)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	fromToken, err := r.settlementToken(req.SourceChain)
	if err != nil {
		return nil, err
	}
	toToken, err := r.settlementToken(req.DestinationChain)
	if err != nil {
		return nil, err
	}

	fromAmount := ToBaseUnits(req.Amount, fromToken.Decimals)
	if fromAmount.Sign() <= 0 {
		return nil, errors.ValidationError("amount", fmt.Sprintf("amount %s is below the smallest token unit", req.Amount))
	}

	routes, err := r.routes.GetRoutes(ctx, &entities.RouteRequest{
		FromChain:   req.SourceChain,
		ToChain:     req.DestinationChain,
		FromToken:   fromToken.Address,
		ToToken:     toToken.Address,
		FromAmount:  fromAmount,
		FromAddress: req.FromAddress,
		ToAddress:   req.ToAddress,
	})
	if err != nil {
		return nil, errors.ServiceUnavailableError("routing", err)
	}
	if len(routes) == 0 {
		return nil, errors.NoRouteFoundError(int64(req.SourceChain), int64(req.DestinationChain))
	}

	best := routes[0]
	quote = &entities.Quote{
		SourceChain:      req.SourceChain,
		DestinationChain: req.DestinationChain,
		InputAmount:      req.Amount,
		OutputAmount:     decimal.Zero,
		EstimatedGasUSD:  decimal.Zero,
		BridgeFeeUSD:     decimal.Zero,
		RouteID:          best.ID,
		Steps:            best.Steps,
	}
	if best.ToAmount != nil {
		quote.OutputAmount = FromBaseUnits(best.ToAmount, toToken.Decimals)
	}
	for _, step := range best.Steps {
		quote.EstimatedGasUSD = quote.EstimatedGasUSD.Add(step.GasCostUSD)
		quote.BridgeFeeUSD = quote.BridgeFeeUSD.Add(step.FeeCostUSD)
		quote.EstimatedTimeSeconds += step.ExecutionDuration
		if quote.Tool == "" && step.Kind.IsCrossChain() {
			quote.Tool = step.Tool
		}
	}
	if quote.Tool == "" && len(best.Steps) > 0 {
		quote.Tool = best.Steps[0].Tool
	}

	span.SetAttributes(attribute.String("route_id", quote.RouteID), attribute.String("tool", quote.Tool))
	r.logger.Debug("Quote resolved",
		zap.Int64("source_chain", int64(req.SourceChain)),
		zap.Int64("destination_chain", int64(req.DestinationChain)),
		zap.String("route_id", quote.RouteID),
		zap.String("tool", quote.Tool),
		zap.Int("steps", len(quote.Steps)),
		zap.String("output", quote.OutputAmount.String()),
		zap.String("gas_usd", quote.EstimatedGasUSD.String()),
		zap.String("fee_usd", quote.BridgeFeeUSD.String()))

	return quote, nil
}

func (r *QuoteResolver) settlementToken(chainID entities.ChainID) (*entities.SettlementToken, error) {
	chain, ok := r.chains.Chain(chainID)
	if !ok || chain.SettlementToken == nil || chain.SettlementToken.Address == "" {
		return nil, errors.ConfigMissingError(int64(chainID))
	}
	return chain.SettlementToken, nil
}

// ToBaseUnits converts a decimal amount to fixed-point, dropping extra precision
func ToBaseUnits(amount decimal.Decimal, decimals int32) *big.Int {
	return amount.Shift(decimals).Truncate(0).BigInt()
}

// FromBaseUnits converts a fixed-point amount back to a decimal
func FromBaseUnits(amount *big.Int, decimals int32) decimal.Decimal {
	return decimal.NewFromBigInt(amount, -decimals)
}
