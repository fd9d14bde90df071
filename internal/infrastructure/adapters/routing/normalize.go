package routing

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"

	"github.com/tipstream/tip_service/internal/domain/entities"
)

// parseRoutes normalizes a routes response. Routes that contain a step of an
// unknown kind or are otherwise malformed are dropped and counted in skipped.
func parseRoutes(body []byte) (routes []entities.Route, skipped []error, err error) {
	if !gjson.ValidBytes(body) {
		return nil, nil, fmt.Errorf("%w: routes body is not JSON", ErrMalformedResponse)
	}

	result := gjson.GetBytes(body, "routes")
	if !result.Exists() {
		return nil, nil, fmt.Errorf("%w: missing routes", ErrMalformedResponse)
	}

	for _, r := range result.Array() {
		route, err := parseRoute(r)
		if err != nil {
			skipped = append(skipped, err)
			continue
		}
		routes = append(routes, route)
	}
	return routes, skipped, nil
}

func parseRoute(r gjson.Result) (entities.Route, error) {
	id := r.Get("id").String()
	if id == "" {
		return entities.Route{}, fmt.Errorf("%w: route without id", ErrMalformedResponse)
	}

	stepsResult := r.Get("steps").Array()
	if len(stepsResult) == 0 {
		return entities.Route{}, fmt.Errorf("%w: route %s has no steps", ErrMalformedResponse, id)
	}

	steps := make([]entities.RouteStep, 0, len(stepsResult))
	for i, s := range stepsResult {
		step, err := parseStep(s)
		if err != nil {
			return entities.Route{}, fmt.Errorf("route %s step %d: %w", id, i, err)
		}
		steps = append(steps, step)
	}

	return entities.Route{
		ID:         id,
		FromChain:  entities.ChainID(r.Get("fromChainId").Int()),
		ToChain:    entities.ChainID(r.Get("toChainId").Int()),
		FromAmount: parseAmount(r.Get("fromAmount")),
		ToAmount:   parseAmount(r.Get("toAmount")),
		Steps:      steps,
	}, nil
}

func parseStep(s gjson.Result) (entities.RouteStep, error) {
	kind := entities.StepKind(strings.ToLower(s.Get("type").String()))
	if !kind.IsValid() {
		return entities.RouteStep{}, fmt.Errorf("%w: %q", ErrUnknownStepKind, s.Get("type").String())
	}

	action := s.Get("action")
	estimate := s.Get("estimate")

	raw := make([]byte, len(s.Raw))
	copy(raw, s.Raw)

	return entities.RouteStep{
		ID:                s.Get("id").String(),
		Kind:              kind,
		Tool:              s.Get("tool").String(),
		FromChain:         entities.ChainID(action.Get("fromChainId").Int()),
		ToChain:           entities.ChainID(action.Get("toChainId").Int()),
		FromToken:         action.Get("fromToken.address").String(),
		ToToken:           action.Get("toToken.address").String(),
		FromAmount:        parseAmount(action.Get("fromAmount")),
		ApprovalAddress:   estimate.Get("approvalAddress").String(),
		GasCostUSD:        sumUSD(estimate.Get("gasCosts.#.amountUSD")),
		FeeCostUSD:        sumUSD(estimate.Get("feeCosts.#.amountUSD")),
		ExecutionDuration: int(estimate.Get("executionDuration").Float()),
		Raw:               raw,
	}, nil
}

func parseAmount(r gjson.Result) *big.Int {
	if !r.Exists() {
		return nil
	}
	amount, ok := new(big.Int).SetString(r.String(), 10)
	if !ok {
		return nil
	}
	return amount
}

func sumUSD(values gjson.Result) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values.Array() {
		d, err := decimal.NewFromString(v.String())
		if err != nil {
			continue
		}
		total = total.Add(d)
	}
	return total
}

func parseTransactionRequest(body []byte, step *entities.RouteStep) (*entities.TransactionRequest, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%w: step transaction body is not JSON", ErrMalformedResponse)
	}
	tx := gjson.GetBytes(body, "transactionRequest")
	if !tx.Exists() || (tx.Get("to").String() == "" && tx.Get("data").String() == "") {
		return nil, ErrNoTransactionRequest
	}

	chainID := entities.ChainID(tx.Get("chainId").Int())
	if chainID == 0 {
		chainID = step.FromChain
	}
	return &entities.TransactionRequest{
		ChainID:  chainID,
		From:     tx.Get("from").String(),
		To:       tx.Get("to").String(),
		Data:     tx.Get("data").String(),
		Value:    tx.Get("value").String(),
		GasLimit: tx.Get("gasLimit").String(),
		GasPrice: tx.Get("gasPrice").String(),
	}, nil
}

// parseStatus maps a status response onto step completion counts. When the
// response lists no steps, a confirmed sending tx counts as one step done and a
// receiving tx as all but the last; only DONE completes every step.
func parseStatus(body []byte, stepCount int) (*entities.BridgeTransferStatus, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%w: status body is not JSON", ErrMalformedResponse)
	}
	doc := gjson.ParseBytes(body)

	raw := strings.ToUpper(doc.Get("status").String())
	var code entities.BridgeStatusCode
	switch entities.BridgeStatusCode(raw) {
	case entities.BridgeStatusNotFound, entities.BridgeStatusInvalid, entities.BridgeStatusPending,
		entities.BridgeStatusDone, entities.BridgeStatusFailed:
		code = entities.BridgeStatusCode(raw)
	case "":
		return nil, fmt.Errorf("%w: missing status", ErrMalformedResponse)
	default:
		code = entities.BridgeStatusInvalid
	}

	status := &entities.BridgeTransferStatus{
		Status:          code,
		Substatus:       doc.Get("substatus").String(),
		Message:         doc.Get("substatusMessage").String(),
		ReceivingTxHash: doc.Get("receiving.txHash").String(),
	}
	if status.Message == "" {
		status.Message = doc.Get("message").String()
	}

	if steps := doc.Get("steps"); steps.IsArray() && len(steps.Array()) > 0 {
		all := steps.Array()
		status.TotalSteps = len(all)
		for _, s := range all {
			if strings.EqualFold(s.Get("status").String(), string(entities.BridgeStatusDone)) {
				status.CompletedSteps++
			}
		}
		if code == entities.BridgeStatusDone {
			status.CompletedSteps = status.TotalSteps
		}
		return status, nil
	}

	total := stepCount
	if total < 1 {
		total = 1
	}
	status.TotalSteps = total

	switch code {
	case entities.BridgeStatusDone:
		status.CompletedSteps = total
	case entities.BridgeStatusPending:
		// Without step details the destination receipt counts as one more phase,
		// so a confirmed source transaction shows progress even on one-step routes
		status.TotalSteps = total + 1
		if doc.Get("sending.txHash").String() != "" {
			status.CompletedSteps = 1
		}
		if status.ReceivingTxHash != "" {
			status.CompletedSteps = total
		}
	}
	return status, nil
}
