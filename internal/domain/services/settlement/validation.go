package settlement

import (
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"

	"github.com/mr-tron/base58"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/sha3"

	"github.com/tipstream/tip_service/internal/domain/entities"
	"github.com/tipstream/tip_service/internal/domain/errors"
)

const (
	defaultTokenDecimals = 6
	solanaPublicKeyLen   = 32
)

var evmAddressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// Validator checks tip requests before anything touches the network
type Validator struct {
	chains      ChainProvider
	destination entities.ChainID
}

// NewValidator creates a validator for tips settling on destination
func NewValidator(chains ChainProvider, destination entities.ChainID) *Validator {
	return &Validator{chains: chains, destination: destination}
}

// Validate returns the parsed amount, truncated to the source token precision
func (v *Validator) Validate(req *entities.TipRequest) (decimal.Decimal, error) {
	if req == nil {
		return decimal.Zero, errors.ValidationError("request", "tip request is required")
	}

	source, ok := v.chains.Chain(req.SourceChain)
	if !ok {
		return decimal.Zero, errors.ValidationError("sourceChain", fmt.Sprintf("unsupported source chain %d", req.SourceChain))
	}
	destination, ok := v.chains.Chain(v.destination)
	if !ok {
		return decimal.Zero, errors.ValidationError("destinationChain", fmt.Sprintf("unsupported destination chain %d", v.destination))
	}

	if err := ValidateAddress(destination.Family, req.RecipientAddress); err != nil {
		return decimal.Zero, errors.ValidationError("recipientAddress", err.Error())
	}

	raw := strings.TrimSpace(req.Amount)
	if raw == "" {
		return decimal.Zero, errors.ValidationError("amount", "amount is required")
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, errors.ValidationError("amount", fmt.Sprintf("amount %q is not a number", raw))
	}
	if !amount.IsPositive() {
		return decimal.Zero, errors.ValidationError("amount", "amount must be positive")
	}

	decimals := int32(defaultTokenDecimals)
	if source.SettlementToken != nil {
		decimals = source.SettlementToken.Decimals
	}
	truncated := amount.Truncate(decimals)
	if truncated.IsZero() {
		return decimal.Zero, errors.ValidationError("amount",
			fmt.Sprintf("amount %s is below the smallest unit of a %d-decimal token", raw, decimals))
	}

	return truncated, nil
}

// ValidateAddress checks addr is well formed for the chain family
func ValidateAddress(family entities.ChainFamily, addr string) error {
	switch family {
	case entities.ChainFamilyEVM:
		return validateEVMAddress(addr)
	case entities.ChainFamilySolana:
		return validateSolanaAddress(addr)
	default:
		return fmt.Errorf("unsupported chain family %q", family)
	}
}

func validateEVMAddress(addr string) error {
	if !evmAddressPattern.MatchString(addr) {
		return fmt.Errorf("invalid EVM address %q", addr)
	}
	body := addr[2:]
	// All lower or all upper case carries no checksum
	if body == strings.ToLower(body) || body == strings.ToUpper(body) {
		return nil
	}
	if ChecksumAddress(addr) != addr {
		return fmt.Errorf("EVM address %q fails its EIP-55 checksum", addr)
	}
	return nil
}

// ChecksumAddress returns the EIP-55 mixed-case form of a 0x-prefixed address
func ChecksumAddress(addr string) string {
	lower := strings.ToLower(strings.TrimPrefix(addr, "0x"))

	hasher := sha3.NewLegacyKeccak256()
	hasher.Write([]byte(lower))
	hash := hex.EncodeToString(hasher.Sum(nil))

	out := make([]byte, len(lower))
	for i := 0; i < len(lower); i++ {
		c := lower[i]
		if c >= 'a' && c <= 'f' && hash[i] >= '8' {
			c -= 'a' - 'A'
		}
		out[i] = c
	}
	return "0x" + string(out)
}

func validateSolanaAddress(addr string) error {
	if len(addr) < 32 || len(addr) > 44 {
		return fmt.Errorf("invalid Solana address %q", addr)
	}
	decoded, err := base58.Decode(addr)
	if err != nil {
		return fmt.Errorf("invalid Solana address %q: %v", addr, err)
	}
	if len(decoded) != solanaPublicKeyLen {
		return fmt.Errorf("invalid Solana address %q: decodes to %d bytes", addr, len(decoded))
	}
	return nil
}
