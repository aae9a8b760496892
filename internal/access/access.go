// Package access decides whether a caller may invoke a prompt under its
// declared access policy. Token and NFT holdings are checked through the
// HoldingChecker boundary; the evaluator itself holds no chain state.
package access

import (
	"context"
	"fmt"
	"time"
)

// PolicyType enumerates the supported access policy kinds.
type PolicyType string

const (
	Public     PolicyType = "public"
	Private    PolicyType = "private"
	TokenGated PolicyType = "token_gated"
	NFTGated   PolicyType = "nft_gated"
	Custom     PolicyType = "custom"
)

// Policy is a prompt's declared access rule set.
//
// MaxUsagePerDay is declared metadata only; rate limiting is the calling
// layer's responsibility, not the evaluator's.
type Policy struct {
	Type           PolicyType `json:"type" yaml:"type"`
	Whitelist      []string   `json:"whitelist,omitempty" yaml:"whitelist,omitempty"`
	TokenAddress   string     `json:"tokenAddress,omitempty" yaml:"tokenAddress,omitempty"`
	MinimumBalance float64    `json:"minimumBalance,omitempty" yaml:"minimumBalance,omitempty"`
	ExpirationDate int64      `json:"expirationDate,omitempty" yaml:"expirationDate,omitempty"` // epoch millis, 0 = none
	MaxUsagePerDay int        `json:"maxUsagePerDay,omitempty" yaml:"maxUsagePerDay,omitempty"`
}

// HoldingChecker verifies token or NFT holdings for gated policies.
// Implementations live at the chain boundary.
type HoldingChecker interface {
	HasRequiredHolding(ctx context.Context, caller, ref string, amount float64) (bool, error)
}

// DeniedError reports a policy denial. It is distinct from infrastructure
// errors (e.g. a failed chain lookup), which are returned as plain errors.
type DeniedError struct {
	Reason string
}

func (e *DeniedError) Error() string {
	return "access denied: " + e.Reason
}

// Check evaluates the policy for the caller. It returns nil on grant,
// *DeniedError on denial, and any other error when a holdings lookup fails.
//
// Expiration is evaluated after the type-specific check passes and overrides
// an otherwise-granted access.
func Check(ctx context.Context, policy Policy, caller, owner string, holdings HoldingChecker, now time.Time) error {
	switch policy.Type {
	case Public:
		// no type-specific restriction

	case Private:
		if caller != owner {
			return &DeniedError{Reason: "private prompt"}
		}

	case TokenGated, NFTGated:
		kind := "token balance"
		if policy.Type == NFTGated {
			kind = "NFT ownership"
		}
		if holdings == nil {
			return &DeniedError{Reason: fmt.Sprintf("no holdings checker configured for %s check", kind)}
		}
		ok, err := holdings.HasRequiredHolding(ctx, caller, policy.TokenAddress, policy.MinimumBalance)
		if err != nil {
			return fmt.Errorf("holdings check for %s: %w", policy.TokenAddress, err)
		}
		if !ok {
			return &DeniedError{Reason: fmt.Sprintf("insufficient %s for %s (minimum %v)", kind, policy.TokenAddress, policy.MinimumBalance)}
		}

	case Custom:
		// An absent whitelist denies; a custom policy never silently allows.
		allowed := false
		for _, id := range policy.Whitelist {
			if id == caller {
				allowed = true
				break
			}
		}
		if !allowed {
			return &DeniedError{Reason: "caller is not on the whitelist"}
		}

	default:
		return &DeniedError{Reason: fmt.Sprintf("unknown policy type %q", policy.Type)}
	}

	if policy.ExpirationDate > 0 && now.UnixMilli() > policy.ExpirationDate {
		return &DeniedError{Reason: "access expired"}
	}
	return nil
}
