package escrow

import (
	"errors"
	"fmt"
)

// Split is the provider/platform breakdown of a captured amount. Amounts are
// integer minor currency units; the split is computed once at capture time
// and never recomputed.
type Split struct {
	ProviderAmount    int64
	PlatformFeeAmount int64
}

var ErrInvalidSplit = errors.New("invalid escrow split")

// ComputeSplit derives the provider share from the captured total and the
// platform fee fixed at authorization time.
func ComputeSplit(totalAmount int64, platformFeeAmount int64) (*Split, error) {
	if totalAmount < 0 || platformFeeAmount < 0 {
		return nil, fmt.Errorf("%w: negative amount (total=%d fee=%d)", ErrInvalidSplit, totalAmount, platformFeeAmount)
	}
	if platformFeeAmount > totalAmount {
		return nil, fmt.Errorf("%w: fee %d exceeds total %d", ErrInvalidSplit, platformFeeAmount, totalAmount)
	}
	return &Split{
		ProviderAmount:    totalAmount - platformFeeAmount,
		PlatformFeeAmount: platformFeeAmount,
	}, nil
}

// Verify checks the ledger invariant provider + fee == captured.
func (s *Split) Verify(capturedAmount int64) error {
	if s.ProviderAmount+s.PlatformFeeAmount != capturedAmount {
		return fmt.Errorf("%w: %d + %d != %d", ErrInvalidSplit, s.ProviderAmount, s.PlatformFeeAmount, capturedAmount)
	}
	return nil
}
