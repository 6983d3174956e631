package domain

import (
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// CancellationPolicy controls how much of a captured payment is returned
// when a guest cancels.
type CancellationPolicy string

const (
	PolicyFlexible    CancellationPolicy = "Flexible"
	PolicyModerate    CancellationPolicy = "Moderate"
	PolicyStrict      CancellationPolicy = "Strict"
	PolicySuperStrict CancellationPolicy = "Super Strict"
)

// PolicyFromString normalizes a policy label. Unknown labels fall back to
// Moderate, the platform default.
func PolicyFromString(value string) CancellationPolicy {
	switch strings.TrimSpace(value) {
	case string(PolicyFlexible):
		return PolicyFlexible
	case string(PolicyModerate):
		return PolicyModerate
	case string(PolicyStrict):
		return PolicyStrict
	case string(PolicySuperStrict):
		return PolicySuperStrict
	default:
		return PolicyModerate
	}
}

// refundThresholds holds the day cutoffs for full and half refunds.
type refundThresholds struct {
	full int
	half int
}

var policyThresholds = map[CancellationPolicy]refundThresholds{
	PolicyFlexible:    {full: 1, half: 0},
	PolicyModerate:    {full: 5, half: 1},
	PolicyStrict:      {full: 7, half: 1},
	PolicySuperStrict: {full: 14, half: 7},
}

// DaysUntilCheckIn returns ceil((checkIn - now) / 24h). A check-in already
// in the past yields a non-positive count.
func DaysUntilCheckIn(now, checkIn time.Time) int {
	return int(math.Ceil(checkIn.Sub(now).Hours() / 24))
}

// RefundPercentage returns the refund percentage for a policy given the
// number of days until check-in. For any fixed policy the percentage is
// non-increasing as the check-in approaches.
func RefundPercentage(policy CancellationPolicy, daysUntilCheckIn int) int64 {
	thresholds, ok := policyThresholds[policy]
	if !ok {
		thresholds = policyThresholds[PolicyModerate]
	}
	switch {
	case daysUntilCheckIn >= thresholds.full:
		return 100
	case daysUntilCheckIn >= thresholds.half:
		return 50
	default:
		return 0
	}
}

// RefundAmount computes the refund for cancelling at now, rounded to the
// currency minor unit. The result never exceeds the original amount.
func RefundAmount(policy CancellationPolicy, now, checkIn time.Time, amount decimal.Decimal) decimal.Decimal {
	percentage := RefundPercentage(policy, DaysUntilCheckIn(now, checkIn))
	refund := amount.Mul(decimal.NewFromInt(percentage)).Div(decimal.NewFromInt(100)).Round(2)
	if refund.GreaterThan(amount) {
		return amount
	}
	return refund
}
