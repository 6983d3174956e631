package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestPolicyFromString(t *testing.T) {
	cases := []struct {
		in   string
		want CancellationPolicy
	}{
		{"Flexible", PolicyFlexible},
		{"Moderate", PolicyModerate},
		{"Strict", PolicyStrict},
		{"Super Strict", PolicySuperStrict},
		{" Moderate ", PolicyModerate},
		{"no-such-policy", PolicyModerate},
		{"", PolicyModerate},
	}
	for _, tc := range cases {
		if got := PolicyFromString(tc.in); got != tc.want {
			t.Fatalf("PolicyFromString(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestDaysUntilCheckIn(t *testing.T) {
	now := time.Date(2024, 6, 4, 12, 0, 0, 0, time.UTC)

	if got := DaysUntilCheckIn(now, now.Add(6*24*time.Hour)); got != 6 {
		t.Fatalf("days = %d, want 6", got)
	}
	// Partial day rounds up.
	if got := DaysUntilCheckIn(now, now.Add(12*time.Hour)); got != 1 {
		t.Fatalf("days = %d, want 1", got)
	}
	if got := DaysUntilCheckIn(now, now); got != 0 {
		t.Fatalf("days = %d, want 0", got)
	}
	if got := DaysUntilCheckIn(now, now.Add(-36*time.Hour)); got != -1 {
		t.Fatalf("days = %d, want -1", got)
	}
}

func TestRefundPercentageThresholds(t *testing.T) {
	cases := []struct {
		policy CancellationPolicy
		days   int
		want   int64
	}{
		{PolicyFlexible, 1, 100},
		{PolicyFlexible, 0, 50},
		{PolicyFlexible, -1, 0},
		{PolicyModerate, 5, 100},
		{PolicyModerate, 4, 50},
		{PolicyModerate, 1, 50},
		{PolicyModerate, 0, 0},
		{PolicyStrict, 7, 100},
		{PolicyStrict, 6, 50},
		{PolicyStrict, 0, 0},
		{PolicySuperStrict, 14, 100},
		{PolicySuperStrict, 13, 50},
		{PolicySuperStrict, 7, 50},
		{PolicySuperStrict, 6, 0},
	}
	for _, tc := range cases {
		if got := RefundPercentage(tc.policy, tc.days); got != tc.want {
			t.Fatalf("%s at %d days = %d%%, want %d%%", tc.policy, tc.days, got, tc.want)
		}
	}
}

func TestRefundPercentageMonotonic(t *testing.T) {
	for policy := range policyThresholds {
		previous := int64(100)
		for days := 20; days >= -5; days-- {
			got := RefundPercentage(policy, days)
			if got > previous {
				t.Fatalf("%s: refund increased from %d%% to %d%% at %d days", policy, previous, got, days)
			}
			previous = got
		}
	}
}

func TestRefundAmountScenarios(t *testing.T) {
	now := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	amount := decimal.NewFromInt(200)

	// Moderate policy, check-in in 6 days: full refund.
	sixDays := now.Add(6 * 24 * time.Hour)
	if got := RefundAmount(PolicyModerate, now, sixDays, amount); !got.Equal(decimal.RequireFromString("200.00")) {
		t.Fatalf("6-day refund = %s, want 200.00", got)
	}

	// Check-in in 3 days: half refund.
	threeDays := now.Add(3 * 24 * time.Hour)
	if got := RefundAmount(PolicyModerate, now, threeDays, amount); !got.Equal(decimal.RequireFromString("100.00")) {
		t.Fatalf("3-day refund = %s, want 100.00", got)
	}

	// Check-in today: no refund.
	if got := RefundAmount(PolicyModerate, now, now, amount); !got.IsZero() {
		t.Fatalf("same-day refund = %s, want 0", got)
	}
}

func TestRefundAmountRounding(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	threeDays := now.Add(3 * 24 * time.Hour)
	amount := decimal.RequireFromString("199.99")

	got := RefundAmount(PolicyModerate, now, threeDays, amount)
	want := decimal.RequireFromString("100.00")
	if !got.Equal(want) {
		t.Fatalf("refund = %s, want %s", got, want)
	}
	if !got.Round(2).Equal(got) {
		t.Fatalf("refund %s not rounded to minor unit", got)
	}
}

func TestRefundNeverExceedsAmount(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	amounts := []string{"0", "0.01", "99.99", "200", "12345.67"}
	for _, raw := range amounts {
		amount := decimal.RequireFromString(raw)
		for days := -2; days <= 16; days++ {
			checkIn := now.Add(time.Duration(days) * 24 * time.Hour)
			for policy := range policyThresholds {
				refund := RefundAmount(policy, now, checkIn, amount)
				if refund.GreaterThan(amount) {
					t.Fatalf("%s: refund %s exceeds amount %s", policy, refund, amount)
				}
				if refund.IsNegative() {
					t.Fatalf("%s: negative refund %s", policy, refund)
				}
			}
		}
	}
}

func TestPlatformFee(t *testing.T) {
	fee := PlatformFee(decimal.NewFromInt(200), decimal.RequireFromString("0.10"))
	if !fee.Equal(decimal.RequireFromString("20.00")) {
		t.Fatalf("fee = %s, want 20.00", fee)
	}
	host := HostAmount(decimal.NewFromInt(200), fee)
	if !host.Equal(decimal.RequireFromString("180.00")) {
		t.Fatalf("host amount = %s, want 180.00", host)
	}

	oddFee := PlatformFee(decimal.RequireFromString("99.99"), decimal.RequireFromString("0.10"))
	if !oddFee.Equal(decimal.RequireFromString("10.00")) {
		t.Fatalf("fee = %s, want 10.00", oddFee)
	}
}
