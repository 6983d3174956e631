package app

import (
	"context"

	"github.com/louisbranch/staybroker/internal/services/booking/domain"
)

// Asset is the listing view the booking engine needs: ownership, whether it
// accepts reservations, and its cancellation policy.
type Asset struct {
	ID                 string
	HostID             string
	Active             bool
	CancellationPolicy domain.CancellationPolicy
}

// AssetGateway resolves listings. A missing asset is reported through the
// error, not a zero value.
type AssetGateway interface {
	Asset(ctx context.Context, id string) (Asset, error)
}

// PayoutAccount is a host's connected payout destination.
type PayoutAccount struct {
	AccountID        string
	TransfersEnabled bool
}

// AccountGateway resolves the payout account connected to a host.
type AccountGateway interface {
	PayoutAccount(ctx context.Context, hostID string) (PayoutAccount, error)
}
