// Package directory is an in-memory asset and payout-account registry. It
// backs the sandbox deployment and tests; a production deployment swaps in
// gateways over the listings and accounts services.
package directory

import (
	"context"
	"sync"

	"github.com/louisbranch/staybroker/internal/platform/errors"
	"github.com/louisbranch/staybroker/internal/services/booking/app"
	"github.com/louisbranch/staybroker/internal/services/booking/domain"
)

// Directory holds assets and payout accounts in memory.
type Directory struct {
	mu       sync.RWMutex
	assets   map[string]app.Asset
	accounts map[string]app.PayoutAccount
}

// New creates an empty directory.
func New() *Directory {
	return &Directory{
		assets:   make(map[string]app.Asset),
		accounts: make(map[string]app.PayoutAccount),
	}
}

// PutAsset registers or replaces an asset. An empty policy defaults to the
// platform's Moderate policy.
func (d *Directory) PutAsset(asset app.Asset) {
	if asset.CancellationPolicy == "" {
		asset.CancellationPolicy = domain.PolicyModerate
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.assets[asset.ID] = asset
}

// PutAccount registers or replaces a host's payout account.
func (d *Directory) PutAccount(hostID string, account app.PayoutAccount) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.accounts[hostID] = account
}

// Asset resolves a listing by id.
func (d *Directory) Asset(ctx context.Context, id string) (app.Asset, error) {
	if err := ctx.Err(); err != nil {
		return app.Asset{}, err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	asset, ok := d.assets[id]
	if !ok {
		return app.Asset{}, errors.New(errors.CodeAssetNotFound, "asset not found")
	}
	return asset, nil
}

// PayoutAccount resolves the payout account connected to a host. Hosts
// without a connected account resolve to a zero account with transfers
// disabled.
func (d *Directory) PayoutAccount(ctx context.Context, hostID string) (app.PayoutAccount, error) {
	if err := ctx.Err(); err != nil {
		return app.PayoutAccount{}, err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.accounts[hostID], nil
}
