package directory

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/louisbranch/staybroker/internal/services/booking/app"
	"github.com/louisbranch/staybroker/internal/services/booking/domain"
)

type fileAsset struct {
	ID                 string `json:"id"`
	HostID             string `json:"host_id"`
	Active             bool   `json:"active"`
	CancellationPolicy string `json:"cancellation_policy"`
}

type fileAccount struct {
	HostID           string `json:"host_id"`
	AccountID        string `json:"account_id"`
	TransfersEnabled bool   `json:"transfers_enabled"`
}

type fileContents struct {
	Assets   []fileAsset   `json:"assets"`
	Accounts []fileAccount `json:"accounts"`
}

// LoadFile reads assets and payout accounts from a JSON file. Both service
// processes point at the same file so they agree on the registry.
func LoadFile(path string) (*Directory, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read directory file: %w", err)
	}
	var contents fileContents
	if err := json.Unmarshal(raw, &contents); err != nil {
		return nil, fmt.Errorf("parse directory file: %w", err)
	}

	dir := New()
	for _, asset := range contents.Assets {
		if asset.ID == "" || asset.HostID == "" {
			return nil, fmt.Errorf("directory asset requires id and host_id")
		}
		dir.PutAsset(app.Asset{
			ID:                 asset.ID,
			HostID:             asset.HostID,
			Active:             asset.Active,
			CancellationPolicy: domain.PolicyFromString(asset.CancellationPolicy),
		})
	}
	for _, account := range contents.Accounts {
		if account.HostID == "" {
			return nil, fmt.Errorf("directory account requires host_id")
		}
		dir.PutAccount(account.HostID, app.PayoutAccount{
			AccountID:        account.AccountID,
			TransfersEnabled: account.TransfersEnabled,
		})
	}
	return dir, nil
}
