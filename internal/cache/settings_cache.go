package cache

import (
	"time"

	"github.com/bwmarrin/snowflake"
	payrolldomain "github.com/kudibooks/kudibooks/internal/payrolltax/domain"
	"go.uber.org/fx"
)

const defaultSettingsTTL = 5 * time.Minute

// SettingsCache stores per-company tax settings profiles for the
// payroll hot path. Writes go through the repository, which writes the
// committed row back here, so a stale read lasts at most one TTL on a
// multi-node deployment.
type SettingsCache interface {
	GetSettings(companyID snowflake.ID) (*payrolldomain.TaxSettingsProfile, bool)
	SetSettings(companyID snowflake.ID, profile *payrolldomain.TaxSettingsProfile)
	InvalidateSettings(companyID snowflake.ID)
}

type settingsCache struct {
	profiles Cache[snowflake.ID, *payrolldomain.TaxSettingsProfile]
}

func NewSettingsCache() SettingsCache {
	return &settingsCache{
		profiles: New[snowflake.ID, *payrolldomain.TaxSettingsProfile](defaultSettingsTTL),
	}
}

// GetSettings returns a copy: callers mutate profiles in place before
// saving, and the cached value must not see those edits.
func (c *settingsCache) GetSettings(companyID snowflake.ID) (*payrolldomain.TaxSettingsProfile, bool) {
	profile, ok := c.profiles.Get(companyID)
	if !ok {
		return nil, false
	}
	copied := *profile
	return &copied, true
}

func (c *settingsCache) SetSettings(companyID snowflake.ID, profile *payrolldomain.TaxSettingsProfile) {
	if profile == nil {
		return
	}
	copied := *profile
	c.profiles.Set(companyID, &copied)
}

func (c *settingsCache) InvalidateSettings(companyID snowflake.ID) {
	c.profiles.Delete(companyID)
}

var Module = fx.Module("cache",
	fx.Provide(NewSettingsCache),
)
