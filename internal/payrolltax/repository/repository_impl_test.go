package repository

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/kudibooks/kudibooks/internal/cache"
	"github.com/kudibooks/kudibooks/internal/config"
	payrolldomain "github.com/kudibooks/kudibooks/internal/payrolltax/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newTestRepository(t *testing.T) (payrolldomain.Repository, cache.SettingsCache, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&payrolldomain.TaxSettingsProfile{}))

	node, err := snowflake.NewNode(7)
	require.NoError(t, err)

	settingsCache := cache.NewSettingsCache()
	repo := NewRepository(Params{
		DB:     db,
		GenID:  node,
		Policy: config.StaticTaxPolicyHolder(config.DefaultTaxPolicy()),
		Cache:  settingsCache,
	})
	return repo, settingsCache, db
}

func TestGetOrCreate_PersistsDefaults(t *testing.T) {
	repo, _, db := newTestRepository(t)
	ctx := context.Background()

	profile, err := repo.GetOrCreate(ctx, 50)
	require.NoError(t, err)
	assert.Equal(t, payrolldomain.ModeStandardPAYE, profile.Mode)

	var count int64
	db.Model(&payrolldomain.TaxSettingsProfile{}).Where("company_id = ?", 50).Count(&count)
	assert.EqualValues(t, 1, count)
}

func TestUpdate_RefreshesCacheAfterCommit(t *testing.T) {
	repo, settingsCache, _ := newTestRepository(t)
	ctx := context.Background()

	// Warm the cache with the default profile.
	profile, err := repo.GetOrCreate(ctx, 51)
	require.NoError(t, err)
	require.Equal(t, payrolldomain.ModeStandardPAYE, profile.Mode)

	profile.Mode = payrolldomain.ModeCustomPercent
	profile.CustomPercent = d("5")
	require.NoError(t, repo.Update(ctx, profile))

	// The cache holds the committed row, not the pre-update profile a
	// concurrent read could have put back.
	cached, ok := settingsCache.GetSettings(51)
	require.True(t, ok)
	assert.Equal(t, payrolldomain.ModeCustomPercent, cached.Mode)
	assert.True(t, cached.CustomPercent.Equal(d("5")))

	fresh, err := repo.GetOrCreate(ctx, 51)
	require.NoError(t, err)
	assert.Equal(t, payrolldomain.ModeCustomPercent, fresh.Mode)
}

func TestUpdate_FailedWriteLeavesCacheUntouched(t *testing.T) {
	repo, settingsCache, db := newTestRepository(t)
	ctx := context.Background()

	profile, err := repo.GetOrCreate(ctx, 52)
	require.NoError(t, err)

	// Drop the table so the UPDATE fails.
	require.NoError(t, db.Migrator().DropTable(&payrolldomain.TaxSettingsProfile{}))

	profile.Mode = payrolldomain.ModeCustomPercent
	require.Error(t, repo.Update(ctx, profile))

	cached, ok := settingsCache.GetSettings(52)
	require.True(t, ok)
	assert.Equal(t, payrolldomain.ModeStandardPAYE, cached.Mode)
}
