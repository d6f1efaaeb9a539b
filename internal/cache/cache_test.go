package cache

import (
	"testing"
	"time"

	payrolldomain "github.com/kudibooks/kudibooks/internal/payrolltax/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTTLCache_SetGetDelete(t *testing.T) {
	c := New[string, int](time.Minute)

	_, ok := c.Get("missing")
	assert.False(t, ok)

	c.Set("a", 1)
	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	c.Set("a", 2)
	v, _ = c.Get("a")
	assert.Equal(t, 2, v)

	c.Delete("a")
	_, ok = c.Get("a")
	assert.False(t, ok)
}

func TestTTLCache_Expiry(t *testing.T) {
	c := New[string, int](10 * time.Millisecond)

	c.Set("a", 1)
	_, ok := c.Get("a")
	require.True(t, ok)

	time.Sleep(20 * time.Millisecond)
	_, ok = c.Get("a")
	assert.False(t, ok)
}

func TestSettingsCache_CopiesProfiles(t *testing.T) {
	c := NewSettingsCache()

	profile := &payrolldomain.TaxSettingsProfile{ID: 1, CompanyID: 10, Mode: payrolldomain.ModeStandardPAYE}
	c.SetSettings(10, profile)

	// Mutating the original must not leak into cached reads.
	profile.Mode = payrolldomain.ModeCustomPercent

	cached, ok := c.GetSettings(10)
	require.True(t, ok)
	assert.Equal(t, payrolldomain.ModeStandardPAYE, cached.Mode)

	// Reads get independent copies as well.
	cached.Mode = payrolldomain.ModeCustomPercent
	again, ok := c.GetSettings(10)
	require.True(t, ok)
	assert.Equal(t, payrolldomain.ModeStandardPAYE, again.Mode)

	c.InvalidateSettings(10)
	_, ok = c.GetSettings(10)
	assert.False(t, ok)
}
