package testutil

import (
	"sync/atomic"
	"testing"

	"github.com/huddlelabs/huddle/cache"
	"github.com/huddlelabs/huddle/config"
	dbadapter "github.com/huddlelabs/huddle/db"
	"github.com/huddlelabs/huddle/model"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// SetupTestDB creates a private in-memory database and runs AutoMigrate.
// It requires no external services and is safe to use in parallel tests.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := dbadapter.Open(config.DatabaseConfig{
		Mode: dbadapter.ModeMemory,
	})
	require.NoError(t, err, "SetupTestDB: Open")
	require.NoError(t, model.AutoMigrate(db), "SetupTestDB: AutoMigrate")
	return db
}

// SetupTestCache creates a LocalCache and LocalPubSub (no Redis required).
func SetupTestCache(t *testing.T) (cache.Cache, cache.PubSub) {
	t.Helper()
	cfg := cache.CacheConfig{} // empty RedisAddr → local implementations
	c, err := cache.NewCache(cfg)
	require.NoError(t, err, "SetupTestCache: NewCache")
	ps, err := cache.NewPubSub(cfg)
	require.NoError(t, err, "SetupTestCache: NewPubSub")
	return c, ps
}

// SeedCommunity inserts a community on the given tier.
func SeedCommunity(t *testing.T, db *gorm.DB, name, tierName string) *model.Community {
	t.Helper()
	c := &model.Community{Name: name, Tier: tierName, TrialFallbackTier: model.TierStarter}
	require.NoError(t, db.Create(c).Error)
	return c
}

var accountSeq atomic.Int64

// Start synthetic account IDs well above any auto-increment ID assigned to
// accounts created through the login flow, so seeded members never collide
// with real accounts on the (account_id, community_id) unique index.
func init() { accountSeq.Store(1 << 30) }

// SeedMember inserts a member of the community with the given XP.
func SeedMember(t *testing.T, db *gorm.DB, communityID int64, name string, xp int64) *model.Member {
	t.Helper()
	m := &model.Member{
		AccountID:   accountSeq.Add(1),
		CommunityID: communityID,
		DisplayName: name,
		Role:        model.RoleMember,
		XP:          xp,
	}
	require.NoError(t, db.Create(m).Error)
	return m
}
