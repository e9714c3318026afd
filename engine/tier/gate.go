package tier

import (
	"time"

	"github.com/huddlelabs/huddle/model"
)

// Feature names a gated subsystem.
type Feature = string

const (
	FeatureActions    Feature = "actions"
	FeatureBadges     Feature = "badges"
	FeatureQuests     Feature = "quests"
	FeatureStore      Feature = "store"
	FeatureAnalytics  Feature = "analytics"
	FeatureWhiteLabel Feature = "white_label"
)

// rank orders the subscription tiers. Trial is handled separately: it ranks
// above everything while the trial window is open.
var rank = map[string]int{
	model.TierStarter: 1,
	model.TierPro:     2,
	model.TierElite:   3,
}

// minRank maps each feature to the lowest tier that includes it. Actions
// and badges are the base product; quests and the store arrive at pro;
// analytics and white-labeling are elite.
var minRank = map[Feature]int{
	FeatureActions:    rank[model.TierStarter],
	FeatureBadges:     rank[model.TierStarter],
	FeatureQuests:     rank[model.TierPro],
	FeatureStore:      rank[model.TierPro],
	FeatureAnalytics:  rank[model.TierElite],
	FeatureWhiteLabel: rank[model.TierElite],
}

// IsEnabled reports whether the feature is active for the community at the
// given instant. Pure: no side effects, no persistence. Unknown features
// are disabled; unknown tiers rank lowest.
func IsEnabled(c *model.Community, feature Feature, now time.Time) bool {
	need, ok := minRank[feature]
	if !ok {
		return false
	}
	return effectiveRank(c, now) >= need
}

// EffectiveTier resolves the trial state: while trial_ends_at is in the
// future the community ranks as elite; afterwards it reverts to the
// fallback tier recorded when the trial began.
func EffectiveTier(c *model.Community, now time.Time) string {
	if c.Tier == model.TierTrial {
		if c.TrialEndsAt != nil && now.Before(*c.TrialEndsAt) {
			return model.TierElite
		}
		if c.TrialFallbackTier != "" {
			return c.TrialFallbackTier
		}
		return model.TierStarter
	}
	return c.Tier
}

func effectiveRank(c *model.Community, now time.Time) int {
	return rank[EffectiveTier(c, now)]
}
