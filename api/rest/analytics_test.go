package rest_test

import (
	"net/http"
	"testing"

	"github.com/huddlelabs/huddle/model"
	"github.com/huddlelabs/huddle/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyticsSummary(t *testing.T) {
	e := newEnv(t)
	c := testutil.SeedCommunity(t, e.db, "big-org", model.TierElite)
	seedReward(t, e, c.ID, "post", 20)
	token := e.login(t, "alice")
	e.join(t, token, c.ID, "Alice")
	testutil.SeedMember(t, e.db, c.ID, "Idle Ivan", 500)

	for i := 0; i < 2; i++ {
		w := e.do(http.MethodPost, comm(c.ID, "/actions"), token, map[string]string{
			"action_type": "post",
		})
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := e.do(http.MethodGet, comm(c.ID, "/analytics"), token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode(t, w)
	assert.Equal(t, float64(2), resp["members"])
	assert.Equal(t, float64(540), resp["total_xp"])
	assert.Equal(t, float64(2), resp["events_7d"])
	assert.Equal(t, float64(1), resp["active_7d"])
	assert.Equal(t, float64(1), resp["top_streak"])
}

func TestAnalyticsGatedBelowElite(t *testing.T) {
	e := newEnv(t)
	c := testutil.SeedCommunity(t, e.db, "mid-org", model.TierPro)
	token := e.login(t, "alice")
	e.join(t, token, c.ID, "Alice")

	w := e.do(http.MethodGet, comm(c.ID, "/analytics"), token, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "feature_not_enabled", decode(t, w)["message"])
}
