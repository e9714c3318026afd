package rest_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/huddlelabs/huddle/api/rest"
	"github.com/huddlelabs/huddle/cache"
	"github.com/huddlelabs/huddle/config"
	"github.com/huddlelabs/huddle/engine"
	"github.com/huddlelabs/huddle/engine/tier"
	mw "github.com/huddlelabs/huddle/middleware"
	"github.com/huddlelabs/huddle/scheduler"
	"github.com/huddlelabs/huddle/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const testAdminKey = "test-admin-key"

// env is a fully wired API surface against an in-memory database, mirroring
// the route layout of main.go.
type env struct {
	db    *gorm.DB
	cache cache.Cache
	eng   *engine.Engine
	r     *gin.Engine
	sec   config.SecurityConfig
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db := testutil.SetupTestDB(t)
	c, ps := testutil.SetupTestCache(t)
	logger := zap.NewNop()
	eng := engine.New(db, 5, nil, ps, logger)
	sec := config.SecurityConfig{JWTSecret: "test-secret", JWTTTLH: 72 * time.Hour}

	authH := rest.NewAuthHandler(db, c, sec)
	memberH := rest.NewMemberHandler(db, eng)
	actionH := rest.NewActionHandler(db, eng)
	questH := rest.NewQuestHandler(db, eng)
	badgeH := rest.NewBadgeHandler(db, eng)
	storeH := rest.NewStoreHandler(db, eng)
	rankH := rest.NewRankingHandler(db, c, logger)
	analyticsH := rest.NewAnalyticsHandler(db)
	sched := scheduler.New(logger)
	t.Cleanup(sched.Stop)
	adminH := rest.NewAdminHandler(db, eng, sched, logger)

	r := gin.New()
	api := r.Group("/api")

	authG := api.Group("/auth")
	authG.POST("/login", authH.Login)
	authG.POST("/logout", mw.Auth(sec, c), authH.Logout)
	authG.POST("/refresh", mw.Auth(sec, c), authH.Refresh)

	commG := api.Group("/communities/:cid")
	commG.Use(mw.Auth(sec, c))
	commG.POST("/join", memberH.Join)
	commG.GET("/me", memberH.Me)
	commG.GET("/tier", memberH.Tier)
	commG.GET("/leaderboard", rankH.Top)

	actionsG := commG.Group("")
	actionsG.Use(rest.RequireFeature(eng, tier.FeatureActions))
	actionsG.POST("/actions", actionH.Record)
	actionsG.GET("/actions", actionH.History)

	badgesG := commG.Group("")
	badgesG.Use(rest.RequireFeature(eng, tier.FeatureBadges))
	badgesG.GET("/badges", badgeH.List)

	questsG := commG.Group("")
	questsG.Use(rest.RequireFeature(eng, tier.FeatureQuests))
	questsG.GET("/quests", questH.List)
	questsG.POST("/quests/:id/claim", questH.Claim)

	storeG := commG.Group("")
	storeG.Use(rest.RequireFeature(eng, tier.FeatureStore))
	storeG.GET("/store", storeH.List)
	storeG.POST("/store/:id/purchase", storeH.Purchase)
	storeG.POST("/store/:id/equip", storeH.Equip)
	storeG.POST("/store/unequip", storeH.Unequip)
	storeG.GET("/inventory", storeH.Inventory)
	storeG.POST("/inventory/:id/activate", storeH.Activate)

	analyticsG := commG.Group("")
	analyticsG.Use(rest.RequireFeature(eng, tier.FeatureAnalytics))
	analyticsG.GET("/analytics", analyticsH.Summary)

	adminG := api.Group("/admin")
	adminG.Use(rest.AdminAuth(testAdminKey))
	adminG.POST("/communities", adminH.CreateCommunity)
	adminG.PUT("/communities/:cid/tier", adminH.SetTier)
	adminG.POST("/communities/:cid/rewards", adminH.CreateReward)
	adminG.PUT("/rewards/:id", adminH.UpdateReward)
	adminG.DELETE("/rewards/:id", adminH.DeleteReward)
	adminG.POST("/communities/:cid/badges", adminH.CreateBadge)
	adminG.DELETE("/badges/:id", adminH.DeleteBadge)
	adminG.POST("/members/:id/badges", adminH.AwardBadge)
	adminG.POST("/communities/:cid/quests", adminH.CreateQuest)
	adminG.PUT("/quests/:id", adminH.UpdateQuest)
	adminG.DELETE("/quests/:id", adminH.DeleteQuest)
	adminG.POST("/communities/:cid/items", adminH.CreateItem)
	adminG.PUT("/items/:id", adminH.UpdateItem)
	adminG.DELETE("/items/:id", adminH.DeleteItem)
	adminG.POST("/members/:id/ban", adminH.BanMember)
	adminG.POST("/communities/:cid/leaderboard/refresh", rankH.Refresh)
	adminG.GET("/metrics", adminH.Metrics)
	adminG.GET("/scheduler", adminH.ListSchedulerTasks)

	return &env{db: db, cache: c, eng: eng, r: r, sec: sec}
}

func (e *env) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.r.ServeHTTP(w, req)
	return w
}

func (e *env) admin(method, path string, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Admin-Key", testAdminKey)
	w := httptest.NewRecorder()
	e.r.ServeHTTP(w, req)
	return w
}

// login auto-registers the username and returns its token.
func (e *env) login(t *testing.T, username string) string {
	t.Helper()
	w := e.do(http.MethodPost, "/api/auth/login", "", map[string]string{
		"username": username,
		"password": "pass1234",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return decode(t, w)["token"].(string)
}

// join makes the account a member and returns the member ID.
func (e *env) join(t *testing.T, token string, communityID int64, name string) int64 {
	t.Helper()
	w := e.do(http.MethodPost, comm(communityID, "/join"), token, map[string]string{
		"display_name": name,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	member := decode(t, w)["member"].(map[string]interface{})
	return int64(member["id"].(float64))
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func comm(communityID int64, suffix string) string {
	return "/api/communities/" + strconv.FormatInt(communityID, 10) + suffix
}

func itoa64(id int64) string {
	return strconv.FormatInt(id, 10)
}
