package rest

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/huddlelabs/huddle/engine"
	"github.com/huddlelabs/huddle/engine/tier"
)

// RequireFeature gates a route group on the community's tier. Routes behind
// it must carry the :cid param. Disabled features answer 403 with a stable
// machine-readable message so clients can hide the UI instead of retrying.
func RequireFeature(eng *engine.Engine, feature tier.Feature) gin.HandlerFunc {
	return func(c *gin.Context) {
		cid, err := strconv.ParseInt(c.Param("cid"), 10, 64)
		if err != nil || cid <= 0 {
			c.AbortWithStatusJSON(http.StatusBadRequest,
				gin.H{"success": false, "message": "invalid community id"})
			return
		}
		enabled, err := eng.IsFeatureEnabled(c.Request.Context(), cid, feature)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError,
				gin.H{"success": false, "message": "tier check failed"})
			return
		}
		if !enabled {
			c.AbortWithStatusJSON(http.StatusForbidden,
				gin.H{"success": false, "message": "feature_not_enabled", "feature": feature})
			return
		}
		c.Next()
	}
}
