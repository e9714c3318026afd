package rest

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/huddlelabs/huddle/engine/badge"
	"github.com/huddlelabs/huddle/engine/economy"
	"github.com/huddlelabs/huddle/engine/ledger"
	"github.com/huddlelabs/huddle/engine/quest"
)

// Every mutating endpoint answers {"success": ..., "message": ...} so clients
// can show the concrete reason instead of a generic failure.

func ok(c *gin.Context, data gin.H) {
	if data == nil {
		data = gin.H{}
	}
	data["success"] = true
	c.JSON(http.StatusOK, data)
}

func fail(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"success": false, "message": message})
}

// failEngine maps the engine's sentinel errors onto HTTP statuses. Anything
// unrecognized is an integrity failure: the operation rolled back, answer 500.
func failEngine(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ledger.ErrUnknownAction):
		fail(c, http.StatusBadRequest, "unknown action type")
	case errors.Is(err, ledger.ErrMemberNotFound),
		errors.Is(err, economy.ErrMemberNotFound):
		fail(c, http.StatusNotFound, "member not found")
	case errors.Is(err, ledger.ErrConflict):
		fail(c, http.StatusConflict, "concurrent update, please retry")
	case errors.Is(err, badge.ErrUnknownBadge):
		fail(c, http.StatusNotFound, "badge not found")
	case errors.Is(err, quest.ErrQuestNotFound):
		fail(c, http.StatusNotFound, "quest not found")
	case errors.Is(err, quest.ErrNotCompleted):
		fail(c, http.StatusBadRequest, "quest not completed")
	case errors.Is(err, quest.ErrAlreadyClaimed):
		fail(c, http.StatusConflict, "reward already claimed")
	case errors.Is(err, economy.ErrItemUnavailable):
		fail(c, http.StatusNotFound, "item unavailable")
	case errors.Is(err, economy.ErrInsufficientFunds):
		fail(c, http.StatusPaymentRequired, "insufficient xp")
	case errors.Is(err, economy.ErrAlreadyUsed):
		fail(c, http.StatusConflict, "item already used")
	case errors.Is(err, economy.ErrNotOwned):
		fail(c, http.StatusBadRequest, "item not owned")
	case errors.Is(err, economy.ErrNotActivatable):
		fail(c, http.StatusBadRequest, "item cannot be activated")
	case errors.Is(err, economy.ErrNotCosmetic):
		fail(c, http.StatusBadRequest, "item is not a cosmetic")
	case errors.Is(err, economy.ErrEntryNotFound):
		fail(c, http.StatusNotFound, "inventory entry not found")
	default:
		fail(c, http.StatusInternalServerError, "operation failed")
	}
}
