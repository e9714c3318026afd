package rest_test

import (
	"net/http"
	"testing"

	"github.com/huddlelabs/huddle/model"
	"github.com/huddlelabs/huddle/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedItem(t *testing.T, e *env, it *model.StoreItem) *model.StoreItem {
	t.Helper()
	it.IsActive = true
	require.NoError(t, e.db.Create(it).Error)
	return it
}

func grantXP(t *testing.T, e *env, memberID, xp int64) {
	t.Helper()
	require.NoError(t, e.db.Model(&model.Member{}).
		Where("id = ?", memberID).Update("xp", xp).Error)
}

func TestStoreList(t *testing.T) {
	e := newEnv(t)
	c := testutil.SeedCommunity(t, e.db, "go-devs", model.TierPro)
	seedItem(t, e, &model.StoreItem{
		CommunityID: c.ID, Name: "Gold Name", Cost: 50,
		ItemType: model.ItemNameColor, Color: "#ffd700",
	})
	seedItem(t, e, &model.StoreItem{
		CommunityID: c.ID, Name: "Hidden", Cost: 10,
		ItemType: model.ItemNameColor, Color: "#000", IsArchived: true,
	})
	token := e.login(t, "alice")
	e.join(t, token, c.ID, "Alice")

	w := e.do(http.MethodGet, comm(c.ID, "/store"), token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode(t, w)
	items := resp["items"].([]interface{})
	require.Len(t, items, 1, "archived items stay hidden")
	assert.Equal(t, "Gold Name", items[0].(map[string]interface{})["name"])
	assert.Equal(t, float64(0), resp["xp"])
}

func TestStorePurchase(t *testing.T) {
	e := newEnv(t)
	c := testutil.SeedCommunity(t, e.db, "go-devs", model.TierPro)
	it := seedItem(t, e, &model.StoreItem{
		CommunityID: c.ID, Name: "Streak Freeze", Cost: 40,
		ItemType: model.ItemInstant, FreezeGrant: 1,
	})
	token := e.login(t, "alice")
	memberID := e.join(t, token, c.ID, "Alice")
	grantXP(t, e, memberID, 100)

	w := e.do(http.MethodPost, comm(c.ID, "/store/"+itoa64(it.ID)+"/purchase"), token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	entry := decode(t, w)["entry"].(map[string]interface{})
	assert.Equal(t, float64(it.ID), entry["item_id"])
	assert.Equal(t, false, entry["activated"])

	var m model.Member
	require.NoError(t, e.db.First(&m, memberID).Error)
	assert.Equal(t, int64(60), m.XP, "cost debited")
}

func TestStorePurchase_InsufficientXP(t *testing.T) {
	e := newEnv(t)
	c := testutil.SeedCommunity(t, e.db, "go-devs", model.TierPro)
	it := seedItem(t, e, &model.StoreItem{
		CommunityID: c.ID, Name: "Streak Freeze", Cost: 40,
		ItemType: model.ItemInstant, FreezeGrant: 1,
	})
	token := e.login(t, "alice")
	memberID := e.join(t, token, c.ID, "Alice")
	grantXP(t, e, memberID, 39)

	w := e.do(http.MethodPost, comm(c.ID, "/store/"+itoa64(it.ID)+"/purchase"), token, nil)
	assert.Equal(t, http.StatusPaymentRequired, w.Code)
	assert.Equal(t, "insufficient xp", decode(t, w)["message"])
}

func TestStorePurchase_UnknownItem(t *testing.T) {
	e := newEnv(t)
	c := testutil.SeedCommunity(t, e.db, "go-devs", model.TierPro)
	token := e.login(t, "alice")
	e.join(t, token, c.ID, "Alice")

	w := e.do(http.MethodPost, comm(c.ID, "/store/999/purchase"), token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestInventoryAndActivate(t *testing.T) {
	e := newEnv(t)
	c := testutil.SeedCommunity(t, e.db, "go-devs", model.TierPro)
	it := seedItem(t, e, &model.StoreItem{
		CommunityID: c.ID, Name: "Streak Freeze", Cost: 10,
		ItemType: model.ItemInstant, FreezeGrant: 2,
	})
	token := e.login(t, "alice")
	memberID := e.join(t, token, c.ID, "Alice")
	grantXP(t, e, memberID, 100)

	w := e.do(http.MethodPost, comm(c.ID, "/store/"+itoa64(it.ID)+"/purchase"), token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	entry := decode(t, w)["entry"].(map[string]interface{})
	entryID := int64(entry["id"].(float64))

	w = e.do(http.MethodGet, comm(c.ID, "/inventory"), token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	inv := decode(t, w)["inventory"].([]interface{})
	require.Len(t, inv, 1)
	owned := inv[0].(map[string]interface{})
	assert.Equal(t, float64(1), owned["quantity"])
	assert.Equal(t, float64(1), owned["unused"])

	w = e.do(http.MethodPost, comm(c.ID, "/inventory/"+itoa64(entryID)+"/activate"), token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	activation := decode(t, w)["activation"].(map[string]interface{})
	assert.Equal(t, float64(2), activation["freezes_granted"])

	// Second activation of the same unit is rejected.
	w = e.do(http.MethodPost, comm(c.ID, "/inventory/"+itoa64(entryID)+"/activate"), token, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestInventoryEmpty(t *testing.T) {
	e := newEnv(t)
	c := testutil.SeedCommunity(t, e.db, "go-devs", model.TierPro)
	token := e.login(t, "alice")
	e.join(t, token, c.ID, "Alice")

	w := e.do(http.MethodGet, comm(c.ID, "/inventory"), token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	inv, present := decode(t, w)["inventory"].([]interface{})
	assert.True(t, present)
	assert.Empty(t, inv)
}

func TestEquipAndUnequip(t *testing.T) {
	e := newEnv(t)
	c := testutil.SeedCommunity(t, e.db, "go-devs", model.TierPro)
	it := seedItem(t, e, &model.StoreItem{
		CommunityID: c.ID, Name: "Gold Name", Cost: 10,
		ItemType: model.ItemNameColor, Color: "#ffd700",
	})
	token := e.login(t, "alice")
	memberID := e.join(t, token, c.ID, "Alice")
	grantXP(t, e, memberID, 100)

	// Equip requires ownership.
	w := e.do(http.MethodPost, comm(c.ID, "/store/"+itoa64(it.ID)+"/equip"), token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(http.MethodPost, comm(c.ID, "/store/"+itoa64(it.ID)+"/purchase"), token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = e.do(http.MethodPost, comm(c.ID, "/store/"+itoa64(it.ID)+"/equip"), token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "name_color", decode(t, w)["slot"])

	var m model.Member
	require.NoError(t, e.db.First(&m, memberID).Error)
	assert.Equal(t, "#ffd700", m.NameColor)

	w = e.do(http.MethodPost, comm(c.ID, "/store/unequip"), token, map[string]string{
		"slot": "name_color",
	})
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, e.db.First(&m, memberID).Error)
	assert.Empty(t, m.NameColor)
}

func TestUnequip_UnknownSlot(t *testing.T) {
	e := newEnv(t)
	c := testutil.SeedCommunity(t, e.db, "go-devs", model.TierPro)
	token := e.login(t, "alice")
	e.join(t, token, c.ID, "Alice")

	w := e.do(http.MethodPost, comm(c.ID, "/store/unequip"), token, map[string]string{
		"slot": "hat",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
