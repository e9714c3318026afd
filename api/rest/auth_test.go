package rest_test

import (
	"net/http"
	"testing"

	"github.com/huddlelabs/huddle/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoginAutoRegister(t *testing.T) {
	e := newEnv(t)

	w := e.do(http.MethodPost, "/api/auth/login", "", map[string]string{
		"username": "alice",
		"password": "pass1234",
	})
	require.Equal(t, http.StatusOK, w.Code)

	resp := decode(t, w)
	assert.NotEmpty(t, resp["token"])
	assert.NotZero(t, resp["account_id"])
}

func TestLoginWrongPassword(t *testing.T) {
	e := newEnv(t)
	e.login(t, "bob")

	w := e.do(http.MethodPost, "/api/auth/login", "", map[string]string{
		"username": "bob",
		"password": "wrong-pass",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLoginSecondTime(t *testing.T) {
	e := newEnv(t)
	e.login(t, "carol")
	e.login(t, "carol")
}

func TestLogoutRevokesSession(t *testing.T) {
	e := newEnv(t)
	token := e.login(t, "dave")

	w := e.do(http.MethodPost, "/api/auth/logout", token, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	// Session removed: the same token no longer authenticates.
	w = e.do(http.MethodPost, "/api/auth/logout", token, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRefreshRotatesToken(t *testing.T) {
	e := newEnv(t)
	token := e.login(t, "erin")

	w := e.do(http.MethodPost, "/api/auth/refresh", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	newToken := decode(t, w)["token"].(string)
	require.NotEmpty(t, newToken)

	// Old token invalidated, new one works.
	w = e.do(http.MethodPost, "/api/auth/logout", token, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w = e.do(http.MethodPost, "/api/auth/logout", newToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestLoginBannedAccount(t *testing.T) {
	e := newEnv(t)
	e.login(t, "mallory")
	e.db.Model(&model.Account{}).Where("username = ?", "mallory").Update("status", 0)

	w := e.do(http.MethodPost, "/api/auth/login", "", map[string]string{
		"username": "mallory",
		"password": "pass1234",
	})
	assert.Equal(t, http.StatusForbidden, w.Code)
}
