package middlewares

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"groupbuy-service/utils"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func newAuthRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/me", AuthRequired(testSecret), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"user_id": c.GetInt64(CtxUserID),
			"role":    c.GetString(CtxRole),
		})
	})
	router.GET("/admin", AuthRequired(testSecret), AdminRequired(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	return router
}

func doRequest(router *gin.Engine, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestAuthRequiredMissingToken(t *testing.T) {
	router := newAuthRouter()

	w := doRequest(router, "/me", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthRequiredMalformedHeader(t *testing.T) {
	router := newAuthRouter()

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Token abc")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthRequiredInvalidToken(t *testing.T) {
	router := newAuthRouter()

	w := doRequest(router, "/me", "not-a-token")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthRequiredWrongSecret(t *testing.T) {
	router := newAuthRouter()

	token, err := utils.GenerateToken("other-secret", 1, 42, "alice", utils.RoleUser)
	require.NoError(t, err)

	w := doRequest(router, "/me", token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthRequiredValidToken(t *testing.T) {
	router := newAuthRouter()

	token, err := utils.GenerateToken(testSecret, 1, 42, "alice", utils.RoleUser)
	require.NoError(t, err)

	w := doRequest(router, "/me", token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"user_id":42`)
	assert.Contains(t, w.Body.String(), `"role":"user"`)
}

func TestAdminRequired(t *testing.T) {
	router := newAuthRouter()

	userToken, err := utils.GenerateToken(testSecret, 1, 42, "alice", utils.RoleUser)
	require.NoError(t, err)
	adminToken, err := utils.GenerateToken(testSecret, 1, 7, "root", utils.RoleAdmin)
	require.NoError(t, err)

	w := doRequest(router, "/admin", userToken)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = doRequest(router, "/admin", adminToken)
	assert.Equal(t, http.StatusOK, w.Code)
}
