package handler

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/community-class-api/internal/middleware"
	"github.com/noah-isme/community-class-api/internal/models"
)

type envelope struct {
	Data       json.RawMessage        `json:"data"`
	Error      *struct{ Code string } `json:"error"`
	Pagination *models.Pagination     `json:"pagination"`
	Meta       map[string]interface{} `json:"meta"`
}

// testContext builds a gin context for a direct handler call.
func testContext(method, target string, body interface{}, principal *models.Principal) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	var payload []byte
	switch b := body.(type) {
	case nil:
	case string:
		payload = []byte(b)
	default:
		payload, _ = json.Marshal(b)
	}
	req := httptest.NewRequest(method, target, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	if principal != nil {
		c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: principal.UserID, Role: principal.Role})
	}
	return c, w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

var (
	studentPrincipal = &models.Principal{UserID: "6c2a0a4e-8f51-4c8e-9a1f-0d6a6b8f2f11", Role: models.RoleStudent}
	adminPrincipal   = &models.Principal{UserID: "0b8d7e55-2b6e-4a3c-a1d4-3f3cfa8b9e22", Role: models.RoleAdmin}
)

func requireStatus(t *testing.T, w *httptest.ResponseRecorder, status int) {
	t.Helper()
	require.Equal(t, status, w.Code, w.Body.String())
}
