package chat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"PSocial/global"
	midsec "PSocial/middleware/security"
	"PSocial/module/chat/model"
	"PSocial/module/chat/service"
	"PSocial/module/chat/store"
	jwtsec "PSocial/tools/security"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (*gin.Engine, *model.Conversation, *midsec.Options) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	s := store.NewMemory()
	ctx := context.Background()
	conv, _, err := s.ResolvePair(ctx, "alice", "bob")
	require.NoError(t, err)
	require.NoError(t, s.Create(ctx, &model.Message{ConversationID: conv.ID, Sender: "alice", Text: "hello"}))

	auth := midsec.DefaultOptions([]byte("k"))
	r := gin.New()
	NewHandler(service.NewHistory(s, s, store.NewMemoryUsers())).RegisterRoutes(r, auth)
	return r, conv, auth
}

func get(t *testing.T, r http.Handler, path, user string, auth *midsec.Options) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if user != "" {
		tok, _, err := jwtsec.Generate(auth.JWT, user)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestConversationsRoute(t *testing.T) {
	r, conv, auth := setup(t)

	w := get(t, r, "/api/chat/conversations", "alice", auth)
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Code int `json:"code"`
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 200, body.Code)
	require.Len(t, body.Data, 1)
	assert.Equal(t, conv.ID, body.Data[0].ID)

	assert.Equal(t, http.StatusUnauthorized, get(t, r, "/api/chat/conversations", "", auth).Code)
}

func TestMessagesRoute(t *testing.T) {
	r, conv, auth := setup(t)

	w := get(t, r, "/api/chat/conversations/"+conv.ID+"/messages", "bob", auth)
	require.Equal(t, http.StatusOK, w.Code)
	var body global.Msg
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	list, ok := body.Data.([]any)
	require.True(t, ok)
	require.Len(t, list, 1)
	assert.Equal(t, "hello", list[0].(map[string]any)["text"])

	w = get(t, r, "/api/chat/conversations/"+conv.ID+"/messages", "mallory", auth)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), `"code":1404`)
}

func TestHealth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	down := errors.New("mongo not ready")
	var ready error
	r.GET("/health", HandlerHealth(func() error { return ready }))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	ready = down
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
