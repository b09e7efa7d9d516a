package chat

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"PSocial/module/chat/model"
	"PSocial/module/chat/store"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type wsHarness struct {
	srv   *httptest.Server
	ws    *WsServer
	dir   *Directory
	conns *ConnManager
	st    *store.Memory
}

func newWsHarness(t *testing.T, origins []string) *wsHarness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	h := &wsHarness{dir: NewDirectory(), conns: NewConnManager(), st: store.NewMemory()}
	gw, err := NewGateway(GatewayConf{SendTimeout: time.Second, Workers: 4}, Deps{
		Directory:     h.dir,
		Conversations: h.st,
		Messages:      h.st,
		Users:         store.NewMemoryUsers(model.UserProfile{ID: "u1", Name: "Alice"}),
		Pusher:        h.conns,
	})
	require.NoError(t, err)
	h.ws = NewWsServer(WsConf{PongWait: 5 * time.Second, AllowedOrigins: origins}, gw, h.conns)

	r := gin.New()
	r.GET("/chat", h.ws.HandleWS)
	h.srv = httptest.NewServer(r)
	t.Cleanup(func() {
		h.ws.Close()
		h.srv.Close()
		_ = gw.Close(time.Second)
	})
	return h
}

func (h *wsHarness) dial(t *testing.T, userID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(h.srv.URL, "http") + "/chat?userId=" + userID
	c, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, 10*time.Millisecond)
}

func readFrame(t *testing.T, c *websocket.Conn) pushed {
	t.Helper()
	require.NoError(t, c.SetReadDeadline(time.Now().Add(2*time.Second)))
	var f pushed
	require.NoError(t, c.ReadJSON(&f))
	return f
}

func TestWsRoundTrip(t *testing.T) {
	h := newWsHarness(t, nil)
	a := h.dial(t, "u1")
	b := h.dial(t, "u2")
	waitFor(t, func() bool { return h.dir.Len() == 2 })

	require.NoError(t, a.WriteJSON(map[string]any{
		"event": EventSendMessage,
		"data":  map[string]any{"sender": "u1", "recipient": "u2", "text": "hello", "clientMsgId": "c-1"},
	}))

	fa := readFrame(t, a)
	assert.Equal(t, EventNewMessage, fa.Event)
	pa := decodeNewMessage(t, fa)
	assert.Equal(t, "hello", pa.Message.Text)
	assert.Equal(t, "Alice", pa.Message.Sender.Name)
	assert.Equal(t, "c-1", pa.ClientMsgID)

	fb := readFrame(t, b)
	assert.Equal(t, EventNewMessage, fb.Event)
	assert.Equal(t, pa.Message.ID, decodeNewMessage(t, fb).Message.ID)
}

func TestWsValidationErrorFrame(t *testing.T) {
	h := newWsHarness(t, nil)
	a := h.dial(t, "u1")
	waitFor(t, func() bool { return h.dir.Len() == 1 })

	require.NoError(t, a.WriteJSON(map[string]any{
		"event": EventSendMessage,
		"data":  map[string]any{"sender": "u1", "recipient": "u2", "text": "   ", "clientMsgId": 42},
	}))
	f := readFrame(t, a)
	assert.Equal(t, EventSendMessageError, f.Event)
	p := decodeError(t, f)
	assert.Equal(t, "42", p.ClientMsgID)
}

func TestWsDisconnectUnregisters(t *testing.T) {
	h := newWsHarness(t, nil)
	b := h.dial(t, "u2")
	waitFor(t, func() bool { return h.dir.Len() == 1 })

	require.NoError(t, b.Close())
	waitFor(t, func() bool { return h.dir.Len() == 0 && h.conns.Len() == 0 })
}

func TestWsAnonymousHandshake(t *testing.T) {
	h := newWsHarness(t, nil)
	h.dial(t, "undefined")
	h.dial(t, "")
	waitFor(t, func() bool { return h.conns.Len() == 2 })
	assert.Equal(t, 0, h.dir.Len())
}

func TestWsOriginCheck(t *testing.T) {
	h := newWsHarness(t, []string{"https://app.example"})
	url := "ws" + strings.TrimPrefix(h.srv.URL, "http") + "/chat?userId=u1"

	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"https://evil.example"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	c, _, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"https://app.example"}})
	require.NoError(t, err)
	_ = c.Close()
}

func TestParseFrame(t *testing.T) {
	f, err := ParseFrame([]byte(`{"event":"sendMessage","data":{"text":"x"}}`))
	require.NoError(t, err)
	assert.Equal(t, EventSendMessage, f.Event)
	assert.Equal(t, "x", f.Data["text"])

	_, err = ParseFrame([]byte(`{"data":{}}`))
	assert.Error(t, err)
	_, err = ParseFrame([]byte(`not json`))
	assert.Error(t, err)
}
