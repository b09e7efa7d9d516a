package chat

import (
	"net/http"

	"PSocial/global"
	mid "PSocial/middleware"
	midsec "PSocial/middleware/security"
	"PSocial/module/chat/service"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	history *service.History
}

func NewHandler(history *service.History) *Handler {
	return &Handler{history: history}
}

// RegisterRoutes mounts the history API under /api/chat behind auth.
func (h *Handler) RegisterRoutes(r gin.IRouter, auth *midsec.Options) {
	api := r.Group("/api/chat")
	opt := mid.RouteOpt{IsAuth: true, Auth: auth}
	mid.GET(api, "/conversations", h.HandlerConversations, opt)
	mid.GET(api, "/conversations/:id/messages", h.HandlerMessages, opt)
}

func (h *Handler) HandlerConversations(c *gin.Context) {
	list, err := h.history.Conversations(c.Request.Context(), midsec.UserID(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, global.Success(list))
}

func (h *Handler) HandlerMessages(c *gin.Context) {
	list, err := h.history.Messages(c.Request.Context(), midsec.UserID(c), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, global.Success(list))
}

func fail(c *gin.Context, err error) {
	_ = c.Error(err)
	c.AbortWithStatusJSON(global.HTTPStatus(err), global.Fail(err))
}

// HandlerHealth reports 503 while ready returns an error.
func HandlerHealth(ready func() error) gin.HandlerFunc {
	return func(c *gin.Context) {
		if ready != nil {
			if err := ready(); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
