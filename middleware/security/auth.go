package security

import (
	"net/http"
	"strings"

	"PSocial/global"
	"PSocial/tools/errs"
	jwtsec "PSocial/tools/security"

	"github.com/gin-gonic/gin"
)

// CtxUserIDKey holds the verified user id on the gin context.
const CtxUserIDKey = "userId"

type Options struct {
	JWT                       jwtsec.Options
	HeaderToken               string // default "authorization"
	EnableAuthorizationBearer bool   // default true
}

func DefaultOptions(secret []byte) *Options {
	return &Options{
		JWT:                       jwtsec.DefaultOptions(secret),
		HeaderToken:               "authorization",
		EnableAuthorizationBearer: true,
	}
}

// Middleware verifies the bearer token and stores the user id under
// CtxUserIDKey. Requests without a valid token stop with 401.
func Middleware(opts *Options) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := tokenFrom(c, opts)
		if token == "" {
			abort(c, "missing token")
			return
		}
		uid, err := jwtsec.Verify(opts.JWT, token)
		if err != nil {
			abort(c, err.Error())
			return
		}
		c.Set(CtxUserIDKey, uid)
		c.Next()
	}
}

// UserID returns the id set by Middleware.
func UserID(c *gin.Context) string {
	return c.GetString(CtxUserIDKey)
}

func tokenFrom(c *gin.Context, opts *Options) string {
	raw := strings.TrimSpace(c.GetHeader(opts.HeaderToken))
	if raw == "" || !opts.EnableAuthorizationBearer {
		return raw
	}
	if len(raw) > len("bearer ") && strings.EqualFold(raw[:len("bearer ")], "bearer ") {
		return strings.TrimSpace(raw[len("bearer "):])
	}
	return raw
}

func abort(c *gin.Context, detail string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, global.Fail(errs.ErrUnauthorized.WrapMsg(detail)))
}
