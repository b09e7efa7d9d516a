package middleware

import (
	midsec "PSocial/middleware/security"

	"github.com/gin-gonic/gin"
)

type RouteOpt struct {
	IsAuth bool
	Auth   *midsec.Options // required when IsAuth
}

func (o RouteOpt) chain(handler gin.HandlerFunc) []gin.HandlerFunc {
	if o.IsAuth {
		return []gin.HandlerFunc{midsec.Middleware(o.Auth), handler}
	}
	return []gin.HandlerFunc{handler}
}

func GET(r gin.IRoutes, path string, handler gin.HandlerFunc, opt RouteOpt) {
	r.GET(path, opt.chain(handler)...)
}
