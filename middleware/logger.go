package middleware

import (
	"net/http"
	"runtime/debug"
	"time"

	"PSocial/global"
	"PSocial/logger"
	"PSocial/tools/errs"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AccessLog writes one line per request.
func AccessLog() gin.HandlerFunc {
	log := logger.Named("http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.ClientIP()),
			zap.String("rid", c.GetString(CtxRequestIDKey)),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}
		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			log.Error("request", fields...)
		case c.Writer.Status() >= http.StatusBadRequest:
			log.Warn("request", fields...)
		default:
			log.Debug("request", fields...)
		}
	}
}

// Recovery turns a handler panic into a 500 envelope.
func Recovery() gin.HandlerFunc {
	log := logger.Named("http")
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error("panic",
					zap.Any("panic", r),
					zap.String("path", c.Request.URL.Path),
					zap.String("rid", c.GetString(CtxRequestIDKey)),
					zap.ByteString("stack", debug.Stack()))
				c.AbortWithStatusJSON(http.StatusInternalServerError, global.Fail(errs.ErrInternal.Wrap()))
			}
		}()
		c.Next()
	}
}
