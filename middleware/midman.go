package middleware

import (
	"sync"

	"github.com/gin-gonic/gin"
)

// MiddlewareManager collects the global middleware chain before the engine
// is built.
type MiddlewareManager struct {
	mu   sync.RWMutex
	mids []gin.HandlerFunc
}

func NewManager() *MiddlewareManager {
	return &MiddlewareManager{}
}

// Add appends h to the chain.
func (m *MiddlewareManager) Add(h ...gin.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mids = append(m.mids, h...)
}

func (m *MiddlewareManager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mids = nil
}

// Handlers returns a snapshot of the chain, for r.Use(mgr.Handlers()...).
func (m *MiddlewareManager) Handlers() []gin.HandlerFunc {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]gin.HandlerFunc{}, m.mids...)
}

// Defaults returns a manager with recovery, request id, access log and CORS.
func Defaults(allowedOrigins []string) *MiddlewareManager {
	m := NewManager()
	m.Add(Recovery(), RequestID(), AccessLog(), CORS(allowedOrigins))
	return m
}
