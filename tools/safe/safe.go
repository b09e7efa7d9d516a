package safe

import (
	"PSocial/logger"
	"PSocial/tools/errs"

	"go.uber.org/zap"
)

// Go starts f in a goroutine that recovers and logs panics, so one bad
// connection or send never takes the process down.
func Go(name string, f func()) {
	go Run(name, f)
}

// Run calls f and converts a panic into a logged error.
func Run(name string, f func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("[safe] panic recovered", zap.String("task", name), zap.Error(errs.ErrPanic(r)), zap.Stack("stack"))
		}
	}()
	f()
}
