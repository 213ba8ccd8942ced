package middleware

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/ikkim/storefront/internal/errors"
)

// InFlightGuard rejects a second request for an action while the first is
// still being served.
type InFlightGuard struct {
	mu      sync.Mutex
	pending map[string]struct{}
}

func NewInFlightGuard() *InFlightGuard {
	return &InFlightGuard{pending: make(map[string]struct{})}
}

// Guard holds the named action for the duration of the request.
func (g *InFlightGuard) Guard(action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !g.acquire(action) {
			GetLoggerFromContext(c).Warn("Duplicate action rejected", map[string]interface{}{
				"action": action,
			})
			errors.RespondWithError(c, http.StatusConflict, errors.CheckoutActionInProgress, "this action is already in progress")
			c.Abort()
			return
		}
		defer g.release(action)
		c.Next()
	}
}

func (g *InFlightGuard) acquire(action string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, busy := g.pending[action]; busy {
		return false
	}
	g.pending[action] = struct{}{}
	return true
}

func (g *InFlightGuard) release(action string) {
	g.mu.Lock()
	delete(g.pending, action)
	g.mu.Unlock()
}
