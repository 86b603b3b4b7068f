package middleware

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
)

// RunGuard serializes batch runs. The automation owns a single browser
// session, so overlapping runs would fight over the same page; a second
// request while one is in flight gets a 409 instead.
type RunGuard struct {
	mu      sync.Mutex
	running bool
}

// NewRunGuard returns an idle guard.
func NewRunGuard() *RunGuard {
	return &RunGuard{}
}

// TryAcquire marks a run as started. It returns false when one is already
// in flight.
func (g *RunGuard) TryAcquire() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.running {
		return false
	}
	g.running = true
	return true
}

// Release marks the current run as finished.
func (g *RunGuard) Release() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.running = false
}

// Busy reports whether a run is in flight.
func (g *RunGuard) Busy() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.running
}

// Limit rejects requests while a batch run is in flight. The handler that
// actually starts the run must still acquire the guard itself; this
// middleware only fails fast.
func (g *RunGuard) Limit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if g.Busy() {
			c.JSON(http.StatusConflict, gin.H{
				"error": "a batch run is already in progress",
			})
			c.Abort()
			return
		}
		c.Next()
	}
}

// MaxRequestSize limits the request body size (spreadsheet uploads).
func MaxRequestSize(maxSize int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSize)
		c.Next()
	}
}
