package requestid

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Header is the inbound and outbound request ID header.
const Header = "X-Request-ID"

const contextKey = "request_id"

// Middleware assigns each request an ID and echoes it back in the
// response. An ID already set by an upstream proxy is kept, so traces
// correlate across hops.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(Header)
		if id == "" {
			id = uuid.NewString()
		}

		c.Set(contextKey, id)
		c.Writer.Header().Set(Header, id)
		c.Next()
	}
}

// Value returns the request ID for the current request, or "" when the
// middleware did not run.
func Value(c *gin.Context) string {
	id, _ := c.Value(contextKey).(string)
	return id
}
