package interceptor

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"gaia/api/log"
)

// AccessLog writes one line per request. Frame polling is logged at debug level so it does
// not drown the rest.
func AccessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := log.WithFields(logrus.Fields{
			"method": c.Request.Method,
			"path":   c.FullPath(),
			"status": c.Writer.Status(),
			"cost":   time.Since(start).String(),
			"client": c.ClientIP(),
			"size":   c.Writer.Size(),
		})
		if len(c.Errors) > 0 {
			entry.Warn(c.Errors.String())
			return
		}
		if c.FullPath() == "/viewer/session/:id/frame" {
			entry.Debug("access")
			return
		}
		entry.Info("access")
	}
}
