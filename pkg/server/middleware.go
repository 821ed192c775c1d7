package server

import (
	"bytes"
	"io"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/wozozo/smpit/pkg/api"
	"github.com/wozozo/smpit/pkg/auth"
	smerrors "github.com/wozozo/smpit/pkg/errors"
	"github.com/wozozo/smpit/pkg/metrics"
)

// authMiddleware verifies the SigV4 signature of every request. The body
// is buffered so the handler can read it again after signing has
// consumed it.
func authMiddleware(verifier *auth.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			api.WriteErrorCode(c, "InvalidRequestException", "Unable to read request body.", 400)
			c.Abort()
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		if err := verifier.Verify(c.Request, body); err != nil {
			code, message, status := smerrors.MapAuthErrorToWire(err)
			log.WithError(err).WithField("code", code).Debug("Request rejected")
			api.WriteErrorCode(c, code, message, status)
			c.Abort()
			return
		}

		c.Next()
	}
}

// metricsMiddleware records request counts and latency per operation.
func metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		operation := strings.TrimPrefix(c.GetHeader("X-Amz-Target"), "secretsmanager.")
		if operation == "" {
			operation = "unknown"
		}
		metrics.ObserveRequest(operation, c.Writer.Status(), time.Since(start).Seconds())
	}
}

// requestLogger logs one line per request.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log.WithFields(log.Fields{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"target":   c.GetHeader("X-Amz-Target"),
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
		}).Info("Request handled")
	}
}
