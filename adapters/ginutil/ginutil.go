// Package ginutil holds the small helpers shared by every gin handler:
// error-code-to-status mapping, rate-limit gating, and the uniform JSON
// error envelope.
package ginutil

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	core "github.com/tuan304201/generate-license-key/core"
)

// Rate limit bucket names. Buckets are configured by name in the limiter so
// deployments can tune each route independently.
const (
	RLIssue    = "license_issue"
	RLActivate = "license_activate"
	RLCheck    = "license_check"
	RLUsage    = "feature_usage"
)

// RateLimiter is satisfied by both the redis and memory limiters.
type RateLimiter interface {
	AllowNamed(ctx context.Context, bucket, key string) (bool, error)
}

// AllowNamed runs the limiter for the client IP, failing open when the
// limiter itself errors so that a redis outage does not take the API down.
func AllowNamed(c *gin.Context, rl RateLimiter, bucket string) bool {
	if rl == nil {
		return true
	}
	ok, err := rl.AllowNamed(c.Request.Context(), bucket, c.ClientIP())
	if err != nil {
		logrus.WithError(err).WithField("bucket", bucket).Warn("rate limiter unavailable")
		return true
	}
	return ok
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func BadRequest(c *gin.Context, code string) {
	c.JSON(http.StatusBadRequest, errorBody{Error: code})
}

func Unauthorized(c *gin.Context, code string) {
	c.JSON(http.StatusUnauthorized, errorBody{Error: code})
}

func NotFound(c *gin.Context, code string) {
	c.JSON(http.StatusNotFound, errorBody{Error: code})
}

func TooMany(c *gin.Context) {
	c.JSON(http.StatusTooManyRequests, errorBody{Error: "rate_limited"})
}

func ServerErr(c *gin.Context, code string) {
	c.JSON(http.StatusInternalServerError, errorBody{Error: code})
}

func ServerErrWithLog(c *gin.Context, code string, err error, msg string) {
	logrus.WithError(err).Error(msg)
	ServerErr(c, code)
}

// Respond maps a domain error onto the HTTP status the route contract uses.
// Unknown errors are logged and become a 500 without leaking detail.
func Respond(c *gin.Context, err error) {
	var de *core.Error
	if !errors.As(err, &de) {
		ServerErrWithLog(c, "internal_error", err, "unhandled service error")
		return
	}
	status := http.StatusInternalServerError
	switch de.Code {
	case core.CodeValidation:
		status = http.StatusBadRequest
	case core.CodeNotFound:
		status = http.StatusNotFound
	case core.CodeConflict, core.CodeAlreadyActive:
		status = http.StatusConflict
	case core.CodeInvalidCredential:
		status = http.StatusUnauthorized
	case core.CodeQuotaExceeded:
		status = http.StatusTooManyRequests
	case core.CodeFeatureSuspended:
		status = http.StatusForbidden
	}
	c.JSON(status, errorBody{Error: string(de.Code), Message: de.Message})
}
