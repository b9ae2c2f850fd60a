// Package http provides HTTP server infrastructure including the Module interface
// that all domain modules must implement for route registration.
package http

import (
	"github.com/gin-gonic/gin"
)

// Module represents a bounded context that can register its HTTP routes.
// Each domain module implements this interface to encapsulate its own
// route setup, keeping the main router decoupled from specific endpoints.
type Module interface {
	// Name returns the module's identifier for logging purposes.
	Name() string
	// RegisterRoutes mounts the module's routes on the provided router group.
	// The RouterContext provides access to shared middleware and configuration.
	RegisterRoutes(ctx *RouterContext)
}

// RouterContext provides shared dependencies for module route registration.
// This avoids passing many parameters to each module's RegisterRoutes method.
type RouterContext struct {
	// Engine is the root Gin engine for modules that need engine-level access.
	Engine *gin.Engine
	// V1 is the /api/v1 route group.
	V1 *gin.RouterGroup
	// Webhooks is the rate-limited /api/v1/webhooks group.
	Webhooks *gin.RouterGroup
	// Internal is the API-key protected route group under /api/v1.
	Internal *gin.RouterGroup
	// TwilioSignature checks X-Twilio-Signature on form webhooks (no-op when disabled).
	TwilioSignature gin.HandlerFunc
	// APIKey guards individual routes with the internal API key.
	APIKey gin.HandlerFunc
}
