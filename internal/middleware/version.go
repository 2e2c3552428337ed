package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mindease/mindease-api/pkg/httputil"
)

const HeaderAPIVersion = "API-Version"

// VersionConfig represents version middleware configuration
type VersionConfig struct {
	HeaderName     string
	CurrentVersion string
	Supported      []string
}

func DefaultVersionConfig() VersionConfig {
	return VersionConfig{
		HeaderName:     "Accept-Version",
		CurrentVersion: "1",
		Supported:      []string{"1"},
	}
}

// Version rejects requests pinned to an unsupported API version and stamps
// the served version on every response.
func Version(config VersionConfig) gin.HandlerFunc {
	supported := make(map[string]struct{}, len(config.Supported))
	for _, v := range config.Supported {
		supported[v] = struct{}{}
	}

	return func(c *gin.Context) {
		c.Header(HeaderAPIVersion, config.CurrentVersion)

		requested := c.GetHeader(config.HeaderName)
		if requested == "" {
			requested = config.CurrentVersion
		}
		if _, ok := supported[requested]; !ok {
			c.AbortWithStatusJSON(http.StatusNotAcceptable, httputil.Response{
				Status:  httputil.StatusError,
				Message: "API version " + requested + " not supported",
				Code:    http.StatusNotAcceptable,
			})
			return
		}

		c.Set("api_version", requested)
		c.Next()
	}
}
