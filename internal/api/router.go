package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pccr10001/mbpd/internal/config"
	"github.com/pccr10001/mbpd/internal/repository"
	"github.com/pccr10001/mbpd/internal/worker"
)

// RouterOptions carries what the routes need beyond the store.
type RouterOptions struct {
	Config    config.Config
	Reload    ReloadFunc
	Snapshots *repository.SnapshotRepository
	// Watcher serves GET /modems when set.
	Watcher *worker.Manager
	// MCP is mounted at /mcp when set.
	MCP http.Handler
}

func SetupRouter(r *gin.Engine, store *Store, opts RouterOptions) {
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"message": "pong",
		})
	})

	ph := NewProviderHandler(store, opts.Snapshots)
	serial := opts.Config.Serial
	mh := NewModemHandler(store, serial.BaudRate, serial.CommandTimeout, serial.ExcludePorts)
	mh.watcher = opts.Watcher

	apiGroup := r.Group("/api/v1")
	{
		apiGroup.GET("/countries", ph.ListCountries)
		apiGroup.GET("/countries/:code", ph.GetCountry)
		apiGroup.GET("/lookup/mccmnc/:mccmnc", ph.LookupMCCMNC)
		apiGroup.GET("/lookup/sid/:sid", ph.LookupSID)
		apiGroup.GET("/operator", ph.OperatorName)
		apiGroup.GET("/snapshot/mcc/:mcc/providers", ph.SnapshotProvidersByMCC)

		// Authenticated Routes
		if secret := opts.Config.Auth.Secret; secret != "" {
			authGroup := apiGroup.Group("/")
			authGroup.Use(AuthMiddleware(secret))
			{
				authGroup.GET("/modems", mh.ListDetections)
				authGroup.GET("/modems/ports", mh.ListPorts)
				authGroup.POST("/modems/detect", mh.Detect)
				if opts.Reload != nil {
					rh := NewReloadHandler(store, opts.Reload, opts.Snapshots)
					authGroup.POST("/reload", rh.Reload)
				}
			}
		}
	}

	if opts.MCP != nil {
		r.Any("/mcp", gin.WrapH(opts.MCP))
	}
}
