package api

import (
	"time"

	"github.com/artemk/menulive/internal/api/handler"
	"github.com/artemk/menulive/internal/api/middleware"
	"github.com/artemk/menulive/internal/cache"
	"github.com/artemk/menulive/internal/repository"
	"github.com/artemk/menulive/internal/service"
	"github.com/artemk/menulive/internal/ws"
	"github.com/gin-gonic/gin"
)

// RouterDeps bundles everything the router wires into handlers.
type RouterDeps struct {
	MenuRepo     *repository.MenuRepository
	Bulk         *service.BulkTranslateService
	CacheStore   cache.Store
	Invalidator  *cache.Invalidator
	Hub          *ws.Hub
	CacheEnabled bool
	CachePrefix  string
	CacheTTL     time.Duration
	CORS         middleware.CORSConfig
	Mode         string
}

// SetupRouter configures the Gin router with all routes
func SetupRouter(deps *RouterDeps) *gin.Engine {
	// Set Gin mode
	switch deps.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()

	// Add middleware
	r.Use(gin.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.CORS(deps.CORS))

	// Create handlers
	healthHandler := handler.NewHealthHandler()
	menuHandler := handler.NewMenuHandler(deps.MenuRepo)
	adminHandler := handler.NewAdminHandler(deps.MenuRepo, deps.Invalidator, deps.Hub)
	translateHandler := handler.NewTranslateHandler(deps.MenuRepo, deps.Bulk)
	liveHandler := handler.NewLiveHandler(deps.MenuRepo, deps.Hub, deps.CORS)

	// Health check
	r.GET("/health", healthHandler.Health)

	// Live connection endpoint (server-to-client push only)
	r.GET("/ws/menus/:slug", liveHandler.Serve)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		// Public menu, behind the response cache
		menus := v1.Group("/menus")
		if deps.CacheEnabled {
			menus.Use(cache.ResponseCache(deps.CacheStore, deps.CachePrefix, deps.CacheTTL))
		}
		menus.GET("/:slug", menuHandler.GetMenu)

		// Owner mutations (write -> invalidate -> broadcast)
		admin := v1.Group("/admin/restaurants/:slug")
		{
			admin.POST("/dishes", adminHandler.CreateDish)
			admin.PUT("/dishes/:id", adminHandler.UpdateDish)
			admin.DELETE("/dishes/:id", adminHandler.DeleteDish)
			admin.POST("/translate", translateHandler.StartTranslation)
		}

		// Job progress polling
		v1.GET("/translate/jobs/:id", translateHandler.GetJobStatus)
	}

	return r
}
