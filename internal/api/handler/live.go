package handler

import (
	"errors"
	"net/http"

	"github.com/artemk/menulive/internal/api/middleware"
	"github.com/artemk/menulive/internal/logger"
	"github.com/artemk/menulive/internal/repository"
	"github.com/artemk/menulive/internal/ws"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"gorm.io/gorm"
)

// LiveHandler upgrades viewer connections and parks them in the hub.
// The channel is server-to-client only; client frames are read and discarded
// to keep close/ping handling working.
type LiveHandler struct {
	menuRepo *repository.MenuRepository
	hub      *ws.Hub
	upgrader websocket.Upgrader
}

// NewLiveHandler creates a new live connection handler.
// Parameters:
//   - menuRepo: menu repository, used to validate the tenant slug.
//   - hub: notification fan-out hub.
//   - cors: CORS configuration reused as the websocket origin check.
// Returns:
//   - *LiveHandler: initialized handler.
func NewLiveHandler(menuRepo *repository.MenuRepository, hub *ws.Hub, cors middleware.CORSConfig) *LiveHandler {
	return &LiveHandler{
		menuRepo: menuRepo,
		hub:      hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				return middleware.IsOriginAllowed(origin, cors)
			},
		},
	}
}

// Serve handles GET /ws/menus/:slug. The connection stays in its tenant
// channel for its whole lifetime; membership is removed on close or error,
// never left dangling.
// Parameters:
//   - c: Gin request context.
// Returns: none (hijacks the connection).
func (h *LiveHandler) Serve(c *gin.Context) {
	slug := c.Param("slug")

	if _, err := h.menuRepo.GetRestaurantBySlug(c.Request.Context(), slug); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Restaurant not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load restaurant: " + err.Error()})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.CtxWarn(c.Request.Context(), "Websocket upgrade failed: %v", err)
		return
	}

	if err := h.hub.Join(slug, conn); err != nil {
		logger.CtxWarn(c.Request.Context(), "Failed to join channel %s: %v", slug, err)
		conn.Close()
		return
	}

	// Drain client frames until the connection dies, then leave the channel.
	go func() {
		defer func() {
			h.hub.Leave(slug, conn)
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
