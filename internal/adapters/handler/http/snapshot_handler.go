package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/comitanigiacomo/kanso-organizer/internal/adapters/handler/http/middleware"
	"github.com/comitanigiacomo/kanso-organizer/internal/core/domain"
	"github.com/comitanigiacomo/kanso-organizer/internal/core/services"
	"github.com/comitanigiacomo/kanso-organizer/internal/metrics"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	VersionHeader = "X-Snapshot-Version"

	pingInterval = 30 * time.Second
	writeTimeout = 10 * time.Second
)

type SnapshotStore interface {
	Save(ctx context.Context, ownerID, key string, value []byte) (*domain.Snapshot, error)
	Get(ctx context.Context, ownerID, key string) (*domain.Snapshot, error)
	Delete(ctx context.Context, ownerID, key string) error
	Watch(ctx context.Context, ownerID, key string) (<-chan struct{}, func(), error)
}

type SnapshotHandler struct {
	svc      SnapshotStore
	upgrader websocket.Upgrader
	logger   zerolog.Logger
}

func NewSnapshotHandler(svc SnapshotStore, logger zerolog.Logger) *SnapshotHandler {
	return &SnapshotHandler{
		svc: svc,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger: logger,
	}
}

type snapshotResponse struct {
	Key       string    `json:"key"`
	Version   int       `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
}

type changeMessage struct {
	Type string `json:"type"`
	Key  string `json:"key"`
}

func (h *SnapshotHandler) RegisterRoutes(router *gin.RouterGroup) {
	snapshots := router.Group("/snapshots")
	{
		snapshots.GET("/:key", h.Get)
		snapshots.PUT("/:key", h.Put)
		snapshots.DELETE("/:key", h.Delete)
		snapshots.GET("/:key/events", h.Events)
	}
}

func (h *SnapshotHandler) Get(c *gin.Context) {
	ownerID, ok := middleware.GetOwnerID(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "owner context missing"})
		return
	}

	snap, err := h.svc.Get(c.Request.Context(), ownerID, c.Param("key"))
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.Header(VersionHeader, strconv.Itoa(snap.Version))
	c.Header("Last-Modified", snap.UpdatedAt.UTC().Format(http.TimeFormat))
	c.Data(http.StatusOK, "application/json", snap.Value)
}

func (h *SnapshotHandler) Put(c *gin.Context) {
	ownerID, ok := middleware.GetOwnerID(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "owner context missing"})
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, services.MaxSnapshotSize+1))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.handleError(c, services.ErrSnapshotTooLarge)
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		return
	}

	snap, err := h.svc.Save(c.Request.Context(), ownerID, c.Param("key"), body)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.Header(VersionHeader, strconv.Itoa(snap.Version))
	c.JSON(http.StatusOK, snapshotResponse{
		Key:       snap.Key,
		Version:   snap.Version,
		UpdatedAt: snap.UpdatedAt,
	})
}

func (h *SnapshotHandler) Delete(c *gin.Context) {
	ownerID, ok := middleware.GetOwnerID(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "owner context missing"})
		return
	}

	if err := h.svc.Delete(c.Request.Context(), ownerID, c.Param("key")); err != nil {
		h.handleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Events upgrades to a websocket and sends one message per change of the
// snapshot until the client goes away.
func (h *SnapshotHandler) Events(c *gin.Context) {
	ownerID, ok := middleware.GetOwnerID(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "owner context missing"})
		return
	}
	key := c.Param("key")

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	changes, release, err := h.svc.Watch(ctx, ownerID, key)
	if err != nil {
		h.handleError(c, err)
		return
	}
	defer release()

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("[REALTIME] Upgrade failed")
		return
	}
	defer conn.Close()

	metrics.RealtimeSubscribers.Inc()
	defer metrics.RealtimeSubscribers.Dec()

	// the read loop only exists to notice the client closing
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-changes:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteJSON(changeMessage{Type: "snapshot_changed", Key: key}); err != nil {
				h.logger.Debug().Err(err).Msg("[REALTIME] Write failed, closing")
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return
			}
		}
	}
}

func (h *SnapshotHandler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrSnapshotNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "snapshot not found"})
	case errors.Is(err, domain.ErrInvalidKey),
		errors.Is(err, domain.ErrInvalidSnapshot):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrInvalidOwner):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrSnapshotTooLarge):
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrRealtimeUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		h.logger.Error().Err(err).Str("path", c.FullPath()).Msg("Unhandled error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
