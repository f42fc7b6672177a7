package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/assetcatalog/internal/domain/loader"
	"github.com/GriffinCanCode/assetcatalog/internal/host"
	"github.com/GriffinCanCode/assetcatalog/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/assetcatalog/internal/infrastructure/resilience"
	errs "github.com/GriffinCanCode/assetcatalog/internal/shared/errors"
	"github.com/GriffinCanCode/assetcatalog/internal/shared/types"
)

// Version is reported by the root handler.
const Version = "0.3.0"

// Handlers contains all HTTP handlers
type Handlers struct {
	engine         *loader.Engine
	metrics        *monitoring.Metrics
	logger         *zap.Logger
	destroyDerived bool
}

// NewHandlers creates a new handler set. destroyDerived is the default for
// cache unloads that do not say otherwise.
func NewHandlers(engine *loader.Engine, metrics *monitoring.Metrics, logger *zap.Logger, destroyDerived bool) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{
		engine:         engine,
		metrics:        metrics,
		logger:         logger,
		destroyDerived: destroyDerived,
	}
}

// Register mounts every handler on r.
func (h *Handlers) Register(r gin.IRoutes) {
	r.GET("/", h.Root)
	r.GET("/health", h.Health)

	r.GET("/assets/:id", h.GetAsset)
	r.GET("/assets/:id/status", h.AssetStatus)
	r.POST("/assets/:id/load", h.LoadAsset)

	r.POST("/prewarm", h.Prewarm)
	r.POST("/cache/unload", h.Unload)

	r.GET("/containers", h.ListContainers)
	r.POST("/containers/retry", h.RetryContainers)

	r.GET("/diagnostics", h.Diagnostics)
	r.GET("/metrics/json", h.MetricsJSON)
}

// Root handles health check
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "assetd",
		"version": Version,
	})
}

// Health handles detailed health check
func (h *Handlers) Health(c *gin.Context) {
	reg := h.engine.Registry().Stats()
	c.JSON(http.StatusOK, gin.H{
		"status":   "healthy",
		"platform": h.engine.Registry().Platform(),
		"cache":    h.engine.Stats(),
		"registry": gin.H{
			"descriptors": reg.Descriptors,
			"records":     reg.Records,
			"open":        reg.Open,
			"unavailable": reg.Unavailable,
		},
	})
}

// GetAsset loads an asset synchronously and describes it
func (h *Handlers) GetAsset(c *gin.Context) {
	handle, ok := h.handleFrom(c)
	if !ok {
		return
	}

	obj, err := loader.LoadSync(c.Request.Context(), h.engine, handle)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"id":      handle.ID,
		"object":  Describe(obj),
	})
}

// AssetStatus reports the cache state of an asset without loading it
func (h *Handlers) AssetStatus(c *gin.Context) {
	id := types.ContentID(c.Param("id"))

	resp := gin.H{
		"id":        id,
		"known":     h.isKnown(id),
		"requested": h.engine.CheckIfRequestedLoad(id),
		"ready":     h.engine.CheckIfRequestReady(id),
		"state":     h.engine.State(id).String(),
	}
	if req, ok := h.engine.Request(id); ok {
		resp["request_id"] = req.ID()
		resp["container"] = req.Container()
		if err := req.Err(); err != nil {
			resp["error"] = err.Error()
		}
	}
	c.JSON(http.StatusOK, resp)
}

// LoadAsset starts an asynchronous load. With ?wait=1 it responds once the
// load finished.
func (h *Handlers) LoadAsset(c *gin.Context) {
	handle, ok := h.handleFrom(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	req, err := loader.LoadAsync(ctx, h.engine, handle)
	if err != nil {
		h.fail(c, err)
		return
	}

	status := http.StatusAccepted
	if wait, _ := strconv.ParseBool(c.Query("wait")); wait {
		if err := req.Wait(ctx); err != nil {
			h.fail(c, err)
			return
		}
		status = http.StatusOK
	}

	c.JSON(status, gin.H{
		"success":    true,
		"id":         handle.ID,
		"request_id": req.ID(),
		"container":  req.Container(),
		"state":      h.engine.State(handle.ID).String(),
	})
}

// PrewarmRequest lists the ids to load ahead of need
type PrewarmRequest struct {
	IDs []types.ContentID `json:"ids" binding:"required"`
}

// Prewarm queues ids for the next prewarm drain
func (h *Handlers) Prewarm(c *gin.Context) {
	var req PrewarmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Invalid request: " + err.Error(),
		})
		return
	}

	refs := make([]types.Ref, 0, len(req.IDs))
	for _, id := range req.IDs {
		refs = append(refs, types.Ref{ID: id})
	}
	queued := h.engine.RequestPrewarm(refs...)

	c.JSON(http.StatusAccepted, gin.H{
		"success":   true,
		"requested": len(refs),
		"queued":    queued,
	})
}

// Unload waits for pending loads and empties the cache. With ?release=1 the
// containers are closed too; POST /containers/retry reopens them.
func (h *Handlers) Unload(c *gin.Context) {
	destroy, ok := h.queryBool(c, "destroy", h.destroyDerived)
	if !ok {
		return
	}
	release, ok := h.queryBool(c, "release", false)
	if !ok {
		return
	}

	before := h.engine.Stats()
	released := 0
	var err error
	if release {
		released, err = h.engine.Release(c.Request.Context(), destroy)
	} else {
		err = h.engine.UnloadAll(c.Request.Context(), destroy)
	}
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":         true,
		"unloaded":        before.Entries,
		"released":        released,
		"destroy_derived": destroy,
	})
}

// queryBool parses an optional boolean query flag. On a bad value it
// responds 400 and reports false.
func (h *Handlers) queryBool(c *gin.Context, key string, def bool) (bool, bool) {
	q := c.Query(key)
	if q == "" {
		return def, true
	}
	v, err := strconv.ParseBool(q)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Invalid " + key + " flag: " + q,
		})
		return false, false
	}
	return v, true
}

// ListContainers reports every package the registry tried to open
func (h *Handlers) ListContainers(c *gin.Context) {
	c.JSON(http.StatusOK, h.engine.Registry().Stats())
}

// RetryContainers reopens packages that were unavailable
func (h *Handlers) RetryContainers(c *gin.Context) {
	reg := h.engine.Registry()
	opened := reg.RetryUnavailable(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"opened":      opened,
		"unavailable": reg.Unavailable(),
	})
}

// Diagnostics returns the engine snapshot
func (h *Handlers) Diagnostics(c *gin.Context) {
	if c.Query("format") == "text" {
		c.String(http.StatusOK, h.engine.Diagnostics())
		return
	}
	c.JSON(http.StatusOK, h.engine.Snapshot())
}

// handleFrom builds a handle from the path and query. It writes the error
// response itself when the request is malformed.
func (h *Handlers) handleFrom(c *gin.Context) (types.Handle[host.Object], bool) {
	handle := types.Handle[host.Object]{
		ID:          types.ContentID(c.Param("id")),
		DisplayName: c.Query("name"),
		SubResource: c.Query("sub"),
	}
	if q := c.Query("facet"); q != "" {
		facet, err := strconv.ParseBool(q)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"error":   "Invalid facet flag: " + q,
			})
			return handle, false
		}
		if facet {
			handle.Capability = types.CapabilityFacet
		}
	}
	return handle, true
}

func (h *Handlers) isKnown(id types.ContentID) bool {
	_, ok := h.engine.Registry().FindOwner(id)
	return ok
}

// fail writes an error response. The engine already logged the error.
func (h *Handlers) fail(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{
		"success": false,
		"kind":    errs.KindOf(err),
		"error":   err.Error(),
	})
}

// statusFor maps an error onto an HTTP status
func statusFor(err error) int {
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusGatewayTimeout
	case errors.Is(err, resilience.ErrCircuitOpen), errors.Is(err, resilience.ErrTooManyRequests):
		return http.StatusServiceUnavailable
	case errors.Is(err, host.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, errs.ErrResolution):
		return http.StatusNotFound
	case errors.Is(err, errs.ErrUsage):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
