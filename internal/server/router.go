package server

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/pressline/feedsync/internal/feed"
	"github.com/pressline/feedsync/internal/models"
	"github.com/pressline/feedsync/internal/push"
	"github.com/pressline/feedsync/pkg/logging"
)

// SubscriptionWriter records the user's push subscriptions. *db.Store
// satisfies it.
type SubscriptionWriter interface {
	ReplaceSubscriptions(ctx context.Context, categoryIDs, tagIDs []int64) error
}

// HealthChecker reports a dependency's liveness
type HealthChecker func(ctx context.Context) error

// Router exposes the trigger entry point and a thin snapshot surface over
// the executor registry. It is the transport stand-in for push delivery,
// not a presentation layer.
type Router struct {
	registry      *feed.Registry
	trigger       *push.Handler
	subscriptions SubscriptionWriter
	health        map[string]HealthChecker
	logger        *zap.Logger
}

// NewRouter creates the HTTP router
func NewRouter(registry *feed.Registry, trigger *push.Handler, subscriptions SubscriptionWriter, health map[string]HealthChecker) *Router {
	return &Router{
		registry:      registry,
		trigger:       trigger,
		subscriptions: subscriptions,
		health:        health,
		logger:        logging.WithComponent("server"),
	}
}

// SetupRoutes sets up all routes
func (r *Router) SetupRoutes(engine *gin.Engine) {
	engine.GET("/health", r.healthHandler)
	engine.GET("/.well-known/healthcheck.json", r.healthHandler)

	engine.POST("/trigger", r.triggerHandler)

	engine.POST("/queries", r.bindQueryHandler)
	engine.GET("/queries/:fingerprint", r.snapshotHandler)
	engine.POST("/queries/:fingerprint/newer", r.newerHandler)
	engine.POST("/queries/:fingerprint/older", r.olderHandler)
	engine.POST("/queries/:fingerprint/refresh", r.refreshHandler)
	engine.POST("/posts/:id/refresh", r.postRefreshHandler)

	engine.PUT("/subscriptions", r.subscriptionsHandler)
}

func (r *Router) healthHandler(c *gin.Context) {
	status := http.StatusOK
	checks := gin.H{}
	for name, check := range r.health {
		if err := check(c.Request.Context()); err != nil {
			checks[name] = err.Error()
			status = http.StatusServiceUnavailable
		} else {
			checks[name] = "OK"
		}
	}
	c.JSON(status, gin.H{
		"status":  http.StatusText(status),
		"service": "feedsync",
		"checks":  checks,
	})
}

// triggerHandler feeds an incoming push event to the trigger handler. A
// payload that does not bind is dropped without a body: trigger input is
// treated as noise, never as a client to correct.
func (r *Router) triggerHandler(c *gin.Context) {
	var t push.Trigger
	if err := c.ShouldBindJSON(&t); err != nil {
		r.logger.Debug("Dropping malformed trigger", zap.Error(err))
		c.Status(http.StatusNoContent)
		return
	}

	result, err := r.trigger.Handle(c.Request.Context(), t)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"scheduled":    result.Scheduled,
		"subscribed":   result.Subscribed,
		"unsubscribed": result.Unsubscribed,
	})
}

type bindQueryRequest struct {
	Text        string  `json:"text"`
	CategoryIDs []int64 `json:"category_ids"`
	TagIDs      []int64 `json:"tag_ids"`
	PostIDs     []int64 `json:"post_ids"`
}

func (r *Router) bindQueryHandler(c *gin.Context) {
	var req bindQueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	query := models.Query{
		Text:        req.Text,
		CategoryIDs: req.CategoryIDs,
		TagIDs:      req.TagIDs,
		PostIDs:     req.PostIDs,
	}
	e := r.registry.Executor(query)
	if e == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "shutting down"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"fingerprint": query.Fingerprint()})
}

func (r *Router) snapshotHandler(c *gin.Context) {
	e := r.registry.ByFingerprint(c.Param("fingerprint"))
	if e == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "query not bound"})
		return
	}

	posts, err := e.DataImmediate(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"posts": posts})
}

func (r *Router) newerHandler(c *gin.Context) {
	e := r.registry.ByFingerprint(c.Param("fingerprint"))
	if e == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "query not bound"})
		return
	}
	e.RequestNewerPosts()
	c.Status(http.StatusAccepted)
}

func (r *Router) olderHandler(c *gin.Context) {
	e := r.registry.ByFingerprint(c.Param("fingerprint"))
	if e == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "query not bound"})
		return
	}
	e.RequestOlderPosts()
	c.Status(http.StatusAccepted)
}

type refreshRequest struct {
	PostID int64 `json:"post_id" binding:"required"`
}

func (r *Router) refreshHandler(c *gin.Context) {
	e := r.registry.ByFingerprint(c.Param("fingerprint"))
	if e == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "query not bound"})
		return
	}

	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	e.Refresh(req.PostID)
	c.Status(http.StatusAccepted)
}

// postRefreshHandler re-fetches one post on every bound query. Used when a
// push event announces a single changed post without naming a query.
func (r *Router) postRefreshHandler(c *gin.Context) {
	postID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || postID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid post id"})
		return
	}
	r.registry.SchedulePostRefresh(postID)
	c.Status(http.StatusAccepted)
}

type subscriptionsRequest struct {
	CategoryIDs []int64 `json:"category_ids"`
	TagIDs      []int64 `json:"tag_ids"`
}

func (r *Router) subscriptionsHandler(c *gin.Context) {
	var req subscriptionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := r.subscriptions.ReplaceSubscriptions(c.Request.Context(), req.CategoryIDs, req.TagIDs); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}
