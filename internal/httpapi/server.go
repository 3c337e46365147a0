// Package httpapi exposes the monitor's own health, debug, and metrics
// surface. It carries no subscriber-facing routes — those live on the
// transport side — only the operational endpoints an operator or a
// monitoring system polls.
package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/jeffreyp/feedmonitor/internal/monitor"
	"github.com/jeffreyp/feedmonitor/internal/store"
)

// debugRateLimit bounds each caller to a sustained rate with a small burst
// allowance, enough for an operator dashboard polling on an interval but not
// for a scrape loop gone wrong.
const (
	debugRateLimit rate.Limit = 5
	debugRateBurst int        = 10
)

// Server wires the debug/metrics HTTP surface to the running monitor core.
type Server struct {
	Store  store.FeedStore
	States *monitor.FeedStateTable
	Queue  *monitor.SubmissionQueue
	Stats  *monitor.StatsAggregator

	engine *gin.Engine
}

// NewServer builds the gin engine, grounded on the teacher's gzip-plus-Default
// setup in main.go, trimmed to the routes this process actually serves.
func NewServer(st store.FeedStore, states *monitor.FeedStateTable, queue *monitor.SubmissionQueue, stats *monitor.StatsAggregator) *Server {
	s := &Server{Store: st, States: states, Queue: queue, Stats: stats}

	r := gin.Default()
	if err := r.SetTrustedProxies(nil); err != nil {
		gin.DefaultWriter.Write([]byte("warning: failed to configure trusted proxies: " + err.Error() + "\n"))
	}
	r.Use(gzip.Gzip(gzip.DefaultCompression))
	r.Use(securityHeaders())
	r.Use(newIPRateLimiter(debugRateLimit, debugRateBurst).middleware())

	r.GET("/healthz", s.healthz)

	debug := r.Group("/debug")
	{
		debug.GET("/stats", s.debugStats)
		debug.GET("/feeds/:id", s.debugFeed)
	}

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	s.engine = r
	return s
}

// Handler returns the underlying gin engine for use with http.Server or
// httptest.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) debugStats(c *gin.Context) {
	c.JSON(http.StatusOK, s.Stats.Snapshot())
}

// debugFeed reports the feed record, its per-feed state flags, and its
// active subscriber count. Grounded on the teacher's DebugFeed handler,
// trimmed to the fields this process tracks — no per-user article state.
func (s *Server) debugFeed(c *gin.Context) {
	idStr := c.Param("id")
	id, err := strconv.Atoi(idStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid feed id"})
		return
	}

	feeds, err := s.Store.FilterIDs([]int{id})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if len(feeds) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "feed not found"})
		return
	}
	feed := feeds[0]

	subs, err := s.Store.ActiveSubs(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	state := s.States.Get(id)
	c.JSON(http.StatusOK, gin.H{
		"feed":        feed,
		"active_subs": len(subs),
		"locked":      state&monitor.StateLocked != 0,
		"in_progress": state&monitor.StateInProgress != 0,
		"deferred":    state&monitor.StateDeferred != 0,
		"queue_depth": s.Queue.Len(),
	})
}
