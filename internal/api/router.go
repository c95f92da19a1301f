package api

import (
	"time"

	"evaljudge/internal/cache"
	"evaljudge/internal/scheduler"

	"github.com/gin-gonic/gin"
)

// Server holds every dependency the HTTP surface needs to serve a request.
type Server struct {
	Scheduler *scheduler.Scheduler
	Cache     *cache.Cache
	Token          string
	CacheTTL       time.Duration
	MaxUploadBytes int64

	startedAt time.Time
}

// NewRouter builds the gin engine for this server's HTTP surface. Route
// shapes are grounded on internal/judge/controller's controller-per-
// resource style, flattened into one router since this surface is a single
// small resource (tasks + cache), not a multi-controller REST API.
func NewRouter(s *Server) *gin.Engine {
	s.startedAt = time.Now()

	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", s.health)

	authed := r.Group("/")
	authed.Use(authMiddleware(s.Token))
	{
		authed.POST("/upload", s.upload)
		authed.POST("/compile", s.compile)
		authed.POST("/compile/checker", s.compileChecker)
		authed.POST("/judge", s.judge)
		authed.POST("/run", s.run)
		authed.POST("/interactive", s.interactive)
		authed.GET("/task/:id", s.getTask)
		authed.GET("/cache/:id", s.getCache)
		authed.GET("/status", s.status)
		authed.GET("/ws/task/:id", s.watchTask)
	}

	return r
}
