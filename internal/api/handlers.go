package api

import (
	"io"
	"net/http"
	"time"

	"evaljudge/internal/apperr"
	"evaljudge/internal/cache"
	"evaljudge/internal/ids"
	"evaljudge/internal/scheduler"

	"github.com/gin-gonic/gin"
)

var validArtifactTypes = map[string]cache.ArtifactType{
	"source":  cache.Source,
	"binary":  cache.Binary,
	"input":   cache.Input,
	"output":  cache.Output,
	"checker": cache.Checker,
}

func (s *Server) health(c *gin.Context) {
	respondOK(c, gin.H{"status": "ok", "timestamp": time.Now().UTC()})
}

func (s *Server) upload(c *gin.Context) {
	if s.MaxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.MaxUploadBytes)
	}

	fh, err := c.FormFile("file")
	if err != nil {
		respondError(c, apperr.ValidationError("file", "missing multipart file field or upload exceeds the size limit"))
		return
	}

	typeParam := c.DefaultPostForm("type", "source")
	artifactType, ok := validArtifactTypes[typeParam]
	if !ok {
		respondError(c, apperr.ValidationError("type", "must be one of source, binary, input, output, checker"))
		return
	}

	f, err := fh.Open()
	if err != nil {
		respondError(c, apperr.Wrap(err, apperr.InvalidParams))
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		respondError(c, apperr.Wrap(err, apperr.InvalidParams))
		return
	}

	handle, err := s.Cache.Put(c.Request.Context(), artifactType, fh.Filename, data)
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, uploadResponse{
		CacheID:   handle,
		FileName:  fh.Filename,
		Type:      typeParam,
		Size:      int64(len(data)),
		ExpiresIn: int(s.CacheTTL / time.Second),
	})
}

// requireHandle 400s if handle is non-empty but not currently resolvable in
// the cache. Fields explicitly optional in the wire schema pass through the
// empty string and are skipped here.
func (s *Server) requireHandle(c *gin.Context, handle string) bool {
	if handle == "" {
		return true
	}
	if !s.Cache.Has(handle) {
		respondError(c, apperr.Newf(apperr.InvalidParams, "artifact %s not found or expired", handle))
		return false
	}
	return true
}

func (s *Server) compile(c *gin.Context) {
	var req compileWireRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperr.Wrap(err, apperr.InvalidParams))
		return
	}
	if !s.requireHandle(c, req.SourceCacheID) {
		return
	}
	id := s.Scheduler.AddTask("compile", req.toPipeline(), req.Priority)
	respondOK(c, taskAcceptedResponse{TaskID: id, Status: string(scheduler.Pending)})
}

func (s *Server) compileChecker(c *gin.Context) {
	var req compileWireRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperr.Wrap(err, apperr.InvalidParams))
		return
	}
	if !s.requireHandle(c, req.SourceCacheID) {
		return
	}
	id := s.Scheduler.AddTask("compile-checker", req.toPipeline(), req.Priority)
	respondOK(c, taskAcceptedResponse{TaskID: id, Status: string(scheduler.Pending)})
}

func (s *Server) judge(c *gin.Context) {
	var req judgeWireRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperr.Wrap(err, apperr.InvalidParams))
		return
	}
	if !s.requireHandle(c, req.BinaryCacheID) || !s.requireHandle(c, req.InputCacheID) || !s.requireHandle(c, req.OutputCacheID) {
		return
	}
	for _, tc := range req.Testcases {
		if !s.requireHandle(c, tc.InputCacheID) || !s.requireHandle(c, tc.AnswerCacheID) {
			return
		}
	}
	if ids.IsHandle(req.CheckerName) && !s.requireHandle(c, req.CheckerName) {
		return
	}
	id := s.Scheduler.AddTask("judge", req.toPipeline(), req.Priority)
	respondOK(c, taskAcceptedResponse{TaskID: id, Status: string(scheduler.Pending)})
}

func (s *Server) run(c *gin.Context) {
	var req runWireRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperr.Wrap(err, apperr.InvalidParams))
		return
	}
	if !s.requireHandle(c, req.BinaryCacheID) || !s.requireHandle(c, req.InputCacheID) {
		return
	}
	id := s.Scheduler.AddTask("run", req.toPipeline(), req.Priority)
	respondOK(c, taskAcceptedResponse{TaskID: id, Status: string(scheduler.Pending)})
}

func (s *Server) interactive(c *gin.Context) {
	var req interactiveWireRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperr.Wrap(err, apperr.InvalidParams))
		return
	}
	if !s.requireHandle(c, req.UserBinaryCacheID) || !s.requireHandle(c, req.InteractorBinaryCacheID) || !s.requireHandle(c, req.InputCacheID) {
		return
	}
	id := s.Scheduler.AddTask("interactive", req.toPipeline(), req.Priority)
	respondOK(c, taskAcceptedResponse{TaskID: id, Status: string(scheduler.Pending)})
}

func (s *Server) getTask(c *gin.Context) {
	id := c.Param("id")
	snap, ok := s.Scheduler.GetTask(id)
	if !ok {
		respondError(c, apperr.New(apperr.TaskNotFound))
		return
	}
	respondOK(c, taskSnapshotJSON(snap))
}

func (s *Server) getCache(c *gin.Context) {
	id := c.Param("id")
	ref, ok := s.Cache.Get(id)
	if !ok {
		respondError(c, apperr.New(apperr.CacheMiss))
		return
	}
	c.Header("Content-Disposition", "attachment; filename=\""+ref.Metadata.FileName+"\"")
	if acceptsGzip(c) {
		c.Header("Content-Encoding", "gzip")
		c.Status(200)
		if err := cache.WriteCompressed(c.Writer, ref.FilePath); err != nil {
			return
		}
		return
	}
	c.File(ref.FilePath)
}

func acceptsGzip(c *gin.Context) bool {
	for _, enc := range c.Request.Header.Values("Accept-Encoding") {
		if enc == "gzip" || len(enc) >= 4 && enc[:4] == "gzip" {
			return true
		}
	}
	return false
}

func (s *Server) status(c *gin.Context) {
	respondOK(c, gin.H{
		"queue":  s.Scheduler.Status(),
		"cache":  s.Cache.Stats(),
		"uptime": time.Since(s.startedAt).String(),
	})
}
