package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vk/flowgraph/internal/ctxlog"
	"github.com/vk/flowgraph/internal/engine"
	"github.com/vk/flowgraph/internal/graph"
	"github.com/vk/flowgraph/internal/render/wsrender"
	"github.com/vk/flowgraph/internal/supervisor"
)

// Server wires the engine into a gin router.
type Server struct {
	engine *engine.Engine
	hub    *wsrender.Hub
	logger *slog.Logger
}

// New creates a Server. hub may be nil to disable the websocket endpoint.
func New(eng *engine.Engine, hub *wsrender.Hub, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{engine: eng, hub: hub, logger: logger}
}

// Router builds the HTTP routing table.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	r.GET("/healthz", s.healthz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	if s.hub != nil {
		r.GET("/ws", gin.WrapH(s.hub))
	}

	v1 := r.Group("/api/v1")
	{
		v1.GET("/nodes", s.listNodes)
		v1.POST("/nodes", s.createNode)
		v1.GET("/nodes/:id", s.getNode)
		v1.DELETE("/nodes/:id", s.deleteNode)
		v1.PATCH("/nodes/:id/data", s.patchNodeData)
		v1.POST("/nodes/:id/retry", s.retryNode)
		v1.POST("/connections", s.createConnection)
		v1.DELETE("/connections", s.deleteConnection)
		v1.GET("/errors", s.listErrors)
	}
	return r
}

// requestLogger logs one structured line per request.
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("Request handled.",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"elapsed", time.Since(start))
	}
}

type nodeRequest struct {
	ID   string         `json:"id"`
	Kind string         `json:"kind" binding:"required"`
	Data map[string]any `json:"data"`
}

type connectionRequest struct {
	SourceNode   string `json:"sourceNode" binding:"required"`
	SourceHandle string `json:"sourceHandle" binding:"required"`
	TargetNode   string `json:"targetNode" binding:"required"`
	TargetHandle string `json:"targetHandle" binding:"required"`
}

func (r connectionRequest) connection() graph.Connection {
	return graph.Connection{
		SourceNodeID:   r.SourceNode,
		SourceHandleID: r.SourceHandle,
		TargetNodeID:   r.TargetNode,
		TargetHandleID: r.TargetHandle,
	}
}

type nodeResponse struct {
	ID         string         `json:"id"`
	Kind       string         `json:"kind"`
	Data       map[string]any `json:"data"`
	IsActive   bool           `json:"isActive"`
	IsHead     bool           `json:"isHead"`
	ErrorState string         `json:"errorState"`
	ErrorCount int            `json:"errorCount,omitempty"`
	LastError  string         `json:"lastError,omitempty"`
}

func (s *Server) nodeResponse(n graph.Node) nodeResponse {
	sup := s.engine.Supervisor()
	resp := nodeResponse{
		ID:         n.ID,
		Kind:       n.Kind,
		Data:       n.Data,
		IsActive:   n.IsActive,
		IsHead:     n.IsHead,
		ErrorState: sup.StateOf(n.ID).String(),
		ErrorCount: sup.ErrorCount(n.ID),
	}
	if err := sup.LastError(n.ID); err != nil {
		resp.LastError = err.Error()
	}
	return resp
}

func (s *Server) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) listNodes(c *gin.Context) {
	nodes := s.engine.Nodes()
	out := make([]nodeResponse, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, s.nodeResponse(n))
	}
	c.JSON(http.StatusOK, gin.H{"nodes": out})
}

func (s *Server) createNode(c *gin.Context) {
	var req nodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	ctx := ctxlog.WithLogger(c.Request.Context(), s.logger)
	if err := s.engine.AddNode(ctx, req.ID, req.Kind, req.Data); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	n, _ := s.engine.Node(req.ID)
	c.JSON(http.StatusCreated, s.nodeResponse(n))
}

func (s *Server) getNode(c *gin.Context) {
	n, ok := s.engine.Node(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "node not found"})
		return
	}
	c.JSON(http.StatusOK, s.nodeResponse(n))
}

func (s *Server) deleteNode(c *gin.Context) {
	ctx := ctxlog.WithLogger(c.Request.Context(), s.logger)
	if err := s.engine.RemoveNode(ctx, c.Param("id")); err != nil {
		s.renderError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) patchNodeData(c *gin.Context) {
	var partial map[string]any
	if err := c.ShouldBindJSON(&partial); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := ctxlog.WithLogger(c.Request.Context(), s.logger)
	nodeID := c.Param("id")
	if err := s.engine.SetNodeData(ctx, nodeID, partial); err != nil {
		s.renderError(c, err)
		return
	}
	n, _ := s.engine.Node(nodeID)
	c.JSON(http.StatusOK, s.nodeResponse(n))
}

func (s *Server) retryNode(c *gin.Context) {
	ctx := ctxlog.WithLogger(c.Request.Context(), s.logger)
	nodeID := c.Param("id")
	if err := s.engine.RetryNode(ctx, nodeID); err != nil {
		s.renderError(c, err)
		return
	}
	n, _ := s.engine.Node(nodeID)
	c.JSON(http.StatusOK, s.nodeResponse(n))
}

func (s *Server) createConnection(c *gin.Context) {
	var req connectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := ctxlog.WithLogger(c.Request.Context(), s.logger)
	if err := s.engine.AddConnection(ctx, req.connection()); err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, req)
}

func (s *Server) deleteConnection(c *gin.Context) {
	var req connectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := ctxlog.WithLogger(c.Request.Context(), s.logger)
	if err := s.engine.RemoveConnection(ctx, req.connection()); err != nil {
		s.renderError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// listErrors reports every node currently outside the Healthy state.
func (s *Server) listErrors(c *gin.Context) {
	sup := s.engine.Supervisor()
	var out []nodeResponse
	for _, n := range s.engine.Nodes() {
		if sup.StateOf(n.ID) == supervisor.Healthy {
			continue
		}
		out = append(out, s.nodeResponse(n))
	}
	agg := sup.Metrics()
	c.JSON(http.StatusOK, gin.H{
		"nodes":         out,
		"totalErrors":   agg.TotalErrors,
		"activeErrored": agg.ActiveErrored,
		"meanRecovery":  agg.MeanRecovery.String(),
	})
}

// renderError maps engine errors onto HTTP status codes.
func (s *Server) renderError(c *gin.Context, err error) {
	var nf *engine.NotFoundError
	if errors.As(err, &nf) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}
