package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"kolibri-v0/internal/telemetry"
)

// Server is a thin HTTP face over the node. It holds callbacks rather
// than the runtime itself so the command loop keeps single ownership of
// all node state.
type Server struct {
	addr string

	Status    func() any
	Teach     func(input, target int) error
	TeachText func(question, answer string) error
	Ask       func(input int) (int, error)
	AskText   func(question string) (string, error)
	Evolve    func(generations int)
	Feedback  func(delta float64) error
	Events    func(limit int) (any, error) // nil when the index is disabled
}

func New(addr string) *Server {
	return &Server{addr: addr}
}

func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/api/status", func(c *gin.Context) {
		if s.Status == nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "status not wired"})
			return
		}
		c.JSON(http.StatusOK, s.Status())
	})

	r.POST("/api/teach", func(c *gin.Context) {
		var body struct {
			Input  int `json:"input"`
			Target int `json:"target"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := s.Teach(body.Input, body.Target); err != nil {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	r.POST("/api/teach_text", func(c *gin.Context) {
		var body struct {
			Question string `json:"question"`
			Answer   string `json:"answer"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		body.Question = strings.TrimSpace(body.Question)
		body.Answer = strings.TrimSpace(body.Answer)
		if body.Question == "" || body.Answer == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "question and answer required"})
			return
		}
		if err := s.TeachText(body.Question, body.Answer); err != nil {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	r.POST("/api/ask", func(c *gin.Context) {
		var body struct {
			Input int `json:"input"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		answer, err := s.Ask(body.Input)
		if err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"answer": answer})
	})

	r.POST("/api/ask_text", func(c *gin.Context) {
		var body struct {
			Question string `json:"question"`
		}
		if err := c.ShouldBindJSON(&body); err != nil || strings.TrimSpace(body.Question) == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "question required"})
			return
		}
		answer, err := s.AskText(body.Question)
		if err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"answer": answer})
	})

	r.POST("/api/evolve", func(c *gin.Context) {
		var body struct {
			Generations int `json:"generations"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		s.Evolve(body.Generations)
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	r.POST("/api/feedback", func(c *gin.Context) {
		var body struct {
			Delta float64 `json:"delta"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := s.Feedback(body.Delta); err != nil {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	r.GET("/api/events", func(c *gin.Context) {
		if s.Events == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "knowledge index disabled"})
			return
		}
		limit := 50
		if v, err := strconv.Atoi(c.Query("limit")); err == nil && v >= 1 && v <= 500 {
			limit = v
		}
		events, err := s.Events(limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, events)
	})

	r.GET("/metrics", gin.WrapH(telemetry.Handler()))
	return r
}

// Run serves until the context ends.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.Router()}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
