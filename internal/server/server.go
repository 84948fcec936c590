// Package server exposes question answering and the figure directory over HTTP.
package server

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"lecture-rag/internal/config"
	"lecture-rag/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// Answerer composes the answer to one question.
type Answerer interface {
	Answer(ctx context.Context, question string) (string, error)
}

// FigureLister reads metadata-only figure records of a page (1-based).
type FigureLister interface {
	Figures(ctx context.Context, source string, page int) ([]models.Record, error)
}

type ChatRequest struct {
	Question string `json:"question" binding:"required"`
}

type ChatResponse struct {
	Answer string `json:"answer"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type handler struct {
	answerer Answerer
	figures  FigureLister
}

// New builds the router: POST /chat, GET /figures, GET /healthz and the
// static file tree under /static.
func New(cfg config.ServerConfig, answerer Answerer, figures FigureLister) *gin.Engine {
	r := gin.New()
	r.Use(requestLogger(), gin.Recovery(), cors(cfg.AllowOrigins))

	h := &handler{answerer: answerer, figures: figures}
	r.POST("/chat", h.chat)
	r.GET("/figures", h.listFigures)
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if cfg.StaticDir != "" {
		r.Static("/static", cfg.StaticDir)
	}
	return r
}

func (h *handler) chat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Question) == "" {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "question is required"})
		return
	}

	answer, err := h.answerer.Answer(c.Request.Context(), req.Question)
	if err != nil {
		log.Error().Err(err).Str("question", req.Question).Msg("Failed to answer")
		c.JSON(http.StatusBadGateway, errorResponse{Error: "failed to answer the question"})
		return
	}
	c.JSON(http.StatusOK, ChatResponse{Answer: answer})
}

func (h *handler) listFigures(c *gin.Context) {
	source := c.Query("source")
	page, err := strconv.Atoi(c.Query("page"))
	if source == "" || err != nil || page < 1 {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "source and a 1-based page are required"})
		return
	}

	records, err := h.figures.Figures(c.Request.Context(), source, page)
	if err != nil {
		log.Error().Err(err).Str("source", source).Int("page", page).Msg("Failed to read figures")
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "failed to read figures"})
		return
	}
	if records == nil {
		records = []models.Record{}
	}
	c.JSON(http.StatusOK, gin.H{"figures": records})
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Msg("HTTP request")
	}
}

// cors allows the configured origins with credentials. "*" allows any origin
// without credentials.
func cors(origins []string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[o] = true
	}
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		switch {
		case origin == "":
		case allowed[origin]:
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Vary", "Origin")
		case allowed["*"]:
			c.Header("Access-Control-Allow-Origin", "*")
		default:
			c.Next()
			return
		}

		if c.Request.Method == http.MethodOptions {
			c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			reqHeaders := c.GetHeader("Access-Control-Request-Headers")
			if reqHeaders == "" {
				reqHeaders = "Content-Type, Authorization"
			}
			c.Header("Access-Control-Allow-Headers", reqHeaders)
			c.Header("Access-Control-Max-Age", "86400")
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
