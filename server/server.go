package server

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"pagechat/internal/models"
	"pagechat/pkg/config"
	"pagechat/pkg/llm"
	"pagechat/pkg/scraper"
	"pagechat/pkg/store"
)

// Server wires the scrape and query pipelines behind two JSON endpoints.
// Everything is constructed once at startup and shared by reference; there
// are no package-level singletons.
type Server struct {
	config  *config.Config
	store   *store.FileStore
	scraper *scraper.Scraper
	chat    *llm.ChatEngine
}

type scrapeRequest struct {
	URL string `json:"url"`
}

type queryRequest struct {
	Query string `json:"query"`
	File  string `json:"file"`
}

func New(cfg *config.Config) (*Server, error) {
	chat, err := llm.NewWithConfig(llm.ChatConfig{
		Model:   cfg.LLM.Model,
		APIKey:  cfg.LLM.APIKey,
		BaseURL: cfg.LLM.BaseURL,
	})
	if err != nil {
		return nil, err
	}

	return &Server{
		config: cfg,
		store:  store.New(cfg.Store.Dir),
		scraper: scraper.NewWithConfig(scraper.ScraperConfig{
			Mode:      cfg.Scraper.Mode,
			Timeout:   time.Duration(cfg.Scraper.TimeoutSeconds) * time.Second,
			RateLimit: cfg.Scraper.RateLimit,
			UserAgent: cfg.Scraper.UserAgent,
		}),
		chat: chat,
	}, nil
}

// Router constructs a Gin engine with registered routes.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(corsMiddleware())

	r.POST("/scrape", s.handleScrape)
	r.POST("/query", s.handleQuery)
	r.GET("/records", s.handleListRecords)
	r.GET("/health", s.handleHealth)
	return r
}

// Run starts the HTTP server on the configured address and blocks.
func (s *Server) Run() error {
	return s.Router().Run(s.config.Server.Addr)
}

// handleScrape fetches the requested page, extracts its text and persists
// one new record. POST /scrape {"url": "..."}
func (s *Server) handleScrape(c *gin.Context) {
	var req scrapeRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.URL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "URL is required"})
		return
	}

	rec, err := s.scraper.Scrape(c.Request.Context(), req.URL)
	if err != nil {
		log.Printf("scrape of %s failed: %v", req.URL, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to scrape the provided URL"})
		return
	}

	id, err := s.store.Save(rec)
	if err != nil {
		log.Printf("failed to save record for %s: %v", req.URL, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to scrape the provided URL"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "URL scraped and saved successfully",
		"file":    id,
	})
}

// handleQuery resolves a stored record (named or latest), forwards it with
// the caller's question to the chat provider and returns the answer.
// POST /query {"query": "...", "file": "optional identifier"}
func (s *Server) handleQuery(c *gin.Context) {
	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Query is required"})
		return
	}

	rec, id, err := s.resolveRecord(req.File)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Specified file does not exist"})
		case errors.Is(err, store.ErrEmptyStore):
			c.JSON(http.StatusBadRequest, gin.H{"error": "No scraped data available. Scrape a URL first."})
		default:
			log.Printf("failed to load record %q: %v", req.File, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process the query with ChatGPT"})
		}
		return
	}

	answer, err := s.chat.Ask(c.Request.Context(), rec, req.Query)
	if err != nil {
		log.Printf("chat completion against %s failed: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process the query with ChatGPT"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"answer": answer})
}

func (s *Server) resolveRecord(id string) (rec models.ScrapeRecord, resolved string, err error) {
	if id != "" {
		rec, err = s.store.Read(id)
		return rec, id, err
	}
	return s.store.Latest()
}

// handleListRecords returns all stored record identifiers, newest first.
// GET /records
func (s *Server) handleListRecords(c *gin.Context) {
	ids, err := s.store.List()
	if err != nil {
		log.Printf("failed to list records: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list records"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": ids})
}

// handleHealth provides a health check endpoint. GET /health
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
