package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/geoseq/sequences-backend-go/internal/handler"
	"github.com/geoseq/sequences-backend-go/internal/middleware"
)

// Handlers bundles everything the router wires up.
type Handlers struct {
	Sequences *handler.SequenceHandler
	Tokens    *handler.TokenHandler
	Nadir     *handler.NadirHandler
}

// SetupRouter builds the gin engine with all routes and middleware
func SetupRouter(h Handlers) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Logger())

	// CORS middleware
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"message": "Sequences Backend API is running",
		})
	})

	api := r.Group("/api/v1")
	{
		sequences := api.Group("/sequences")
		{
			sequences.GET("", h.Sequences.List)
			sequences.POST("", h.Sequences.Finalize)
			sequences.DELETE("/:name", h.Sequences.Remove)
			sequences.POST("/:name/reset", h.Sequences.Reset)
		}

		tokens := api.Group("/tokens")
		{
			tokens.GET("", h.Tokens.List)
			tokens.PUT("/:integration", h.Tokens.Set)
			tokens.DELETE("/:integration", h.Tokens.Clear)
		}

		api.POST("/nadir/preview", h.Nadir.Preview)
		api.POST("/gpx/parse", h.Nadir.ParseGPX)
	}

	return r
}
