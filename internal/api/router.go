package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"github.com/receiptme/receiptd/internal/api/handlers"
	"github.com/receiptme/receiptd/internal/api/middleware"
	"github.com/receiptme/receiptd/internal/config"
	"github.com/receiptme/receiptd/internal/core"
)

type Deps struct {
	Store    core.MessageStore
	Notifier handlers.Notifier
	Logger   zerolog.Logger
}

// NewRouter builds the HTTP handler for the message API, wrapped in CORS.
func NewRouter(cfg *config.Config, deps Deps) http.Handler {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestLogger(deps.Logger))

	messages := handlers.NewMessageHandler(deps.Store, deps.Notifier,
		cfg.Server.RecentLimit, cfg.Server.MaxRecentLimit, deps.Logger)
	printer := handlers.NewPrinterHandler(deps.Store, deps.Notifier,
		cfg.Worker.ClaimLease.Duration(), deps.Logger)

	r.GET("/health", handlers.Health)
	r.POST("/message", messages.CreateMessage)
	r.GET("/messages/recent", messages.ListRecent)
	r.GET("/printer/next-to-print", printer.NextToPrint)
	r.POST("/printer/mark-printed", printer.MarkPrinted)

	c := cors.New(cors.Options{
		AllowedOrigins: cfg.Server.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	})
	return c.Handler(r)
}

func NewServer(cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout.Duration(),
		WriteTimeout: cfg.Server.WriteTimeout.Duration(),
	}
}
