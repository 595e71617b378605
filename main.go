package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/xiaoyuanzhu-com/sessiond/api"
	"github.com/xiaoyuanzhu-com/sessiond/config"
	"github.com/xiaoyuanzhu-com/sessiond/db"
	"github.com/xiaoyuanzhu-com/sessiond/engine"
	"github.com/xiaoyuanzhu-com/sessiond/log"
	"github.com/xiaoyuanzhu-com/sessiond/notifications"
	"github.com/xiaoyuanzhu-com/sessiond/search"
)

func main() {
	cfg := config.Get()

	// Initialize database (runs migrations)
	_ = db.GetDB()

	// Notification broadcast + optional search mirror
	notifService := notifications.NewService()
	searchClient := search.Get()
	bridge := notifications.NewEngineBridge(notifService, searchClient)

	// Session engine
	eng := engine.New(engine.Options{
		RootDir:         cfg.TranscriptsDir,
		SnapshotPath:    cfg.SnapshotPath,
		DebounceWindow:  cfg.DebounceWindow,
		ReadRetries:     cfg.ReadRetries,
		ReadBackoff:     cfg.ReadBackoff,
		ToolBinary:      cfg.ToolBinary,
		InvokeTimeout:   cfg.InvokeTimeout,
		KillGracePeriod: cfg.KillGracePeriod,
	}, bridge)
	bridge.SetLookup(eng.Session)

	if err := eng.Initialize(); err != nil {
		log.Fatal().Err(err).Msg("failed to initialize session index")
	}
	if err := eng.Start(); err != nil {
		log.Fatal().Err(err).Msg("failed to start transcript watcher")
	}

	// Set Gin to release mode to disable its default debug logging
	// We use our own zerolog-based request logger instead
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(log.GinLogger())

	// CORS for development
	if cfg.IsDevelopment() {
		r.Use(corsMiddleware())
	}

	// Gzip compression (skip the websocket endpoint - protocol upgrade)
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{
		"/api/events",
	})))

	r.SetTrustedProxies(nil)

	// Ignore .well-known requests (Chrome DevTools, etc.)
	r.GET("/.well-known/*path", func(c *gin.Context) {
		c.Status(http.StatusNotFound)
	})

	handlers := api.NewHandlers(eng, notifService, searchClient)
	api.SetupRoutes(r, handlers)

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	srv := &http.Server{
		Addr:     addr,
		Handler:  r,
		ErrorLog: log.StdErrorLogger(),
	}

	go func() {
		log.Info().
			Str("addr", addr).
			Str("env", cfg.Env).
			Str("transcripts", cfg.TranscriptsDir).
			Msg("server starting")

		printNetworkAddresses(cfg.Port)

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Stop the engine first: the watcher and any live tool processes
	eng.Shutdown()

	// Close notification service to disconnect event-stream clients
	notifService.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server shutdown error")
	}

	if err := db.Close(); err != nil {
		log.Error().Err(err).Msg("database close error")
	}

	log.Info().Msg("server stopped")
}

// corsMiddleware creates a CORS middleware for Gin
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		allowedOrigins := map[string]bool{
			"http://localhost:12345": true,
			"http://localhost:12346": true,
		}

		if allowedOrigins[origin] {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		}

		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, PATCH, HEAD, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-Requested-With")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func printNetworkAddresses(port int) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return
	}

	var addresses []string
	for _, iface := range ifaces {
		if iface.Flags&net.FlagLoopback != 0 {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}

		for _, addr := range addrs {
			if ipnet, ok := addr.(*net.IPNet); ok {
				if ip4 := ipnet.IP.To4(); ip4 != nil {
					addresses = append(addresses, fmt.Sprintf("http://%s:%d", ip4.String(), port))
				}
			}
		}
	}

	for _, addr := range addresses {
		log.Info().Str("url", addr).Msg("network")
	}
}
