// In file: cmd/gateway/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dileep-u-k/swarm-bridge/internal/bridge"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// main is the entry point for the application.
// Its primary role is the "Composition Root": it loads configuration,
// constructs the tool-server bridge, injects dependencies, and starts the
// web server.
func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	buildInfo := GetBuildInfo()
	log.Printf("🚀 Starting Swarm Bridge Gateway | Version: %s | Commit: %s", buildInfo.Version, buildInfo.GitCommit)

	// 1. LOAD CONFIGURATION
	cfg, err := LoadConfig()
	if err != nil {
		log.Fatalf("❌ FATAL: Configuration Error: %v", err)
	}
	log.Println("✅ Configuration loaded.")

	// 2. INITIALIZE THE BRIDGE
	b := bridge.New(cfg.VegaMCPPath, cfg.BridgeConfig())
	log.Printf("🔌 Tool server bridge ready: %s", b)

	swarmHandler := NewSwarmHandler(b)

	// 3. START BACKGROUND PROCESSES
	if cfg.HealthCheck {
		go startHealthChecker(b)
	}

	// 4. SETUP AND RUN THE WEB SERVER
	gin.SetMode(os.Getenv("GIN_MODE"))
	engine := gin.Default()
	engine.Use(requestIDMiddleware())
	swarmHandler.RegisterRoutes(engine.Group(cfg.MountPrefix))

	srv := &http.Server{Addr: fmt.Sprintf(":%s", cfg.Port), Handler: engine}
	runServerWithGracefulShutdown(srv)
}

// requestIDMiddleware tags every request with an id for log correlation.
// The id is only an HTTP-layer concern; the bridge's JSON-RPC envelope keeps
// its fixed id because each call owns its own process.
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Header("X-Request-ID", id)
		log.Printf("--- %s %s (Request-ID: %s) ---", c.Request.Method, c.Request.URL.Path, id)
		c.Next()
	}
}

// startHealthChecker runs a background goroutine that periodically probes
// the tool server. Failures are logged, never retried; each probe is an
// ordinary single-shot call.
func startHealthChecker(b ToolCaller) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	log.Println("🩺 Health checker started.")

	runCheck := func() {
		ctx, cancel := context.WithTimeout(context.Background(), bridge.DefaultTimeout)
		defer cancel()
		if _, err := b.CallTool(ctx, "swarm_list_agents", nil); err != nil {
			log.Printf("🩺 Tool server health check FAILED: %v", err)
			return
		}
		log.Println("🩺 Tool server health check OK.")
	}

	runCheck()
	for range ticker.C {
		runCheck()
	}
}

// runServerWithGracefulShutdown handles the server lifecycle.
func runServerWithGracefulShutdown(srv *http.Server) {
	go func() {
		log.Printf("👂 Gateway is listening on http://localhost%s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("❌ Listen error: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("🛑 Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("❌ Server shutdown failed:", err)
	}

	log.Println("👋 Server exited gracefully.")
}
