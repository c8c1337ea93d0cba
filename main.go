package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kartoza/stunting-predictor/internal/config"
	"github.com/kartoza/stunting-predictor/internal/logging"
	"github.com/kartoza/stunting-predictor/internal/nn"
	"github.com/kartoza/stunting-predictor/internal/predictor"
	"github.com/kartoza/stunting-predictor/internal/server"
	"github.com/kartoza/stunting-predictor/internal/telemetry"
	webview "github.com/webview/webview_go"
	"go.uber.org/zap"
)

var version = "dev"

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run starts the application and blocks until it shuts down. Deferred
// cleanup (log flush, trace export) always runs before it returns.
func run(args []string) error {
	// Parse command-line flags
	fs := flag.NewFlagSet("stunting-predictor", flag.ContinueOnError)
	configPath := fs.String("config", "config.yaml", "Path to the YAML configuration file")
	port := fs.Int("port", 0, "HTTP server port (overrides config)")
	modelPath := fs.String("model", "", "Path to the model weights, .npz or SQLite model pack (overrides config)")
	headless := fs.Bool("headless", false, "Run in headless mode (no GUI window)")
	showVersion := fs.Bool("version", false, "Show version and exit")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *showVersion {
		fmt.Printf("Stunting Predictor v%s\n", version)
		return nil
	}

	// Resolve configuration: defaults, then file, then environment, then flags
	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	cfg.Version = version
	cfg.ApplyOverrides(flagOverrides(fs, port, modelPath, headless))
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Sync()
	undo := zap.ReplaceGlobals(logger)
	defer undo()

	shutdownTracing, err := telemetry.Setup(context.Background(), cfg.Telemetry.ServiceName, cfg.Telemetry.Endpoint)
	if err != nil {
		logger.Warn("tracing disabled", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(ctx); err != nil {
			logger.Warn("failed to flush traces", zap.Error(err))
		}
	}()

	// The model is required: refuse to serve without it
	params, err := nn.Load(cfg.Model.Path)
	if err != nil {
		var le *nn.LoadError
		if errors.As(err, &le) {
			logger.Error("failed to load model",
				zap.String("path", le.Path),
				zap.String("array", le.Array),
				zap.Error(le.Err))
		} else {
			logger.Error("failed to load model", zap.Error(err))
		}
		return err
	}
	features, hidden1, hidden2, classes := params.Dims()
	logger.Info("model loaded",
		zap.String("path", cfg.Model.Path),
		zap.Ints("layers", []int{features, hidden1, hidden2, classes}))

	pred, err := predictor.New(params, predictor.Options{CacheSize: cfg.Model.CacheSize})
	if err != nil {
		logger.Error("incompatible model", zap.Error(err))
		return fmt.Errorf("incompatible model: %w", err)
	}

	// Find an available port (try up to 10 ports starting from the requested one)
	availablePort, err := findAvailablePort(cfg.Server.Port, 10)
	if err != nil {
		logger.Error("failed to find available port", zap.Error(err))
		return err
	}
	if availablePort != cfg.Server.Port {
		logger.Info("port in use, using another",
			zap.Int("requested", cfg.Server.Port),
			zap.Int("port", availablePort))
	}
	cfg.Server.Port = availablePort

	logger.Info("starting", zap.String("version", version), zap.Int("port", cfg.Server.Port))

	// Create and start the server
	srv, err := server.New(cfg, pred, logger)
	if err != nil {
		logger.Error("failed to create server", zap.Error(err))
		return fmt.Errorf("failed to create server: %w", err)
	}

	// Graceful shutdown on SIGINT/SIGTERM
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	// Start server in background
	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for server to be ready
	serverURL := fmt.Sprintf("http://localhost:%d", cfg.Server.Port)
	if !waitForServer(serverURL, 10*time.Second) {
		logger.Warn("server may not be ready", zap.String("url", serverURL))
	}

	if cfg.Server.Headless {
		// Headless mode: wait for signal or error
		select {
		case err := <-errCh:
			if err != nil {
				logger.Error("server error", zap.Error(err))
				return fmt.Errorf("server error: %w", err)
			}
		case sig := <-stop:
			logger.Info("shutting down", zap.String("signal", sig.String()))
			if err := srv.Stop(); err != nil {
				logger.Error("error during shutdown", zap.Error(err))
				return err
			}
		}
		return nil
	}

	// GUI mode: open embedded WebView window
	logger.Info("opening application window")
	w := webview.New(false)
	defer w.Destroy()

	w.SetTitle("Stunting Detection with Backpropagation")
	w.SetSize(1100, 760, webview.HintNone)
	w.Navigate(serverURL)

	// When the webview window closes, shut down the server
	go func() {
		select {
		case err := <-errCh:
			if err != nil {
				logger.Error("server error", zap.Error(err))
			}
		case sig := <-stop:
			logger.Info("shutting down", zap.String("signal", sig.String()))
		}
		w.Dispatch(w.Terminate)
	}()

	// Run blocks until the window is closed
	w.Run()

	logger.Info("window closed, shutting down server")
	if err := srv.Stop(); err != nil {
		logger.Error("error during shutdown", zap.Error(err))
		return err
	}
	return nil
}

// flagOverrides returns the flags the user actually set
func flagOverrides(fs *flag.FlagSet, port *int, modelPath *string, headless *bool) config.Overrides {
	var o config.Overrides
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "port":
			o.Port = port
		case "model":
			o.ModelPath = modelPath
		case "headless":
			o.Headless = headless
		}
	})
	return o
}

// waitForServer polls until the server is accepting connections
func waitForServer(url string, timeout time.Duration) bool {
	addr := url[len("http://"):]
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", addr, 500*time.Millisecond)
		if err == nil {
			conn.Close()
			return true
		}
		time.Sleep(100 * time.Millisecond)
	}
	return false
}

// findAvailablePort finds an available port, starting from the given port.
// If the port is in use, it tries subsequent ports up to maxAttempts times.
func findAvailablePort(startPort int, maxAttempts int) (int, error) {
	for i := 0; i < maxAttempts; i++ {
		port := startPort + i
		addr := fmt.Sprintf(":%d", port)
		listener, err := net.Listen("tcp", addr)
		if err == nil {
			listener.Close()
			return port, nil
		}
	}
	return 0, fmt.Errorf("no available port found after %d attempts starting from %d", maxAttempts, startPort)
}
