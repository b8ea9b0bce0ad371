// koharu is a manga-translation pipeline service: a WebSocket + MessagePack
// command plane in front of detection, OCR, inpainting, translation, and
// rendering stages, driven by a desktop frontend or any RPC client.
//
// Usage:
//
//	koharu [flags]
//
// Flags:
//
//	-port int       Listen port for the RPC command plane (default 8932)
//	-cpu            Force CPU backends even if a GPU is available
//	-download       Pre-fetch every model weight file before serving
//	-headless       Run the command plane without the debug console
//	-debug          Launch the bubbletea debug console alongside the server
//	-cache-dir      Model weight cache directory (default ~/.cache/koharu)
//	-verbose        Enable debug-level logging
//	-version        Print version and exit
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/koharu-go/koharu/pkg/assets"
	"github.com/koharu-go/koharu/pkg/daemon"
	"github.com/koharu-go/koharu/pkg/document"
	"github.com/koharu-go/koharu/pkg/fonts"
	"github.com/koharu-go/koharu/pkg/models"
	"github.com/koharu-go/koharu/pkg/models/detector"
	"github.com/koharu-go/koharu/pkg/models/fontattr"
	"github.com/koharu-go/koharu/pkg/models/inpaint"
	"github.com/koharu-go/koharu/pkg/models/llm"
	"github.com/koharu-go/koharu/pkg/models/ocr"
	"github.com/koharu-go/koharu/pkg/ops"
	"github.com/koharu-go/koharu/pkg/pipeline"
	"github.com/koharu-go/koharu/pkg/render"
	"github.com/koharu-go/koharu/pkg/rpc"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/koharu-go/koharu/pkg/app"
	"github.com/koharu-go/koharu/pkg/collectors/sysmetrics"
	"github.com/koharu-go/koharu/pkg/terminal"
	"github.com/koharu-go/koharu/pkg/tui"
	"github.com/koharu-go/koharu/pkg/widgets"
)

// debugConsoleTickInterval is how often the debug console's widgets are
// refreshed. pkg/tui.Model drives nothing on its own: every widget that
// polls rather than pushes (PipelineWidget, SysMetricsWidget) only updates
// in response to a TickEvent or DataUpdateEvent sent here.
const debugConsoleTickInterval = 2 * time.Second

var version = "0.1.0"

func main() {
	var (
		port        = flag.Int("port", 8932, "Listen port for the RPC command plane")
		cpuOnly     = flag.Bool("cpu", false, "Force CPU backends even if a GPU is available")
		download    = flag.Bool("download", false, "Pre-fetch every model weight file before serving")
		headless    = flag.Bool("headless", false, "Run the command plane without the debug console")
		debug       = flag.Bool("debug", false, "Launch the bubbletea debug console alongside the server")
		cacheDir    = flag.String("cache-dir", defaultCacheDir(), "Model weight cache directory")
		fontDir     = flag.String("font-dir", defaultFontDir(), "Directory of .ttf/.otf font files available to the renderer")
		verbose     = flag.Bool("verbose", false, "Enable debug-level logging")
		showVersion = flag.Bool("version", false, "Print version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("koharu %s\n", version)
		os.Exit(0)
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	store, err := assets.NewStore(*cacheDir)
	if err != nil {
		logger.Error("failed to initialize asset cache", "error", err)
		os.Exit(1)
	}
	defer store.Manifest.Close()

	llmLoader := assets.NewLLMLoader(store)

	if *download {
		logger.Info("pre-fetching model weights", "cacheDir", *cacheDir)
		for _, m := range llm.List("en", *cpuOnly) {
			id, err := llm.ParseModelID(m.ID)
			if err != nil {
				logger.Warn("skipping unresolvable catalogue entry", "id", m.ID, "error", err)
				continue
			}
			path, err := llmLoader.Prefetch(context.Background(), id)
			if err != nil {
				logger.Warn("prefetch failed", "id", m.ID, "error", err)
				continue
			}
			logger.Info("model weights ready", "id", m.ID, "name", m.DisplayName, "path", path)
		}
	}

	state := &document.State{}
	mlPipeline := &models.Pipeline{
		DetectorModel: detector.New(detector.Weights{}),
		OCRModel:      ocr.New(ocr.Weights{}),
		FontAttrModel: fontattr.New(fontattr.Weights{}),
		InpaintModel:  inpaint.New(inpaint.Weights{}),
	}
	llmWrapper := llm.NewWrapper(llmLoader, *cpuOnly)
	renderer := render.New(fonts.NewDirectorySource(*fontDir))

	resources := ops.NewResources(version, state, mlPipeline, llmWrapper, renderer)
	runner := pipeline.NewRunner()
	server := rpc.NewServer(resources, runner)

	mux := http.NewServeMux()
	mux.Handle("/rpc", server)

	addr := fmt.Sprintf(":%d", *port)
	httpServer := &http.Server{Addr: addr, Handler: mux}

	go func() {
		logger.Info("command plane listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("command plane stopped", "error", err)
			os.Exit(1)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *debug && !*headless {
		if !terminal.IsInteractive() {
			logger.Warn("debug console requested but stdout is not a terminal, skipping")
		} else {
			runDebugConsole(ctx, stop, logger, resources)
		}
	}

	// A second koharu instance pointed at the same cache directory would
	// otherwise silently race with this one over model weight files and
	// the health file below.
	pidPath := filepath.Join(*cacheDir, "koharu.pid")
	if err := daemon.AcquirePID(pidPath); err != nil {
		logger.Error("another koharu instance is already using this cache directory", "error", err)
		os.Exit(1)
	}
	defer daemon.ReleasePID(pidPath)

	handler := &healthHandler{
		version:    version,
		cpuOnly:    *cpuOnly,
		startedAt:  time.Now(),
		resources:  resources,
		healthPath: filepath.Join(*cacheDir, "health.json"),
		stop:       stop,
	}
	if err := daemon.WriteHealthFile(handler.healthPath, handler.snapshot()); err != nil {
		logger.Warn("failed to write health file", "error", err)
	}

	ipcServer := daemon.NewIPCServer(filepath.Join(*cacheDir, "koharu.sock"), handler)
	if err := ipcServer.Start(); err != nil {
		logger.Warn("failed to start local control socket", "error", err)
	} else {
		defer ipcServer.Stop()
	}

	<-ctx.Done()

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(shutdownCtx)
}

// runDebugConsole launches the bubbletea status console in the background
// and keeps its widgets fed: pkg/tui.Model has no ticking of its own, so a
// ticker goroutine sends app.TickEvent (polled by PipelineWidget) and
// re-runs the sysmetrics collector on the same cadence (pushed to
// SysMetricsWidget as an app.DataUpdateEvent, mirroring how the teacher's
// own collectors fed its widgets). The program and its ticker both stop
// when ctx is cancelled; a quit from within the console itself also
// triggers process shutdown via stop, so "q" in the console and SIGTERM
// from outside converge on the same teardown path.
func runDebugConsole(ctx context.Context, stop context.CancelFunc, logger *slog.Logger, resources ops.Resources) {
	sysWidget := widgets.NewSysMetricsWidget()
	collector := sysmetrics.New(sysmetrics.DefaultConfig())

	model := tui.New([]app.Widget{
		widgets.NewPipelineWidget(resources),
		sysWidget,
	})

	program := tea.NewProgram(model, tea.WithAltScreen())

	go func() {
		if _, err := program.Run(); err != nil {
			logger.Error("debug console exited with error", "error", err)
		}
		stop()
	}()

	go func() {
		ticker := time.NewTicker(debugConsoleTickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				program.Quit()
				return
			case t := <-ticker.C:
				program.Send(app.TickEvent{Time: t})

				metrics, err := collector.Collect(ctx)
				program.Send(app.DataUpdateEvent{
					Source:    "sysmetrics",
					Data:      metrics,
					Err:       err,
					Timestamp: t,
				})
			}
		}
	}()
}

func defaultCacheDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".koharu-cache")
	}
	return filepath.Join(home, ".cache", "koharu")
}

// defaultFontDir points at the per-OS system font directory fontconfig
// and its peers search first, so the renderer has a reasonable set of
// families to pick from without requiring a -font-dir flag on every run.
func defaultFontDir() string {
	switch runtime.GOOS {
	case "darwin":
		return "/System/Library/Fonts"
	case "windows":
		return filepath.Join(os.Getenv("SystemRoot"), "Fonts")
	default:
		return "/usr/share/fonts/truetype"
	}
}
