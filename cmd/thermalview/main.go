// Command thermalview runs the thermal camera capture backend: it pulls
// frames from a thermal camera on a background worker, renders false-colour
// images, and serves results, settings and debug surfaces over HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/thermal.view/internal/api"
	"github.com/banshee-data/thermal.view/internal/camera"
	"github.com/banshee-data/thermal.view/internal/config"
	"github.com/banshee-data/thermal.view/internal/db"
	"github.com/banshee-data/thermal.view/internal/temperature"
	"github.com/banshee-data/thermal.view/internal/thermal"
)

var (
	devMode     = flag.Bool("dev", false, "Run with a synthetic camera instead of hardware")
	listen      = flag.String("listen", ":8080", "Listen address")
	port        = flag.String("port", "/dev/ttyUSB0", "Serial port of the thermal module (ignored in dev mode)")
	adapterName = flag.String("adapter", "mcu90640", "Camera adapter to decode frames with")
	dbFile      = flag.String("db", "thermal_data.db", "Path to the sqlite database (empty disables persistence)")
	configPath  = flag.String("config", "", "Optional viewer config JSON file")
	unitName    = flag.String("unit", "", "Display unit override (kelvin, celsius, fahrenheit)")
)

func main() {
	flag.Parse()

	if *listen == "" {
		log.Fatal("Listen address is required")
	}

	cfg := config.EmptyViewerConfig()
	if *configPath != "" {
		var err error
		cfg, err = config.LoadViewerConfig(*configPath)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
	}

	unit := cfg.GetUnit()
	if *unitName != "" {
		var err error
		unit, err = temperature.ParseUnit(*unitName)
		if err != nil {
			log.Fatalf("invalid unit: %v", err)
		}
	}

	adapter, err := camera.AdapterByName(*adapterName)
	if err != nil {
		log.Fatalf("failed to select adapter: %v", err)
	}

	var cam thermal.Camera
	cameraLabel := *port
	if *devMode {
		cam, err = camera.NewMockCameraFor(adapter, 8)
		if err != nil {
			log.Fatalf("failed to create mock camera: %v", err)
		}
		cameraLabel = "mock"
		log.Printf("dev mode: using synthetic %s camera", adapter.Name())
	} else {
		cam, err = camera.OpenSerialCamera(*port, camera.DefaultPortOptions())
		if err != nil {
			log.Fatalf("failed to open camera: %v", err)
		}
	}

	var database *db.DB
	var sessionID string
	if *dbFile != "" {
		database, err = db.NewDB(*dbFile)
		if err != nil {
			log.Fatalf("failed to open database: %v", err)
		}
		defer database.Close()

		sessionID, err = database.StartSession(cameraLabel, adapter.Name())
		if err != nil {
			log.Fatalf("failed to start capture session: %v", err)
		}
		log.Printf("capture session %s", sessionID)
	}

	capturer := thermal.New(cam, adapter, nil)

	// The capturer starts with built-in defaults; the configured settings
	// land by the end of the first iteration.
	capturer.SetSettings(cfg.CaptureSettings())

	server := api.NewServer(capturer, database, api.Options{
		Unit:            unit,
		SessionID:       sessionID,
		RecordEvery:     cfg.GetRecordEvery(),
		InitialSettings: cfg.CaptureSettings(),
	})

	mux := http.NewServeMux()
	server.RegisterRoutes(mux)
	server.AttachDebugRoutes(mux)
	if database != nil {
		if err := database.AttachAdminRoutes(mux); err != nil {
			log.Fatalf("failed to attach db admin routes: %v", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := capturer.Start(); err != nil {
		log.Fatalf("failed to start capturer: %v", err)
	}

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		server.Run(ctx)
		log.Print("result consumer terminated")
	}()

	httpServer := &http.Server{Addr: *listen, Handler: mux}
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Printf("listening on %s", *listen)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("http server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Print("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown error: %v", err)
	}
	if err := capturer.StopAndWait(shutdownCtx); err != nil {
		log.Printf("capturer did not stop cleanly: %v", err)
	}
	if database != nil && sessionID != "" {
		if err := database.EndSession(sessionID); err != nil {
			log.Printf("failed to end session: %v", err)
		}
	}

	wg.Wait()
}
