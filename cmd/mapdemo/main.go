package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/woozymasta/mapkit/internal/config"
	"github.com/woozymasta/mapkit/internal/directions"
	"github.com/woozymasta/mapkit/internal/engine"
	"github.com/woozymasta/mapkit/internal/geocoder"
	"github.com/woozymasta/mapkit/internal/loader"
	"github.com/woozymasta/mapkit/internal/logger"
	"github.com/woozymasta/mapkit/internal/mapctl"
	"github.com/woozymasta/mapkit/internal/server"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Options struct {
	Logger logger.Logger `group:"Logger options"`

	ConfigFile   string        `short:"c" long:"config"        env:"CONFIG_FILE"    description:"Path to configuration file"     default:"config.yaml"`
	APIKey       string        `short:"k" long:"api-key"       env:"MAPKIT_API_KEY" description:"API key, overrides the config"`
	Addr         string        `short:"a" long:"addr"          env:"LISTEN_ADDRESS" description:"Address to listen on"           default:"0.0.0.0"`
	Port         int           `short:"p" long:"port"          env:"LISTEN_PORT"    description:"Port to listen on"              default:"8080"`
	Title        string        `short:"t" long:"title"         env:"PAGE_TITLE"     description:"Inspection page title"          default:"mapkit inspector"`
	SceneTimeout time.Duration `long:"scene-timeout"           env:"SCENE_TIMEOUT"  description:"How long to wait for each scene" default:"30s"`
	Limit        []string      `short:"l" long:"limit"         env:"LIMIT_NAMES"    description:"Start only the named maps"`
	Concurrency  int           `long:"concurrency"             env:"CONCURRENCY"    description:"Parallel layer loads per map"   default:"4"`
}

func main() {
	_ = godotenv.Load(".env")

	var opts Options
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	// Setup Logging
	opts.Logger.Setup()

	// Load Config
	cfg, err := config.Load(opts.ConfigFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if opts.APIKey != "" {
		cfg.APIKey = opts.APIKey
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := &http.Client{Timeout: config.DefaultTimeout}
	ld := loader.New(client, filepath.Dir(opts.ConfigFile))

	var controllers []*mapctl.Controller
	defer func() {
		for _, c := range controllers {
			c.Dispose()
		}
	}()

	for _, m := range selectMaps(cfg, opts.Limit) {
		c, err := startMap(ctx, client, ld, cfg, m, opts)
		if err != nil {
			log.Fatal().Err(err).Str("map", m.Name).Msg("Failed to start map")
		}
		controllers = append(controllers, c)
	}

	srvCtx, err := server.NewServerContext(opts.Title, controllers...)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize server")
	}

	listenAddr := fmt.Sprintf("%s:%d", opts.Addr, opts.Port)
	srv := &http.Server{
		Addr:              listenAddr,
		Handler:           srvCtx.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info().
		Str("addr", listenAddr).
		Int("maps_loaded", len(controllers)).
		Msg("Web server started")

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("Server failed")
	}
	log.Info().Msg("Web server stopped")
}

// selectMaps filters the configured maps by name, keeping config order.
func selectMaps(cfg *config.Config, limit []string) []*config.Map {
	out := make([]*config.Map, 0, len(cfg.Maps))
	if len(limit) == 0 {
		for i := range cfg.Maps {
			out = append(out, &cfg.Maps[i])
		}
		return out
	}

	seen := make(map[string]bool, len(limit))
	for _, name := range limit {
		if seen[name] {
			continue
		}
		seen[name] = true

		m, ok := cfg.Map(name)
		if !ok {
			log.Error().Str("name", name).Msg("Map specified in --limit not found in configuration")
			continue
		}
		out = append(out, m)
	}
	return out
}

// startMap creates the controller of m, loads its scene and imports its layers.
func startMap(ctx context.Context, client *http.Client, ld *loader.Loader, cfg *config.Config, m *config.Map, opts Options) (*mapctl.Controller, error) {
	sceneYAML := m.SceneYAML
	if sceneYAML == "" {
		var err error
		if sceneYAML, err = fetchScene(ctx, client, m.Scene); err != nil {
			return nil, err
		}
	}

	engOpts := []engine.MemoryOption{}
	if m.Viewport.Width > 0 && m.Viewport.Height > 0 {
		engOpts = append(engOpts, engine.WithViewport(m.Viewport.Width, m.Viewport.Height))
	}
	eng := engine.NewMemory(engOpts...)

	ease, err := engine.ParseEaseType(m.Ease)
	if err != nil {
		return nil, err
	}
	ctlOpts := []mapctl.Option{mapctl.WithName(m.Name), mapctl.WithEase(ease)}
	if cfg.Geocoder.URL != "" {
		ctlOpts = append(ctlOpts, mapctl.WithGeocoder(geocoder.New(cfg.Geocoder.URL, cfg.APIKey, cfg.Geocoder.Timeout)))
	}
	if cfg.Directions.URL != "" {
		ctlOpts = append(ctlOpts, mapctl.WithDirections(directions.New(cfg.Directions.URL, cfg.APIKey, cfg.Directions.Timeout)))
	}

	c, err := mapctl.New(cfg.APIKey, eng, ctlOpts...)
	if err != nil {
		return nil, err
	}

	if err := loadScene(c, sceneYAML, m, opts.SceneTimeout); err != nil {
		c.Dispose()
		return nil, err
	}

	if err := c.SetPickRadius(m.PickRadius); err != nil {
		c.Dispose()
		return nil, err
	}
	if !m.Center.IsEmpty() {
		if err := c.SetCenter(m.Center, 0); err != nil {
			c.Dispose()
			return nil, err
		}
	}
	if err := c.SetZoom(m.Zoom, 0); err != nil {
		c.Dispose()
		return nil, err
	}

	for _, res := range ld.LoadAll(ctx, m.Layers, opts.Concurrency) {
		if res.Err != nil {
			log.Error().Err(res.Err).Str("map", m.Name).Str("layer", res.Config.Name).Msg("Layer skipped")
			continue
		}
		if err := c.AddLayer(res.Layer); err != nil {
			log.Warn().Err(err).Str("map", m.Name).Str("layer", res.Config.Name).Msg("Layer added partially")
		}
	}
	c.Flush()

	stats := c.Stats()
	log.Info().
		Str("map", m.Name).
		Int("markers", stats.Markers).
		Int("polylines", stats.Polylines).
		Int("polygons", stats.Polygons).
		Int("data_sources", stats.DataSources).
		Msg("Map ready")
	return c, nil
}
