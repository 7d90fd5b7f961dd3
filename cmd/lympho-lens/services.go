package main

import (
	"fmt"
	"io"

	"lympho-lens/internal/config"
	"lympho-lens/internal/gateway"
	"lympho-lens/internal/gateway/dnn"
	"lympho-lens/internal/gateway/onnx"
	"lympho-lens/internal/imaging"
	"lympho-lens/internal/logger"
	"lympho-lens/internal/pipeline"
	"lympho-lens/internal/shutdown"
)

// services is everything a command needs, built once from configuration.
type services struct {
	cfg        *config.Config
	log        logger.Logger
	gateway    *gateway.Gateway
	pipeline   *pipeline.Pipeline
	source     *imaging.Source
	normalizer *imaging.Normalizer
	shutdown   *shutdown.Manager
}

// loadConfig applies the config file, then interactive pacing if asked,
// then command-line overrides.
func loadConfig(interactive bool) (*config.Config, error) {
	cfg, err := config.Load(rootFlags.configPath)
	if err != nil {
		return nil, err
	}

	if interactive && len(cfg.Pipeline.StageDelayMS) == 0 {
		cfg.ApplyInteractivePacing()
	}
	if rootFlags.runtime != "" {
		cfg.Model.Runtime = rootFlags.runtime
	}
	if rootFlags.modelURL != "" {
		cfg.Model.URL = rootFlags.modelURL
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newRuntime(cfg config.ModelConfig) (gateway.Runtime, error) {
	switch cfg.Runtime {
	case config.RuntimeONNX:
		return onnx.New(cfg.ONNXLibrary), nil
	case config.RuntimeOpenCV:
		return dnn.New(), nil
	default:
		return nil, fmt.Errorf("unknown runtime %q", cfg.Runtime)
	}
}

// newServices wires the application. Components are registered for
// shutdown in dependency order, so they are torn down in reverse.
func newServices(cfg *config.Config) (*services, error) {
	log := logger.New(cfg.Log.Format, logger.LevelFromEnv(cfg.Log.Level))

	runtime, err := newRuntime(cfg.Model)
	if err != nil {
		return nil, err
	}

	sm := shutdown.NewManager(log)
	if c, ok := runtime.(io.Closer); ok {
		sm.RegisterCloser("runtime:"+runtime.Name(), c)
	}

	gw := gateway.New(cfg.Model, runtime, gateway.NewFetcher(nil, cfg.Model.CacheDir, log), log)
	sm.RegisterCloser("gateway", gw)

	pl := pipeline.New(gw, log, pipeline.WithStageDelays(cfg.StageDelays()))

	log.Debug("Main", "services ready", map[string]interface{}{
		"runtime": runtime.Name(),
		"model":   cfg.Model.URL,
		"canvas":  fmt.Sprintf("%dx%d", cfg.Render.CanvasWidth, cfg.Render.CanvasHeight),
	})

	return &services{
		cfg:        cfg,
		log:        log,
		gateway:    gw,
		pipeline:   pl,
		source:     imaging.NewSource(log),
		normalizer: imaging.NewNormalizer(),
		shutdown:   sm,
	}, nil
}
