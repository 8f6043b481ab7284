// Copyright 2025 RagForge
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ragforge/mcprag/pkg/config"
	"github.com/ragforge/mcprag/pkg/config/provider"
	"github.com/ragforge/mcprag/pkg/observability"
	"github.com/ragforge/mcprag/pkg/service"
	"github.com/ragforge/mcprag/pkg/tool"
	"github.com/ragforge/mcprag/pkg/transport"
)

// ServeCmd starts the MCP RAG server.
type ServeCmd struct {
	Port  int  `help:"Port to listen on (overrides config)."`
	Watch bool `help:"Watch the config file and restart the service on change."`
}

func (c *ServeCmd) Run(cli *CLI) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		slog.Info("shutting down")
		cancel()
	}()

	// Reloaded configs arrive here; serveOnce drains one per restart.
	reloads := make(chan *config.Config, 1)

	cfg, loader, err := c.loadConfig(ctx, cli.Config, reloads)
	if err != nil {
		return err
	}
	if loader != nil {
		defer loader.Close()
		if c.Watch {
			go func() {
				if err := loader.Watch(ctx); err != nil && ctx.Err() == nil {
					slog.Error("config watch error", "error", err)
				}
			}()
		}
	}

	if cleanup, err := applyConfigLogging(cli, &cfg.Logging); err != nil {
		return err
	} else if cleanup != nil {
		defer cleanup()
	}

	for {
		if c.Port != 0 {
			cfg.Server.Port = c.Port
		}
		next, err := c.serveOnce(ctx, cfg, reloads)
		if err != nil {
			return err
		}
		if next == nil {
			return nil
		}
		slog.Info("restarting with reloaded configuration")
		cfg = next
	}
}

// serveOnce builds the full service stack from cfg and runs it until the
// context is cancelled or a reloaded config arrives. It returns the
// reloaded config when a restart is wanted, nil on clean exit.
func (c *ServeCmd) serveOnce(ctx context.Context, cfg *config.Config, reloads <-chan *config.Config) (*config.Config, error) {
	obs := observability.NewManager(cfg.Observability)
	if err := obs.Initialize(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize observability: %w", err)
	}

	svc, err := service.FromConfig(ctx, cfg, obs.Metrics())
	if err != nil {
		return nil, fmt.Errorf("failed to build service: %w", err)
	}

	tracer := tool.NewTracer(tool.NewSink(cfg.TraceSink), obs.Metrics(), cfg.TraceSink.Environment)
	dispatcher := tool.NewDispatcher(svc, tracer)

	srv, err := transport.New(cfg, dispatcher, obs)
	if err != nil {
		svc.Close()
		return nil, fmt.Errorf("failed to build server: %w", err)
	}

	teardown := func() {
		tracer.Close()
		if err := svc.Close(); err != nil {
			slog.Error("service close error", "error", err)
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := obs.Shutdown(shutdownCtx); err != nil {
			slog.Error("observability shutdown error", "error", err)
		}
	}

	printStartupInfo(cfg, obs)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	var next *config.Config
	select {
	case err := <-errCh:
		teardown()
		return nil, err
	case <-ctx.Done():
	case next = <-reloads:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}
	if err := <-errCh; err != nil {
		slog.Error("server stopped with error", "error", err)
	}
	teardown()
	return next, nil
}

// loadConfig loads the configuration file, or falls back to defaults when
// no path is given. Reloaded configs are pushed to the reloads channel.
func (c *ServeCmd) loadConfig(ctx context.Context, path string, reloads chan<- *config.Config) (*config.Config, *config.Loader, error) {
	if path == "" {
		slog.Info("no config file given, using defaults")
		return config.Default(), nil, nil
	}

	p, err := provider.NewFileProvider(path)
	if err != nil {
		return nil, nil, err
	}
	loader := config.NewLoader(p, config.WithOnChange(func(cfg *config.Config) {
		select {
		case reloads <- cfg:
		default:
			slog.Warn("dropping config reload, restart already pending")
		}
	}))
	cfg, err := loader.Load(ctx)
	if err != nil {
		p.Close()
		return nil, nil, err
	}
	slog.Info("loaded configuration", "path", path)
	return cfg, loader, nil
}

func printStartupInfo(cfg *config.Config, obs *observability.Manager) {
	addr := cfg.Server.Address()
	fmt.Printf("\n%s %s ready\n", cfg.Server.Name, cfg.Server.Version)
	fmt.Printf("   MCP:       http://%s/mcp\n", addr)
	fmt.Printf("   Tools:     http://%s/tools\n", addr)
	fmt.Printf("   Health:    http://%s/health\n", addr)
	if obs.MetricsEnabled() {
		fmt.Printf("   Metrics:   http://%s/metrics\n", addr)
	}
	if cfg.Auth.Enabled {
		fmt.Printf("   Auth:      JWT bearer (issuer %s)\n", cfg.Auth.Issuer)
	}
	if cfg.TraceSink.Enabled {
		fmt.Printf("   Traces:    %s (%s)\n", cfg.TraceSink.Endpoint, cfg.TraceSink.Environment)
	}
	fmt.Println("\nPress Ctrl+C to stop")
}
