// Package app wires the analyzerd application together.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/langtools/analyzerd/src/analyzerd/controller/router"
	sessionctl "github.com/langtools/analyzerd/src/analyzerd/controller/session"
	"github.com/langtools/analyzerd/src/analyzerd/entity"
	"github.com/langtools/analyzerd/src/analyzerd/gateway/analyzer"
	"github.com/langtools/analyzerd/src/analyzerd/gateway/notice"
	"github.com/langtools/analyzerd/src/analyzerd/internal/clock"
	"github.com/langtools/analyzerd/src/analyzerd/internal/core"
	"github.com/langtools/analyzerd/src/analyzerd/internal/crashpolicy"
	"github.com/langtools/analyzerd/src/analyzerd/internal/settings"
	"github.com/langtools/analyzerd/src/analyzerd/repository/registry"
	tally "github.com/uber-go/tally"
	"go.uber.org/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	_configKeyAnalyzer     = "analyzer"
	_configKeyCrashPolicy  = "crashPolicy"
	_configKeyFolders      = "workspaceFolders"
	_configKeyHeartbeatSec = "heartbeat.intervalSeconds"
)

// crashPolicyConfig is the configuration shape for the crash policy.
type crashPolicyConfig struct {
	Threshold     int   `yaml:"threshold"`
	WindowSeconds int64 `yaml:"windowSeconds"`
}

// folderConfig is the configuration shape for one workspace folder.
type folderConfig struct {
	Name string `yaml:"name"`
	Path string `yaml:"path"`
}

// Module defines the analyzerd application module.
var Module = fx.Options(
	core.ConfigModule,
	core.LoggerModule,
	fx.Provide(func(lc fx.Lifecycle) tally.Scope {
		rs, closer := tally.NewRootScope(tally.ScopeOptions{
			Tags: map[string]string{
				"service": "analyzerd",
			},
		}, 1*time.Second)

		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				return closer.Close()
			},
		})

		return rs
	}),
	fx.Provide(clock.New),
	fx.Provide(func(logger *zap.SugaredLogger) notice.Gateway {
		return notice.New(nil, logger)
	}),
	fx.Provide(newCrashPolicy),
	fx.Provide(newSessionFactory),
	fx.Provide(registry.New),
	fx.Provide(router.New),
	fx.Invoke(run),
)

func newCrashPolicy(cfg config.Provider) (crashpolicy.Policy, error) {
	var pc crashPolicyConfig
	if err := cfg.Get(_configKeyCrashPolicy).Populate(&pc); err != nil {
		return crashpolicy.Policy{}, fmt.Errorf("getting config field %q: %w", _configKeyCrashPolicy, err)
	}
	return crashpolicy.New(pc.Threshold, time.Duration(pc.WindowSeconds)*time.Second), nil
}

func newSessionFactory(cfg config.Provider, notices notice.Gateway, logger *zap.SugaredLogger, stats tally.Scope) (registry.Factory, error) {
	var analyzerCfg analyzer.Config
	if err := cfg.Get(_configKeyAnalyzer).Populate(&analyzerCfg); err != nil {
		return nil, fmt.Errorf("getting config field %q: %w", _configKeyAnalyzer, err)
	}

	getter := settings.NewFileGetter()
	return func(ctx context.Context, folder entity.WorkspaceFolder) (*sessionctl.Session, error) {
		return sessionctl.New(ctx, sessionctl.Params{
			Name:           folder.Name,
			Folder:         folder,
			AnalyzerConfig: analyzerCfg,
			SettingsGetter: getter,
			Notices:        notices,
			Logger:         logger,
			Stats:          stats.SubScope("session"),
		}), nil
	}, nil
}

// runParams are the dependencies of the application loop.
type runParams struct {
	fx.In

	Lifecycle fx.Lifecycle
	Config    config.Provider
	Logger    *zap.SugaredLogger
	Registry  registry.Registry
	Factory   registry.Factory
}

// run registers one session per configured workspace folder and drives the
// periodic heartbeat until shutdown.
func run(p runParams) error {
	var folders []folderConfig
	if err := p.Config.Get(_configKeyFolders).Populate(&folders); err != nil {
		return fmt.Errorf("getting config field %q: %w", _configKeyFolders, err)
	}

	var intervalSeconds int64
	if err := p.Config.Get(_configKeyHeartbeatSec).Populate(&intervalSeconds); err != nil || intervalSeconds <= 0 {
		intervalSeconds = 30
	}

	heartbeatDone := make(chan struct{})
	heartbeatStop := make(chan struct{})

	p.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			for _, f := range folders {
				s, err := p.Factory(ctx, entity.WorkspaceFolder{Name: f.Name, Path: f.Path})
				if err != nil {
					return fmt.Errorf("creating session for folder %q: %w", f.Path, err)
				}
				if err := p.Registry.Register(ctx, s); err != nil {
					return err
				}
			}

			go func() {
				defer close(heartbeatDone)
				ticker := time.NewTicker(time.Duration(intervalSeconds) * time.Second)
				defer ticker.Stop()
				for {
					select {
					case <-heartbeatStop:
						return
					case <-ticker.C:
						for _, s := range p.Registry.Sessions() {
							s.OnInterval(context.Background())
						}
					}
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			close(heartbeatStop)
			<-heartbeatDone
			return p.Registry.DisposeAll(ctx)
		},
	})

	return nil
}
