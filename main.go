package main

import (
	"context"
	"fmt"
	"os"

	"github.com/example/task-manager/config"
	"github.com/example/task-manager/modules/api"
	"github.com/example/task-manager/modules/audit"
	"github.com/example/task-manager/modules/auth"
	"github.com/example/task-manager/modules/ratelimit"
	"github.com/example/task-manager/modules/task"
	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/go-monolith/mono"
)

func main() {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := cfg.NewLogger(os.Stdout)
	for _, w := range cfg.Warnings {
		logger.Warn(w)
	}

	frameworkLevel := mono.LogLevelInfo
	if cfg.LogLevel == "error" {
		frameworkLevel = mono.LogLevelError
	}

	app, err := mono.NewMonoApplication(
		mono.WithShutdownTimeout(cfg.ShutdownTimeout),
		mono.WithLogLevel(frameworkLevel),
		mono.WithLogFormat(mono.LogFormatText),
	)
	if err != nil {
		logger.Error("failed to create application", "error", err)
		os.Exit(1)
	}

	authModule := auth.NewModule(cfg.UsersDBPath, cfg.JWT, logger, auth.WithBootstrapAdmin(cfg.Admin))
	taskModule := task.NewModule(cfg.TasksDBPath, logger)

	checks := []api.HealthChecker{authModule, taskModule}
	var apiOpts []api.Option

	// Order: independent modules first, then dependent modules
	app.Register(audit.NewModule(logger, audit.DefaultHistorySize))
	app.Register(authModule)
	app.Register(taskModule)
	if cfg.RateLimit.Enabled() {
		limiter := ratelimit.NewModule(cfg.RateLimit, logger)
		app.Register(limiter)
		checks = append(checks, limiter)
		apiOpts = append(apiOpts, api.WithCredentialLimiter(limiter.Handler()))
	} else {
		logger.Info("rate limiting disabled; set REDIS_ADDR to enable")
	}
	apiOpts = append(apiOpts, api.WithHealthChecks(checks...))
	app.Register(api.NewModule(cfg, logger, apiOpts...))

	if err := app.Start(context.Background()); err != nil {
		logger.Error("failed to start application", "error", err)
		os.Exit(1)
	}
	logger.Info("task manager started", "addr", cfg.ListenAddr, "env", cfg.Env)

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		cfg.ShutdownTimeout,
		map[string]gfshutdown.Operation{
			"mono-app": func(ctx context.Context) error {
				logger.Info("graceful shutdown initiated")
				return app.Stop(ctx)
			},
		},
	)

	exitCode := <-wait
	logger.Info("application exited", "code", exitCode)
	os.Exit(exitCode)
}
