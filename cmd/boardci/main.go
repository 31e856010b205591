package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/boardci/boardci/internal/cierrors"
	"github.com/boardci/boardci/internal/config"
	"github.com/boardci/boardci/internal/daemon"
	"github.com/boardci/boardci/internal/logfields"
	"github.com/boardci/boardci/internal/metrics"
	"github.com/boardci/boardci/internal/pipeline"
	"github.com/boardci/boardci/internal/version"
)

var CLI struct {
	Verbose bool `short:"v" help:"Enable verbose logging"`

	Run struct {
		Repo        string `env:"BC_REPO" help:"Repository URL to build from"`
		Board       string `env:"BC_BOARD" help:"Board identifier"`
		Branch      string `env:"BC_BRANCH" help:"Branch to build"`
		PullRequest string `env:"BC_PR" help:"Pull request number to build"`
		Tag         string `env:"BC_TAG" help:"Tag to build"`
		Commit      string `env:"BC_COMMIT" help:"Commit hash to build"`

		Version     string `env:"BC_VERSION" help:"Version override for release naming"`
		Custom      string `env:"BC_CUSTOM_CMD" help:"Custom command replacing the build phases"`
		CleanTarget bool   `env:"BC_CLEAN_TARGET_ONLY" help:"Clean only target state, keep toolchains"`
		PreserveDl  bool   `name:"preserve-downloads" help:"Detach the download cache around a target-only clean"`
		LoopDev     string `env:"BC_LOOP_DEV" help:"Loop device passed to the build driver"`
		CloneArgs   string `env:"BC_CLONE_ARGS" help:"Extra clone arguments, e.g. '--depth 1'"`
		Credentials string `env:"BC_CREDENTIALS" help:"Credentials injected into the repository URL"`
		Local       bool   `env:"BC_LOCAL" help:"Build a pre-populated checkout, skip cloning"`

		Driver       string `help:"Build driver executable" default:"./build.sh"`
		Workdir      string `short:"w" help:"Checkout directory (default: fresh temporary directory)"`
		DownloadRoot string `help:"Host root for per-board download caches"`
		CCacheRoot   string `help:"Host root for per-board compiler caches"`
		OutputRoot   string `help:"Shared output root for build artifacts"`
		PushGateway  string `env:"BC_PUSH_GATEWAY" help:"Pushgateway URL for run metrics"`
	} `cmd:"" help:"Run one build pipeline for a board"`

	Daemon struct {
		Config string `short:"c" help:"Daemon configuration file path" default:"config.yaml"`
	} `cmd:"" help:"Run continuous builds driven by schedule and triggers"`

	Version struct{} `cmd:"" help:"Show version information"`
}

func main() {
	config.LoadEnvFiles()
	ctx := kong.Parse(&CLI)

	logLevel := slog.LevelInfo
	if CLI.Verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	switch ctx.Command() {
	case "run":
		runPipeline(logger)
	case "daemon":
		if err := runDaemon(CLI.Daemon.Config); err != nil {
			slog.Error("Daemon failed", logfields.Error(err))
			os.Exit(1)
		}
	case "version":
		fmt.Printf("boardci %s (commit %s, built %s)\n", version.Version, version.GitCommit, version.BuildTime)
	}
}

func runPipeline(logger *slog.Logger) {
	req := &config.Request{
		RepoURL:     CLI.Run.Repo,
		Credentials: CLI.Run.Credentials,
		Board:       CLI.Run.Board,

		Branch:      CLI.Run.Branch,
		PullRequest: CLI.Run.PullRequest,
		Tag:         CLI.Run.Tag,
		Commit:      CLI.Run.Commit,

		VersionOverride: CLI.Run.Version,
		CustomCommand:   CLI.Run.Custom,

		CleanTargetOnly:          CLI.Run.CleanTarget,
		PreserveDownloadsOnClean: CLI.Run.PreserveDl,

		LoopDevice: CLI.Run.LoopDev,
		CloneArgs:  CLI.Run.CloneArgs,
		Local:      CLI.Run.Local,

		Driver:  CLI.Run.Driver,
		Workdir: CLI.Run.Workdir,

		DownloadRoot: CLI.Run.DownloadRoot,
		CCacheRoot:   CLI.Run.CCacheRoot,
		OutputRoot:   CLI.Run.OutputRoot,

		PushGatewayURL: CLI.Run.PushGateway,
	}
	req.ApplyDefaults()

	adapter := cierrors.NewCLIAdapter(CLI.Verbose, logger)

	var rec metrics.Recorder = metrics.NoopRecorder{}
	var prom *metrics.PrometheusRecorder
	if req.PushGatewayURL != "" {
		prom = metrics.NewPrometheusRecorder(nil)
		rec = prom
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	result, err := pipeline.New(req, pipeline.WithRecorder(rec)).Run(ctx)

	if prom != nil {
		if pushErr := prom.Push(req.PushGatewayURL, req.Board); pushErr != nil {
			slog.Warn("Failed to push metrics", logfields.Error(pushErr))
		}
	}

	if err != nil {
		adapter.HandleError(err)
	}
	if result.Custom {
		slog.Info("Custom command finished", logfields.Board(req.Board))
	}
}

func runDaemon(configPath string) error {
	cfg, err := config.LoadDaemonConfig(configPath)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	d, err := daemon.New(cfg, configPath)
	if err != nil {
		return fmt.Errorf("failed to create daemon: %w", err)
	}
	if err := d.Start(ctx); err != nil {
		return err
	}

	slog.Info("Daemon running, waiting for shutdown signal")
	<-ctx.Done()
	slog.Info("Shutdown signal received, stopping daemon")
	d.Stop()
	return nil
}
