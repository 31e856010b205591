// Package pipeline orchestrates one build run: reference resolution,
// source acquisition, workspace isolation, version derivation, phase
// sequencing and artifact reporting. Stages run strictly in order; the
// first typed failure aborts the run and is forwarded unchanged.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/boardci/boardci/internal/artifact"
	"github.com/boardci/boardci/internal/buildversion"
	"github.com/boardci/boardci/internal/checkout"
	"github.com/boardci/boardci/internal/cierrors"
	"github.com/boardci/boardci/internal/config"
	"github.com/boardci/boardci/internal/driver"
	"github.com/boardci/boardci/internal/gitclient"
	"github.com/boardci/boardci/internal/logfields"
	"github.com/boardci/boardci/internal/metrics"
	"github.com/boardci/boardci/internal/workspace"
)

// Acquirer performs the source acquisition operations.
type Acquirer interface {
	Clone(url, cloneArgs string) error
	FetchPullRequestHead(id string) error
	Checkout(res checkout.Resolved) error
}

// Result summarizes a successful run.
type Result struct {
	Root     string
	Version  string
	Ref      checkout.Resolved
	RefSet   bool
	Manifest artifact.Manifest
	Custom   bool
}

// Pipeline drives a single build run for one board.
type Pipeline struct {
	req         *config.Request
	rec         metrics.Recorder
	newAcquirer func(dir string) Acquirer
	newRunner   func(req *config.Request, dir, version string) driver.Runner
}

// Option customizes a Pipeline; used by tests to inject fakes.
type Option func(*Pipeline)

// WithRecorder injects a metrics recorder.
func WithRecorder(rec metrics.Recorder) Option {
	return func(p *Pipeline) { p.rec = rec }
}

// WithAcquirer overrides the source acquisition client factory.
func WithAcquirer(f func(dir string) Acquirer) Option {
	return func(p *Pipeline) { p.newAcquirer = f }
}

// WithRunner overrides the build driver factory.
func WithRunner(f func(req *config.Request, dir, version string) driver.Runner) Option {
	return func(p *Pipeline) { p.newRunner = f }
}

// New creates a pipeline for the given immutable request.
func New(req *config.Request, opts ...Option) *Pipeline {
	p := &Pipeline{
		req: req,
		rec: metrics.NoopRecorder{},
		newAcquirer: func(dir string) Acquirer {
			return gitclient.NewClient(dir)
		},
		newRunner: func(req *config.Request, dir, version string) driver.Runner {
			r := driver.NewExec(req.Driver, dir).
				WithEnv("BC_BOARD", req.Board).
				WithEnv("BC_VERSION", version)
			if req.LoopDevice != "" {
				r = r.WithEnv("BC_LOOP_DEV", req.LoopDevice)
			}
			return r
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run executes the pipeline. Validation happens before any side effect.
func (p *Pipeline) Run(ctx context.Context) (Result, error) {
	start := time.Now()
	res, err := p.run(ctx)
	p.rec.ObserveRunDuration(time.Since(start))
	if err != nil {
		p.rec.IncRunOutcome("failed")
	} else {
		p.rec.IncRunOutcome("success")
	}
	return res, err
}

func (p *Pipeline) run(ctx context.Context) (Result, error) {
	if err := p.req.Validate(); err != nil {
		return Result{}, err
	}

	ref, refSet := checkout.Resolve(p.req.Branch, p.req.PullRequest, p.req.Tag, p.req.Commit)
	if refSet {
		slog.Info("Resolved checkout reference", logfields.Ref(ref.Ref), logfields.RefKind(string(ref.Kind)))
	} else {
		slog.Info("No reference selector set, building the default branch")
	}

	root, err := p.checkoutRoot()
	if err != nil {
		return Result{}, err
	}

	if err := p.acquire(root, ref, refSet); err != nil {
		return Result{}, err
	}

	ws, err := workspace.Attach(root, workspace.Spec{
		Board:        p.req.Board,
		DownloadRoot: p.req.DownloadRoot,
		CCacheRoot:   p.req.CCacheRoot,
		OutputRoot:   p.req.OutputRoot,
	})
	if err != nil {
		return Result{}, err
	}
	defer func() {
		if err := ws.Release(); err != nil {
			slog.Warn("Failed to release workspace attachments", logfields.Error(err))
		}
	}()

	version := buildversion.Resolve(p.req.VersionOverride, ref.Ref)
	slog.Info("Resolved version", logfields.Version(version), logfields.Board(p.req.Board))

	runner := p.newRunner(p.req, root, version)
	custom := p.req.CustomCommand != ""
	if err := p.sequencePhases(ctx, ws, runner); err != nil {
		return Result{}, err
	}

	result := Result{Root: root, Version: version, Ref: ref, RefSet: refSet, Custom: custom}
	if custom {
		// The custom command replaces clean/build/release entirely; no
		// artifact reporting happens on the bypass path.
		return result, nil
	}

	manifest, err := artifact.NewReporter(root, ws.BoardOutputDir()).Report(p.req.Board, version)
	if err != nil {
		return Result{}, err
	}
	result.Manifest = manifest
	slog.Info("Build finished", logfields.Board(p.req.Board), logfields.Version(version),
		slog.String("gz", manifest.GzipImage), slog.String("xz", manifest.XzImage))
	return result, nil
}

// checkoutRoot picks the checkout directory. Local mode reuses the
// pre-populated workdir; otherwise an explicit workdir is used as-is
// and an empty one yields a fresh temporary directory.
func (p *Pipeline) checkoutRoot() (string, error) {
	if p.req.Workdir != "" {
		if p.req.Local {
			if _, err := os.Stat(p.req.Workdir); err != nil {
				return "", cierrors.Wrap(cierrors.KindConfiguration, "local checkout does not exist", err)
			}
			return p.req.Workdir, nil
		}
		if err := os.MkdirAll(p.req.Workdir, 0o755); err != nil {
			return "", cierrors.Wrap(cierrors.KindAcquisition, "failed to create checkout directory", err)
		}
		return p.req.Workdir, nil
	}
	if p.req.Local {
		return "", cierrors.New(cierrors.KindConfiguration, "local mode requires a workdir")
	}
	dir, err := os.MkdirTemp("", "boardci-"+p.req.Board+"-")
	if err != nil {
		return "", cierrors.Wrap(cierrors.KindAcquisition, "failed to create checkout directory", err)
	}
	return dir, nil
}

// acquire clones (unless local), fetches the pull-request head when one
// was selected, then checks out the resolved reference.
func (p *Pipeline) acquire(root string, ref checkout.Resolved, refSet bool) error {
	client := p.newAcquirer(root)

	if !p.req.Local {
		url := checkout.InjectCredentials(p.req.RepoURL, p.req.Credentials)
		if err := client.Clone(url, p.req.CloneArgs); err != nil {
			return wrapKind(cierrors.KindAcquisition, "clone failed", err)
		}
	}

	if !refSet {
		return nil
	}
	if p.req.Local && !isGitCheckout(root) {
		// A pre-populated source tree without git metadata; the tree
		// stands as-is.
		slog.Debug("Local checkout has no git metadata, skipping checkout", logfields.Path(root))
		return nil
	}

	if ref.Kind == checkout.KindPullRequest {
		if err := client.FetchPullRequestHead(ref.PullRequest); err != nil {
			return wrapKind(cierrors.KindAcquisition, "pull request fetch failed", err)
		}
	}
	if err := client.Checkout(ref); err != nil {
		return wrapKind(cierrors.KindAcquisition, "checkout failed", err)
	}
	return nil
}

// sequencePhases runs the phase state machine: clean, build, release,
// or the custom-command bypass. Every phase is blocking and fail-fast.
func (p *Pipeline) sequencePhases(ctx context.Context, ws *workspace.Workspace, runner driver.Runner) error {
	if p.req.CustomCommand != "" {
		return p.phase(ctx, "custom", func() error {
			return runner.RunCustom(ctx, p.req.CustomCommand)
		})
	}

	cleanVerb := driver.VerbDistclean
	if p.req.CleanTargetOnly {
		cleanVerb = driver.VerbCleanTarget
	}

	// A destructive distclean wipes the whole tree's build state, so the
	// download cache binding must not be in the tree while it runs. A
	// target-only clean leaves the tree intact and needs no cycle unless
	// policy asks for it.
	detachCycle := cleanVerb == driver.VerbDistclean ||
		(p.req.CleanTargetOnly && p.req.PreserveDownloadsOnClean)

	if detachCycle {
		if err := ws.DetachDownloads(); err != nil {
			return err
		}
	}
	if err := p.phase(ctx, string(cleanVerb), func() error {
		return runner.Run(ctx, p.req.Board, cleanVerb)
	}); err != nil {
		return err
	}
	if detachCycle {
		if err := ws.ReattachDownloads(); err != nil {
			return err
		}
	}

	if err := p.phase(ctx, string(driver.VerbAll), func() error {
		return runner.Run(ctx, p.req.Board, driver.VerbAll)
	}); err != nil {
		return err
	}
	return p.phase(ctx, string(driver.VerbMkrelease), func() error {
		return runner.Run(ctx, p.req.Board, driver.VerbMkrelease)
	})
}

// phase times one phase, records its result and wraps failures as build
// errors carrying the delegated command's exit status.
func (p *Pipeline) phase(ctx context.Context, name string, fn func() error) error {
	slog.Info("Phase starting", logfields.Phase(name), logfields.Board(p.req.Board))
	start := time.Now()
	err := fn()
	d := time.Since(start)

	p.rec.ObservePhaseDuration(name, d)
	p.rec.IncPhaseResult(name, err == nil)

	if err != nil {
		slog.Error("Phase failed", logfields.Phase(name), logfields.DurationMS(float64(d.Milliseconds())), logfields.Error(err))
		return wrapKind(cierrors.KindBuild, fmt.Sprintf("%s phase failed", name), err)
	}
	slog.Info("Phase finished", logfields.Phase(name), logfields.DurationMS(float64(d.Milliseconds())))
	return nil
}

// wrapKind types an untyped failure; already-typed failures are
// forwarded unchanged so the top level sees the original kind.
func wrapKind(kind cierrors.Kind, message string, err error) error {
	if _, ok := cierrors.KindOf(err); ok {
		return err
	}
	wrapped := cierrors.Wrap(kind, message, err)
	if status := driver.StatusOf(err); status > 0 {
		return wrapped.WithStatus(status)
	}
	return wrapped
}

func isGitCheckout(root string) bool {
	_, err := os.Stat(root + string(os.PathSeparator) + ".git")
	return err == nil
}
