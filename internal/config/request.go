// Package config holds the immutable build request parsed once at
// process start and the daemon's YAML configuration.
package config

import (
	"strings"

	"github.com/boardci/boardci/internal/cierrors"
)

// Default host-side roots for the persistent board caches and the
// shared output directory.
const (
	DefaultDownloadRoot = "/var/lib/boardci/dl"
	DefaultCCacheRoot   = "/var/lib/boardci/ccache"
	DefaultOutputRoot   = "/var/lib/boardci/output"
)

// Request describes a single pipeline invocation. It is constructed
// once from flags/environment, validated eagerly, and read-only
// thereafter; no stage reads ambient process state directly.
type Request struct {
	RepoURL     string
	Credentials string
	Board       string

	// Reference selectors, mutually exclusive by priority
	// (branch > pull-request > tag > commit).
	Branch      string
	PullRequest string
	Tag         string
	Commit      string

	VersionOverride string
	CustomCommand   string

	// CleanTargetOnly selects the clean-target verb instead of a full
	// distclean.
	CleanTargetOnly bool

	// PreserveDownloadsOnClean also detaches the download cache around a
	// target-only clean. A distclean always detaches it.
	PreserveDownloadsOnClean bool

	// LoopDevice is passed through to the build driver as metadata.
	LoopDevice string

	// CloneArgs are clone-argument overrides, e.g. "--depth 1".
	CloneArgs string

	// Local degrades execution to a pre-populated checkout: no clone is
	// performed and RepoURL becomes optional.
	Local bool

	// Driver is the external build driver invoked per phase.
	Driver string

	// Workdir is the checkout root. Empty means a fresh temporary
	// directory per run.
	Workdir string

	DownloadRoot string
	CCacheRoot   string
	OutputRoot   string

	// PushGatewayURL, when set, enables a metrics push at end of run.
	PushGatewayURL string
}

// ApplyDefaults fills unset paths with their defaults.
func (r *Request) ApplyDefaults() {
	if r.DownloadRoot == "" {
		r.DownloadRoot = DefaultDownloadRoot
	}
	if r.CCacheRoot == "" {
		r.CCacheRoot = DefaultCCacheRoot
	}
	if r.OutputRoot == "" {
		r.OutputRoot = DefaultOutputRoot
	}
	if r.Driver == "" {
		r.Driver = "./build.sh"
	}
}

// Validate checks all mandatory inputs at once, before any side effect.
// The board identifier is always required; the repository URL is
// required unless execution is degraded to local mode.
func (r *Request) Validate() error {
	var missing []string
	if r.Board == "" {
		missing = append(missing, "board identifier")
	}
	if r.RepoURL == "" && !r.Local {
		missing = append(missing, "repository URL")
	}
	if len(missing) > 0 {
		return cierrors.New(cierrors.KindConfiguration,
			"missing mandatory configuration: "+strings.Join(missing, ", "))
	}
	return nil
}
