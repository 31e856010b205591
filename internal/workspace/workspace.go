// Package workspace attaches the persistent board caches and the shared
// output directory into the ephemeral checkout, and guarantees their
// release on every exit path.
//
// The download and compiler caches are keyed by board identifier so
// concurrent runs for different boards never alias the same host path.
// The output root is shared; boards separate through subdirectories.
package workspace

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/boardci/boardci/internal/cierrors"
	"github.com/boardci/boardci/internal/logfields"
)

// Fixed in-tree attachment points, relative to the checkout root.
const (
	DownloadTreePath = "dl"
	CCacheTreePath   = "ccache"
	OutputTreePath   = "output"
)

const (
	downloadName = "download-cache"
	ccacheName   = "compiler-cache"
	outputName   = "output"
)

// Spec describes where the host-side cache roots live for one board.
type Spec struct {
	Board        string
	DownloadRoot string
	CCacheRoot   string
	OutputRoot   string
}

// DownloadHostDir returns the board-scoped download cache directory.
func (s Spec) DownloadHostDir() string { return filepath.Join(s.DownloadRoot, s.Board) }

// CCacheHostDir returns the board-scoped compiler cache directory.
func (s Spec) CCacheHostDir() string { return filepath.Join(s.CCacheRoot, s.Board) }

// BoardOutputDir returns this board's subdirectory of the shared output
// root. The manifest is written here.
func (s Spec) BoardOutputDir() string { return filepath.Join(s.OutputRoot, s.Board) }

type attachMode int

const (
	modeDetached attachMode = iota
	modeMount
	modeSymlink
)

type attachment struct {
	name     string
	hostPath string
	treePath string
	mode     attachMode
}

// Workspace is the checkout root plus its attachment bindings.
type Workspace struct {
	root        string
	spec        Spec
	attachments map[string]*attachment
}

// Attach ensures the host-side roots exist and binds each into the
// checkout. Bind mounts are preferred; a symbolic link is the fallback
// when mounting is unavailable. Safe to repeat.
func Attach(root string, spec Spec) (*Workspace, error) {
	if spec.Board == "" {
		return nil, cierrors.New(cierrors.KindIsolation, "workspace spec requires a board identifier")
	}

	w := &Workspace{
		root: root,
		spec: spec,
		attachments: map[string]*attachment{
			downloadName: {name: downloadName, hostPath: spec.DownloadHostDir(), treePath: DownloadTreePath},
			ccacheName:   {name: ccacheName, hostPath: spec.CCacheHostDir(), treePath: CCacheTreePath},
			outputName:   {name: outputName, hostPath: spec.OutputRoot, treePath: OutputTreePath},
		},
	}

	for _, name := range []string{downloadName, ccacheName, outputName} {
		if err := w.attach(w.attachments[name]); err != nil {
			// Release whatever was attached before the failure.
			_ = w.Release()
			return nil, err
		}
	}

	// Board subdirectory of the shared output root, where the manifest
	// and the release images for this board land.
	if err := os.MkdirAll(spec.BoardOutputDir(), 0o755); err != nil {
		_ = w.Release()
		return nil, cierrors.Wrap(cierrors.KindIsolation, "failed to create board output directory", err)
	}

	return w, nil
}

// Root returns the checkout root.
func (w *Workspace) Root() string { return w.root }

// BoardOutputDir returns the host-side per-board output directory.
func (w *Workspace) BoardOutputDir() string { return w.spec.BoardOutputDir() }

func (w *Workspace) attach(a *attachment) error {
	if a.mode != modeDetached {
		return nil
	}

	if err := os.MkdirAll(a.hostPath, 0o755); err != nil {
		return cierrors.Wrap(cierrors.KindIsolation,
			fmt.Sprintf("failed to create host directory for %s", a.name), err)
	}

	target := filepath.Join(w.root, a.treePath)

	// Clear a stale symlink from a previous attach of the same tree.
	if fi, err := os.Lstat(target); err == nil && fi.Mode()&os.ModeSymlink != 0 {
		if err := os.Remove(target); err != nil {
			return cierrors.Wrap(cierrors.KindIsolation,
				fmt.Sprintf("failed to remove stale %s link", a.name), err)
		}
	}

	if err := os.MkdirAll(target, 0o755); err != nil {
		return cierrors.Wrap(cierrors.KindIsolation,
			fmt.Sprintf("failed to create attachment point for %s", a.name), err)
	}

	if err := bindMount(a.hostPath, target); err == nil {
		a.mode = modeMount
		slog.Debug("Attached via bind mount", slog.String("attachment", a.name), logfields.Path(target))
		return nil
	}

	// Mounting unavailable (unprivileged or non-Linux); fall back to a
	// symbolic link. The attachment point must be empty for this.
	if err := os.Remove(target); err != nil {
		return cierrors.Wrap(cierrors.KindIsolation,
			fmt.Sprintf("failed to clear attachment point for %s", a.name), err)
	}
	if err := os.Symlink(a.hostPath, target); err != nil {
		return cierrors.Wrap(cierrors.KindIsolation,
			fmt.Sprintf("failed to symlink %s", a.name), err)
	}
	a.mode = modeSymlink
	slog.Debug("Attached via symlink", slog.String("attachment", a.name), logfields.Path(target))
	return nil
}

func (w *Workspace) detach(a *attachment) error {
	if a.mode == modeDetached {
		return nil
	}
	target := filepath.Join(w.root, a.treePath)

	switch a.mode {
	case modeMount:
		if err := unmountPath(target); err != nil {
			return cierrors.Wrap(cierrors.KindIsolation,
				fmt.Sprintf("failed to unmount %s", a.name), err)
		}
	case modeSymlink:
		if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
			return cierrors.Wrap(cierrors.KindIsolation,
				fmt.Sprintf("failed to remove %s link", a.name), err)
		}
	}
	a.mode = modeDetached
	slog.Debug("Detached", slog.String("attachment", a.name), logfields.Path(target))
	return nil
}

// DetachDownloads removes the download cache binding so a destructive
// clean cannot wipe previously downloaded source archives. The compiler
// cache and output bindings stay attached; the clean target does not
// touch them.
func (w *Workspace) DetachDownloads() error {
	return w.detach(w.attachments[downloadName])
}

// ReattachDownloads restores the download cache binding after a clean,
// re-ensuring the host directory first.
func (w *Workspace) ReattachDownloads() error {
	return w.attach(w.attachments[downloadName])
}

// Release detaches every binding. It is idempotent and safe on every
// exit path; the host-side cache directories persist for reuse by a
// subsequent run for the same board.
func (w *Workspace) Release() error {
	var errs []error
	for _, a := range w.attachments {
		if err := w.detach(a); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
