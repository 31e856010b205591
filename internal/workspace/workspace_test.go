package workspace

import (
	"os"
	"path/filepath"
	"testing"
)

func testSpec(t *testing.T, board string) Spec {
	t.Helper()
	base := t.TempDir()
	return Spec{
		Board:        board,
		DownloadRoot: filepath.Join(base, "dl"),
		CCacheRoot:   filepath.Join(base, "ccache"),
		OutputRoot:   filepath.Join(base, "output"),
	}
}

func TestAttachCreatesHostDirsAndBindings(t *testing.T) {
	root := t.TempDir()
	spec := testSpec(t, "raspberrypi")

	w, err := Attach(root, spec)
	if err != nil {
		t.Fatalf("Attach failed: %v", err)
	}
	defer func() {
		if err := w.Release(); err != nil {
			t.Errorf("Release failed: %v", err)
		}
	}()

	for _, dir := range []string{spec.DownloadHostDir(), spec.CCacheHostDir(), spec.BoardOutputDir()} {
		if _, err := os.Stat(dir); err != nil {
			t.Errorf("host directory %s missing: %v", dir, err)
		}
	}

	// A file written through the tree path must land in the host cache.
	marker := filepath.Join(root, DownloadTreePath, "archive.tar.gz")
	if err := os.WriteFile(marker, []byte("sources"), 0o600); err != nil {
		t.Fatalf("write through attachment failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(spec.DownloadHostDir(), "archive.tar.gz")); err != nil {
		t.Errorf("file did not land in host cache: %v", err)
	}
}

func TestDownloadCacheSurvivesDistclean(t *testing.T) {
	root := t.TempDir()
	spec := testSpec(t, "raspberrypi")

	w, err := Attach(root, spec)
	if err != nil {
		t.Fatalf("Attach failed: %v", err)
	}
	defer w.Release()

	archive := filepath.Join(spec.DownloadHostDir(), "toolchain.tar.xz")
	if err := os.WriteFile(archive, []byte("cached"), 0o600); err != nil {
		t.Fatalf("seed cache failed: %v", err)
	}

	// The distclean sequence: detach downloads, clean wipes the tree's
	// dl path, reattach.
	if err := w.DetachDownloads(); err != nil {
		t.Fatalf("DetachDownloads failed: %v", err)
	}
	if err := os.RemoveAll(filepath.Join(root, DownloadTreePath)); err != nil {
		t.Fatalf("simulated clean failed: %v", err)
	}
	if err := w.ReattachDownloads(); err != nil {
		t.Fatalf("ReattachDownloads failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(root, DownloadTreePath, "toolchain.tar.xz"))
	if err != nil {
		t.Fatalf("cached archive lost across clean: %v", err)
	}
	if string(data) != "cached" {
		t.Errorf("unexpected cache content: %q", data)
	}
}

func TestReleaseKeepsHostCaches(t *testing.T) {
	root := t.TempDir()
	spec := testSpec(t, "raspberrypi")

	w, err := Attach(root, spec)
	if err != nil {
		t.Fatalf("Attach failed: %v", err)
	}

	seed := filepath.Join(spec.CCacheHostDir(), "object.o")
	if err := os.WriteFile(seed, []byte("obj"), 0o600); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	if err := w.Release(); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	// Idempotent.
	if err := w.Release(); err != nil {
		t.Fatalf("second Release failed: %v", err)
	}

	if _, err := os.Stat(seed); err != nil {
		t.Errorf("host cache content lost on release: %v", err)
	}
}

func TestBoardsGetDisjointCaches(t *testing.T) {
	spec := testSpec(t, "raspberrypi")
	spec2 := spec
	spec2.Board = "raspberrypi2"

	if spec.DownloadHostDir() == spec2.DownloadHostDir() {
		t.Error("download caches alias across boards")
	}
	if spec.CCacheHostDir() == spec2.CCacheHostDir() {
		t.Error("compiler caches alias across boards")
	}
	// The output root is intentionally shared; subdirectories differ.
	if spec.BoardOutputDir() == spec2.BoardOutputDir() {
		t.Error("board output subdirectories alias")
	}
}

func TestAttachRequiresBoard(t *testing.T) {
	spec := testSpec(t, "raspberrypi")
	spec.Board = ""
	if _, err := Attach(t.TempDir(), spec); err == nil {
		t.Fatal("expected attach without board to fail")
	}
}
