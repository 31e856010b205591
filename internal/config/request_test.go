package config

import (
	"strings"
	"testing"

	"github.com/boardci/boardci/internal/cierrors"
)

func TestValidateMissingInputsReportedTogether(t *testing.T) {
	req := &Request{}
	err := req.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !cierrors.IsKind(err, cierrors.KindConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	msg := err.Error()
	if !strings.Contains(msg, "board identifier") || !strings.Contains(msg, "repository URL") {
		t.Fatalf("expected both missing inputs in one error, got %q", msg)
	}
}

func TestValidateRepoURLRequiredUnlessLocal(t *testing.T) {
	req := &Request{Board: "raspberrypi"}
	if err := req.Validate(); err == nil {
		t.Fatal("expected error: repository URL missing and not local")
	}

	req.Local = true
	if err := req.Validate(); err != nil {
		t.Fatalf("local mode should not require repository URL: %v", err)
	}
}

func TestValidateLocalStillRequiresBoard(t *testing.T) {
	req := &Request{Local: true}
	err := req.Validate()
	if !cierrors.IsKind(err, cierrors.KindConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestApplyDefaults(t *testing.T) {
	req := &Request{Board: "raspberrypi", RepoURL: "https://example.com/os.git"}
	req.ApplyDefaults()

	if req.DownloadRoot != DefaultDownloadRoot {
		t.Errorf("expected default download root, got %q", req.DownloadRoot)
	}
	if req.CCacheRoot != DefaultCCacheRoot {
		t.Errorf("expected default ccache root, got %q", req.CCacheRoot)
	}
	if req.OutputRoot != DefaultOutputRoot {
		t.Errorf("expected default output root, got %q", req.OutputRoot)
	}
	if req.Driver == "" {
		t.Error("expected a default driver")
	}
}
