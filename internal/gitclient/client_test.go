package gitclient

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/boardci/boardci/internal/checkout"
)

// initUpstream creates a local repository with one commit on master, a
// dev branch and a v1 tag, and returns its path plus the commit hash.
func initUpstream(t *testing.T) (string, plumbing.Hash) {
	t.Helper()

	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	if err != nil {
		t.Fatalf("PlainInit failed: %v", err)
	}

	wt, err := repo.Worktree()
	if err != nil {
		t.Fatalf("Worktree failed: %v", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "README"), []byte("embedded os\n"), 0o600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if _, err := wt.Add("README"); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	sig := &object.Signature{Name: "ci", Email: "ci@example.com", When: time.Now()}
	hash, err := wt.Commit("initial", &git.CommitOptions{Author: sig})
	if err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	if err := repo.Storer.SetReference(plumbing.NewHashReference(plumbing.NewBranchReferenceName("dev"), hash)); err != nil {
		t.Fatalf("branch creation failed: %v", err)
	}
	if _, err := repo.CreateTag("v1", hash, nil); err != nil {
		t.Fatalf("tag creation failed: %v", err)
	}

	return dir, hash
}

func TestCloneAndCheckoutBranch(t *testing.T) {
	upstream, _ := initUpstream(t)

	dest := filepath.Join(t.TempDir(), "checkout")
	c := NewClient(dest)
	if err := c.Clone(upstream, ""); err != nil {
		t.Fatalf("Clone failed: %v", err)
	}

	res, ok := checkout.Resolve("dev", "", "", "")
	if !ok {
		t.Fatal("expected resolved checkout")
	}
	if err := c.Checkout(res); err != nil {
		t.Fatalf("Checkout failed: %v", err)
	}

	repo, err := git.PlainOpen(dest)
	if err != nil {
		t.Fatalf("PlainOpen failed: %v", err)
	}
	head, err := repo.Head()
	if err != nil {
		t.Fatalf("Head failed: %v", err)
	}
	if head.Name() != plumbing.NewBranchReferenceName("dev") {
		t.Errorf("expected HEAD on dev, got %s", head.Name())
	}
}

func TestCheckoutTagAndCommit(t *testing.T) {
	upstream, hash := initUpstream(t)

	dest := filepath.Join(t.TempDir(), "checkout")
	c := NewClient(dest)
	if err := c.Clone(upstream, ""); err != nil {
		t.Fatalf("Clone failed: %v", err)
	}

	res, _ := checkout.Resolve("", "", "v1", "")
	if err := c.Checkout(res); err != nil {
		t.Fatalf("tag checkout failed: %v", err)
	}

	res, _ = checkout.Resolve("", "", "", hash.String())
	if err := c.Checkout(res); err != nil {
		t.Fatalf("commit checkout failed: %v", err)
	}

	repo, _ := git.PlainOpen(dest)
	head, err := repo.Head()
	if err != nil {
		t.Fatalf("Head failed: %v", err)
	}
	if head.Hash() != hash {
		t.Errorf("expected detached HEAD at %s, got %s", hash, head.Hash())
	}
}

func TestFetchAndCheckoutPullRequestHead(t *testing.T) {
	upstream, base := initUpstream(t)

	// Add a commit reachable only through the pull-request ref, the way
	// a forge exposes proposed changes.
	repo, err := git.PlainOpen(upstream)
	if err != nil {
		t.Fatalf("PlainOpen failed: %v", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatalf("Worktree failed: %v", err)
	}
	if err := os.WriteFile(filepath.Join(upstream, "feature"), []byte("proposed change\n"), 0o600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if _, err := wt.Add("feature"); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	sig := &object.Signature{Name: "ci", Email: "ci@example.com", When: time.Now()}
	prHash, err := wt.Commit("proposed change", &git.CommitOptions{Author: sig})
	if err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	if err := repo.Storer.SetReference(plumbing.NewHashReference(plumbing.ReferenceName("refs/pull/7/head"), prHash)); err != nil {
		t.Fatalf("pull ref creation failed: %v", err)
	}
	if err := wt.Reset(&git.ResetOptions{Commit: base, Mode: git.HardReset}); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}

	dest := filepath.Join(t.TempDir(), "checkout")
	c := NewClient(dest)
	if err := c.Clone(upstream, ""); err != nil {
		t.Fatalf("Clone failed: %v", err)
	}

	res, ok := checkout.Resolve("", "7", "", "")
	if !ok || res.Kind != checkout.KindPullRequest {
		t.Fatalf("expected pull-request checkout, got %+v", res)
	}
	if err := c.FetchPullRequestHead(res.PullRequest); err != nil {
		t.Fatalf("FetchPullRequestHead failed: %v", err)
	}
	if err := c.Checkout(res); err != nil {
		t.Fatalf("Checkout failed: %v", err)
	}

	clone, err := git.PlainOpen(dest)
	if err != nil {
		t.Fatalf("PlainOpen failed: %v", err)
	}
	head, err := clone.Head()
	if err != nil {
		t.Fatalf("Head failed: %v", err)
	}
	if head.Name() != plumbing.NewBranchReferenceName("pr7") {
		t.Errorf("expected HEAD on pr7, got %s", head.Name())
	}
	if head.Hash() != prHash {
		t.Errorf("expected HEAD at %s, got %s", prHash, head.Hash())
	}
}

func TestCloneMissingRepositoryFails(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "checkout")
	c := NewClient(dest)
	if err := c.Clone(filepath.Join(t.TempDir(), "no-such-repo"), ""); err == nil {
		t.Fatal("expected clone of missing repository to fail")
	}
}

func TestApplyCloneArgs(t *testing.T) {
	opts := &git.CloneOptions{}
	applyCloneArgs(opts, "--depth 1 --single-branch --branch master --no-tags --unknown-flag")

	if opts.Depth != 1 {
		t.Errorf("expected depth 1, got %d", opts.Depth)
	}
	if !opts.SingleBranch {
		t.Error("expected single-branch")
	}
	if opts.ReferenceName != plumbing.NewBranchReferenceName("master") {
		t.Errorf("expected master reference, got %s", opts.ReferenceName)
	}
	if opts.Tags != git.NoTags {
		t.Error("expected no-tags")
	}
}
