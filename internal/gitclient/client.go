// Package gitclient performs the source acquisition step: clone, the
// pull-request head fetch, and checkout of the resolved reference.
package gitclient

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/go-git/go-git/v5"
	gitcfg "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/boardci/boardci/internal/checkout"
	"github.com/boardci/boardci/internal/logfields"
)

// Client handles Git operations against a single checkout directory.
type Client struct {
	dir string
}

// NewClient creates a client operating on the given checkout directory.
func NewClient(dir string) *Client { return &Client{dir: dir} }

// Clone clones the repository into the checkout directory. Clone
// overrides ("--depth N", "--single-branch", "--branch NAME") are
// applied when present; unknown overrides are logged and skipped.
func (c *Client) Clone(url, cloneArgs string) error {
	slog.Debug("Cloning repository", logfields.URL(url), logfields.Path(c.dir))

	opts := &git.CloneOptions{URL: url, Progress: os.Stdout, Tags: git.AllTags}
	applyCloneArgs(opts, cloneArgs)

	if _, err := git.PlainClone(c.dir, false, opts); err != nil {
		return fmt.Errorf("failed to clone repository %s: %w", url, err)
	}
	slog.Info("Repository cloned", logfields.URL(url), logfields.Path(c.dir))
	return nil
}

// FetchPullRequestHead fetches the remote's pull-request head ref into
// the synthetic local branch pr<id>, so the generic checkout step can
// treat it like any other branch.
func (c *Client) FetchPullRequestHead(id string) error {
	repo, err := git.PlainOpen(c.dir)
	if err != nil {
		return fmt.Errorf("failed to open repository: %w", err)
	}

	spec := gitcfg.RefSpec(fmt.Sprintf("+refs/pull/%s/head:refs/heads/pr%s", id, id))
	slog.Debug("Fetching pull request head", slog.String("refspec", string(spec)))

	err = repo.Fetch(&git.FetchOptions{
		RemoteName: "origin",
		RefSpecs:   []gitcfg.RefSpec{spec},
		Tags:       git.NoTags,
		Progress:   os.Stdout,
	})
	if err != nil && err != git.NoErrAlreadyUpToDate {
		return fmt.Errorf("failed to fetch pull request %s: %w", id, err)
	}
	return nil
}

// Checkout checks out the resolved reference. Branches (including the
// synthetic pr<id> branch) become local branches; tags and commits are
// checked out detached.
func (c *Client) Checkout(res checkout.Resolved) error {
	repo, err := git.PlainOpen(c.dir)
	if err != nil {
		return fmt.Errorf("failed to open repository: %w", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("failed to get worktree: %w", err)
	}

	slog.Debug("Checking out", logfields.Ref(res.Ref), logfields.RefKind(string(res.Kind)))

	switch res.Kind {
	case checkout.KindBranch:
		return c.checkoutBranch(repo, wt, res.Ref)
	case checkout.KindPullRequest:
		if err := wt.Checkout(&git.CheckoutOptions{Branch: plumbing.NewBranchReferenceName(res.Ref)}); err != nil {
			return fmt.Errorf("failed to checkout %s: %w", res.Ref, err)
		}
		return nil
	case checkout.KindTag:
		rev, err := repo.ResolveRevision(plumbing.Revision("refs/tags/" + res.Ref))
		if err != nil {
			return fmt.Errorf("failed to resolve tag %s: %w", res.Ref, err)
		}
		if err := wt.Checkout(&git.CheckoutOptions{Hash: *rev}); err != nil {
			return fmt.Errorf("failed to checkout tag %s: %w", res.Ref, err)
		}
		return nil
	case checkout.KindCommit:
		if err := wt.Checkout(&git.CheckoutOptions{Hash: plumbing.NewHash(res.Ref)}); err != nil {
			return fmt.Errorf("failed to checkout commit %s: %w", res.Ref, err)
		}
		return nil
	}
	return fmt.Errorf("unknown reference kind %q", res.Kind)
}

// checkoutBranch checks out a named branch, creating the local branch
// from origin when the clone only materialized the default branch.
func (c *Client) checkoutBranch(repo *git.Repository, wt *git.Worktree, name string) error {
	local := plumbing.NewBranchReferenceName(name)
	if _, err := repo.Reference(local, true); err == nil {
		if err := wt.Checkout(&git.CheckoutOptions{Branch: local}); err != nil {
			return fmt.Errorf("failed to checkout branch %s: %w", name, err)
		}
		return nil
	}

	rev, err := repo.ResolveRevision(plumbing.Revision("refs/remotes/origin/" + name))
	if err != nil {
		return fmt.Errorf("failed to resolve branch %s: %w", name, err)
	}
	if err := wt.Checkout(&git.CheckoutOptions{Hash: *rev, Branch: local, Create: true}); err != nil {
		return fmt.Errorf("failed to checkout branch %s: %w", name, err)
	}
	return nil
}

// applyCloneArgs maps clone-argument overrides onto go-git options.
func applyCloneArgs(opts *git.CloneOptions, cloneArgs string) {
	fields := strings.Fields(cloneArgs)
	for i := 0; i < len(fields); i++ {
		switch fields[i] {
		case "--depth":
			if i+1 < len(fields) {
				if depth, err := strconv.Atoi(fields[i+1]); err == nil {
					opts.Depth = depth
				}
				i++
			}
		case "--single-branch":
			opts.SingleBranch = true
		case "--branch":
			if i+1 < len(fields) {
				opts.ReferenceName = plumbing.NewBranchReferenceName(fields[i+1])
				i++
			}
		case "--no-tags":
			opts.Tags = git.NoTags
		default:
			slog.Warn("Ignoring unsupported clone argument", slog.String("arg", fields[i]))
		}
	}
}
