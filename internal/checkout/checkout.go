// Package checkout resolves the single reference a build run checks out
// from the competing branch/pull-request/tag/commit selectors.
package checkout

import "strings"

// Kind identifies what sort of reference was selected.
type Kind string

const (
	KindBranch      Kind = "branch"
	KindPullRequest Kind = "pull-request"
	KindTag         Kind = "tag"
	KindCommit      Kind = "commit"
)

// Resolved is the single checkout target derived from a build request.
// For a pull request, Ref is the synthetic local branch name "pr<id>"
// and PullRequest holds the original id for the fetch step.
type Resolved struct {
	Ref         string
	Kind        Kind
	PullRequest string
}

// Resolve picks exactly one reference from the four optional selectors.
// Priority is fixed and total: branch > pull-request > tag > commit.
// Lower-priority selectors are ignored even when set. The second return
// is false when no selector is present, meaning the clone's default
// branch stands.
func Resolve(branch, pullRequest, tag, commit string) (Resolved, bool) {
	switch {
	case branch != "":
		return Resolved{Ref: branch, Kind: KindBranch}, true
	case pullRequest != "":
		return Resolved{Ref: "pr" + pullRequest, Kind: KindPullRequest, PullRequest: pullRequest}, true
	case tag != "":
		return Resolved{Ref: tag, Kind: KindTag}, true
	case commit != "":
		return Resolved{Ref: commit, Kind: KindCommit}, true
	}
	return Resolved{}, false
}

// InjectCredentials rewrites an http(s) repository URL to embed inline
// credentials immediately after the scheme separator. URLs with other
// schemes are returned unchanged, as is any URL when credentials are
// empty. Runs once, before acquisition.
func InjectCredentials(repoURL, credentials string) string {
	if credentials == "" {
		return repoURL
	}
	for _, scheme := range []string{"https://", "http://"} {
		if strings.HasPrefix(repoURL, scheme) {
			return scheme + credentials + "@" + strings.TrimPrefix(repoURL, scheme)
		}
	}
	return repoURL
}
