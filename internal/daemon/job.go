package daemon

import (
	"fmt"
	"strings"
	"time"
)

// JobType classifies what triggered a build job.
type JobType string

const (
	JobTypeNightly JobType = "nightly"
	JobTypeTag     JobType = "tag"
)

// Job is one queued build for one board.
type Job struct {
	ID        string
	Board     string
	Type      JobType
	Branch    string
	Tag       string
	Version   string
	CreatedAt time.Time
}

// Key identifies equivalent jobs: a queued job with the same key is
// replaced when a newer one arrives, so a board never builds the same
// trigger twice back to back.
func (j *Job) Key() string {
	identifier := j.Branch
	if j.Type == JobTypeTag {
		identifier = j.Tag
	}
	return fmt.Sprintf("%s/%s/%s", j.Type, identifier, j.Board)
}

func (j *Job) String() string {
	return fmt.Sprintf("build %s (%s)", j.Key(), j.ID)
}

// nightlyVersion renders the nightly version string from the configured
// format, substituting {branch} and {date}.
func nightlyVersion(format, branch string, now time.Time) string {
	s := strings.ReplaceAll(format, "{branch}", branch)
	return strings.ReplaceAll(s, "{date}", now.Format("20060102"))
}
