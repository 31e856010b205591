package daemon

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTrigger(t *testing.T) {
	event, err := parseTrigger([]byte(`{"type":"nightly","branch":"master"}`))
	require.NoError(t, err)
	assert.Equal(t, "nightly", event.Type)
	assert.Equal(t, "master", event.Branch)

	event, err = parseTrigger([]byte(`{"type":"tag","tag":"v2.0"}`))
	require.NoError(t, err)
	assert.Equal(t, "v2.0", event.Tag)
}

func TestParseTriggerRejectsInvalid(t *testing.T) {
	cases := []struct {
		name    string
		payload string
	}{
		{"malformed json", `{"type":`},
		{"unknown type", `{"type":"release"}`},
		{"nightly without branch", `{"type":"nightly"}`},
		{"tag without tag", `{"type":"tag"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := parseTrigger([]byte(tc.payload))
			assert.Error(t, err)
		})
	}
}

func TestJobsForTrigger(t *testing.T) {
	boards := []string{"raspberrypi", "raspberrypi2"}

	jobs := jobsForTrigger(TriggerEvent{Type: "nightly", Branch: "master"}, boards)
	require.Len(t, jobs, 2)
	for i, job := range jobs {
		assert.Equal(t, boards[i], job.Board)
		assert.Equal(t, JobTypeNightly, job.Type)
		assert.Equal(t, "master", job.Branch)
		assert.NotEmpty(t, job.ID)
	}
	assert.NotEqual(t, jobs[0].ID, jobs[1].ID)

	jobs = jobsForTrigger(TriggerEvent{Type: "tag", Tag: "v1.2"}, boards)
	require.Len(t, jobs, 2)
	for _, job := range jobs {
		assert.Equal(t, JobTypeTag, job.Type)
		assert.Equal(t, "v1.2", job.Tag)
		assert.Equal(t, "v1.2", job.Version)
	}
}
