package maintenance

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubJob struct {
	name string
	runs int
	err  error
}

func (j *stubJob) Name() string { return j.name }

func (j *stubJob) Run() error {
	j.runs++
	return j.err
}

func TestRunNowExecutesJobImmediately(t *testing.T) {
	s := New(zerolog.Nop())

	job := &stubJob{name: "stub"}
	require.NoError(t, s.RunNow(job))
	assert.Equal(t, 1, job.runs)
}

func TestRunNowPropagatesJobError(t *testing.T) {
	s := New(zerolog.Nop())

	job := &stubJob{name: "stub", err: errors.New("purge failed")}
	assert.Error(t, s.RunNow(job))
	assert.Equal(t, 1, job.runs)
}

func TestAddJobRejectsBadSchedule(t *testing.T) {
	s := New(zerolog.Nop())

	assert.Error(t, s.AddJob("not a cron spec", &stubJob{name: "stub"}))
	require.NoError(t, s.AddJob("@hourly", &stubJob{name: "stub"}))
}
