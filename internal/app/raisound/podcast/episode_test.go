package podcast

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReportCounts(t *testing.T) {
	r := Report{}
	r.Add(Result{Episode: Episode{Ordinal: 1}, Status: Succeeded})
	r.Add(Result{Episode: Episode{Ordinal: 2}, Status: Skipped})
	r.Add(Result{Episode: Episode{Ordinal: 3}, Status: Failed, Err: errors.New("boom")})
	r.Add(Result{Episode: Episode{Ordinal: 4}, Status: Succeeded})

	succeeded, skipped, failed := r.Counts()
	assert.Equal(t, 2, succeeded)
	assert.Equal(t, 1, skipped)
	assert.Equal(t, 1, failed)
	assert.Equal(t, 3, r.Results[2].Episode.Ordinal)
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "succeeded", Succeeded.String())
	assert.Equal(t, "skipped", Skipped.String())
	assert.Equal(t, "failed", Failed.String())
	assert.Equal(t, "unknown", Status(42).String())
}
