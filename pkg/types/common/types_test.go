package common

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestID_Validate(t *testing.T) {
	assert.NoError(t, ID("550e8400-e29b-41d4-a716-446655440000").Validate())

	err := ID("").Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "cannot be empty")

	err = ID("not-a-uuid").Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid ID format")
}

func TestNewID_GeneratesValidUUID(t *testing.T) {
	assert.NoError(t, NewID().Validate())
	assert.NotEqual(t, NewID(), NewID())
}

func TestNewBaseEvent(t *testing.T) {
	before := time.Now().UTC()
	e := NewBaseEvent("biz-1")
	assert.NotEmpty(t, e.EventID())
	assert.Equal(t, "biz-1", e.AggregateID())
	assert.False(t, e.OccurredAt().Before(before))
}

func TestTimeRange(t *testing.T) {
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := from.Add(24 * time.Hour)
	r := TimeRange{From: from, To: to}

	assert.NoError(t, r.Validate())
	assert.True(t, r.Contains(from))
	assert.False(t, r.Contains(to))
	assert.Error(t, TimeRange{From: to, To: from}.Validate())
}
