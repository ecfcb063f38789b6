package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/davicafu/callflow/internal/callevent/domain"
	"github.com/davicafu/callflow/tests/mocks"
)

func validRaw() RawCallEventSubmission {
	return RawCallEventSubmission{
		"call_id":    "a1f0c2d4",
		"from":       "+34600000001",
		"to":         "+34600000002",
		"event_type": "call_started",
		"timestamp":  "2025-06-01 10:30",
	}
}

func newTestValidator(repo domain.CallEventRepository, cache *mocks.DummyCache) *Validator {
	if cache == nil {
		return NewValidator(repo, nil, time.Second, zap.NewNop())
	}
	return NewValidator(repo, cache, time.Second, zap.NewNop())
}

func TestValidate_OK(t *testing.T) {
	v := newTestValidator(mocks.NewInMemoryCallEventRepo(), nil)

	cmd, verrs := v.Validate(context.Background(), validRaw())

	assert.False(t, verrs.HasErrors())
	assert.Equal(t, "a1f0c2d4", cmd.CallID)
	assert.Equal(t, domain.CallStarted, cmd.EventType)
	assert.Nil(t, cmd.Duration)
}

func TestValidate_MissingFieldsReportedTogether(t *testing.T) {
	v := newTestValidator(mocks.NewInMemoryCallEventRepo(), nil)

	cmd, verrs := v.Validate(context.Background(), RawCallEventSubmission{})

	assert.Nil(t, cmd)
	assert.True(t, verrs.HasErrors())
	for _, field := range []string{"call_id", "from", "to", "event_type", "timestamp"} {
		assert.Contains(t, verrs, field)
	}
}

func TestValidate_UnknownEventType(t *testing.T) {
	v := newTestValidator(mocks.NewInMemoryCallEventRepo(), nil)

	raw := validRaw()
	raw["event_type"] = "call_exploded"

	cmd, verrs := v.Validate(context.Background(), raw)

	assert.Nil(t, cmd)
	assert.Contains(t, verrs["event_type"][0], "call_exploded")
}

func TestValidate_TimestampFormat(t *testing.T) {
	v := newTestValidator(mocks.NewInMemoryCallEventRepo(), nil)

	raw := validRaw()
	raw["timestamp"] = "2025-06-01T10:30:00Z"

	cmd, verrs := v.Validate(context.Background(), raw)

	assert.Nil(t, cmd)
	assert.Contains(t, verrs, "timestamp")
}

func TestValidate_EndedRequiresDuration(t *testing.T) {
	v := newTestValidator(mocks.NewInMemoryCallEventRepo(), nil)

	raw := validRaw()
	raw["event_type"] = "call_ended"

	cmd, verrs := v.Validate(context.Background(), raw)

	assert.Nil(t, cmd)
	assert.Contains(t, verrs["duration"][0], "is required for call_ended events")
}

func TestValidate_EndedNullDurationCountsAsMissing(t *testing.T) {
	v := newTestValidator(mocks.NewInMemoryCallEventRepo(), nil)

	raw := validRaw()
	raw["event_type"] = "call_ended"
	raw["duration"] = nil

	cmd, verrs := v.Validate(context.Background(), raw)

	assert.Nil(t, cmd)
	assert.Contains(t, verrs, "duration")
}

func TestValidate_EndedZeroDurationIsValid(t *testing.T) {
	v := newTestValidator(mocks.NewInMemoryCallEventRepo(), nil)

	raw := validRaw()
	raw["event_type"] = "call_ended"
	raw["duration"] = float64(0) // encoding/json entrega números como float64

	cmd, verrs := v.Validate(context.Background(), raw)

	assert.False(t, verrs.HasErrors())
	if assert.NotNil(t, cmd.Duration) {
		assert.Equal(t, 0, *cmd.Duration)
	}
}

func TestValidate_EndedNegativeDuration(t *testing.T) {
	v := newTestValidator(mocks.NewInMemoryCallEventRepo(), nil)

	raw := validRaw()
	raw["event_type"] = "call_ended"
	raw["duration"] = float64(-5)

	cmd, verrs := v.Validate(context.Background(), raw)

	assert.Nil(t, cmd)
	assert.Contains(t, verrs["duration"][0], "greater than or equal to 0")
}

func TestValidate_EndedFractionalDuration(t *testing.T) {
	v := newTestValidator(mocks.NewInMemoryCallEventRepo(), nil)

	raw := validRaw()
	raw["event_type"] = "call_ended"
	raw["duration"] = 12.5

	cmd, verrs := v.Validate(context.Background(), raw)

	assert.Nil(t, cmd)
	assert.Contains(t, verrs["duration"][0], "must be an integer")
}

func TestValidate_DurationIgnoredForOtherTypes(t *testing.T) {
	v := newTestValidator(mocks.NewInMemoryCallEventRepo(), nil)

	raw := validRaw()
	raw["duration"] = float64(30)

	cmd, verrs := v.Validate(context.Background(), raw)

	assert.False(t, verrs.HasErrors())
	assert.Nil(t, cmd.Duration)
}

func TestValidate_DuplicateCallIDInStore(t *testing.T) {
	repo := mocks.NewInMemoryCallEventRepo()
	_ = repo.Create(context.Background(), &domain.CallEvent{CallID: "a1f0c2d4", EventType: domain.CallStarted})
	v := newTestValidator(repo, nil)

	cmd, verrs := v.Validate(context.Background(), validRaw())

	assert.Nil(t, cmd)
	assert.Contains(t, verrs["call_id"][0], "has already been taken")
}

func TestValidate_DuplicateCallIDInCache(t *testing.T) {
	cache := mocks.NewDummyCache()
	_ = cache.Set(context.Background(), domain.SeenCacheKey("a1f0c2d4"), true, 0)
	v := newTestValidator(mocks.NewInMemoryCallEventRepo(), cache)

	cmd, verrs := v.Validate(context.Background(), validRaw())

	assert.Nil(t, cmd)
	assert.Contains(t, verrs["call_id"][0], "has already been taken")
}

// Con el pre-chequeo degradado la admisión sigue adelante: el árbitro
// de unicidad es la restricción del almacén, no esta lectura.
func TestValidate_PrecheckUnavailableDoesNotReject(t *testing.T) {
	repo := mocks.NewInMemoryCallEventRepo()
	repo.ExistsErr = errors.New("store down")
	v := newTestValidator(repo, nil)

	cmd, verrs := v.Validate(context.Background(), validRaw())

	assert.False(t, verrs.HasErrors())
	assert.NotNil(t, cmd)
}

func TestValidate_NonStringField(t *testing.T) {
	v := newTestValidator(mocks.NewInMemoryCallEventRepo(), nil)

	raw := validRaw()
	raw["from"] = float64(42)

	cmd, verrs := v.Validate(context.Background(), raw)

	assert.Nil(t, cmd)
	assert.Contains(t, verrs["from"][0], "must be a string")
}
