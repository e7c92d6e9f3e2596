package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppErrorMessage(t *testing.T) {
	assert.Equal(t, "[SYNC_003] no profile identifier", ErrNoProfileID.Error())

	err := New("MED_001", "invalid medication time", fmt.Errorf(`"25:00" has invalid hour`))
	assert.Equal(t, `[MED_001] invalid medication time: "25:00" has invalid hour`, err.Error())
}

func TestIsMatchesByCode(t *testing.T) {
	cause := fmt.Errorf("dial tcp: connection refused")
	err := WrapAs(ErrRemoteUnavailable, cause)

	assert.True(t, stderrors.Is(err, ErrRemoteUnavailable))
	assert.False(t, stderrors.Is(err, ErrCircuitOpen))
	assert.True(t, stderrors.Is(err, cause), "the cause stays reachable")

	viaWrap := Wrap(cause, ErrBadRequest.Code, "cannot snooze")
	assert.True(t, stderrors.Is(viaWrap, ErrBadRequest))
	assert.Equal(t, "cannot snooze", viaWrap.Message)
}

func TestGetCodeThroughWrapping(t *testing.T) {
	inner := WrapAs(ErrStoreWrite, fmt.Errorf("disk full"))
	outer := fmt.Errorf("persist profile: %w", inner)

	assert.Equal(t, "STORE_002", GetCode(outer))
	assert.True(t, IsAppError(outer))

	assert.Equal(t, "UNKNOWN", GetCode(fmt.Errorf("plain")))
	assert.False(t, IsAppError(fmt.Errorf("plain")))
	assert.False(t, IsAppError(nil))
}

func TestWrapAsKeepsSentinelUntouched(t *testing.T) {
	err := WrapAs(ErrHydration, fmt.Errorf("timeout"))
	require.NotSame(t, ErrHydration, err)
	assert.Nil(t, ErrHydration.Cause)
	assert.Equal(t, ErrHydration.Message, err.Message)
}

func TestSentinelCodesAreUnique(t *testing.T) {
	sentinels := []*AppError{
		ErrConfigNotFound, ErrConfigInvalid,
		ErrRemoteUnavailable, ErrProbeTimeout, ErrCircuitOpen,
		ErrHydration, ErrSaveFailed, ErrNoProfileID, ErrRemoteRequest,
		ErrStoreRead, ErrStoreWrite,
		ErrInvalidTime, ErrDuplicateMedication,
		ErrUnauthorized, ErrForbidden,
		ErrNotFound, ErrBadRequest, ErrInternal,
	}
	seen := make(map[string]bool)
	for _, s := range sentinels {
		assert.False(t, seen[s.Code], "duplicate code %s", s.Code)
		seen[s.Code] = true
	}
}
