package errorbank

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
)

func TestKindMapping(t *testing.T) {
	cases := []struct {
		err    *AppError
		kind   Kind
		status int
		grpc   codes.Code
	}{
		{InvalidArgument("bad quantity"), KindInvalidArgument, http.StatusBadRequest, codes.InvalidArgument},
		{NotFound("missing order"), KindNotFound, http.StatusNotFound, codes.NotFound},
		{IllegalState("cannot submit"), KindIllegalState, http.StatusUnprocessableEntity, codes.FailedPrecondition},
		{Conflict("stale version"), KindConflict, http.StatusConflict, codes.Aborted},
		{Internal("boom"), KindInternal, http.StatusInternalServerError, codes.Internal},
	}

	for _, tc := range cases {
		require.Equal(t, tc.kind, tc.err.Kind())
		require.Equal(t, tc.status, tc.err.StatusCode())
		require.Equal(t, tc.grpc, tc.err.GRPCCode())
	}
}

func TestWithCauseUnwraps(t *testing.T) {
	cause := errors.New("connection reset")
	err := Internal("repository error", WithCause(cause))

	require.ErrorIs(t, err, cause)
	require.Contains(t, err.Error(), "connection reset")
}

func TestIsKind(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", Conflict("stale version"))

	require.True(t, IsKind(err, KindConflict))
	require.False(t, IsKind(err, KindNotFound))
	require.False(t, IsKind(errors.New("plain"), KindConflict))
}

func TestFromPassesThroughAndWraps(t *testing.T) {
	appErr := NotFound("gone")
	require.Same(t, appErr, From(appErr))

	wrapped := From(errors.New("driver failure"))
	require.Equal(t, KindInternal, wrapped.Kind())
	require.ErrorContains(t, wrapped, "driver failure")

	require.Nil(t, From(nil))
}

func TestDetails(t *testing.T) {
	err := Conflict("stale version",
		WithDetail("expected", 3),
		WithDetails(map[string]any{"actual": 4}),
	)

	require.Equal(t, 3, err.Details()["expected"])
	require.Equal(t, 4, err.Details()["actual"])
}
