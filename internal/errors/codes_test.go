package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
)

func TestClusterErrorFormatting(t *testing.T) {
	base := fmt.Errorf("disk full")
	err := InternalError("snapshot write failed", base)
	assert.Equal(t, "snapshot write failed: disk full", err.Error())
	assert.Equal(t, base, err.Unwrap())

	plain := NodeNotFound(42)
	assert.Equal(t, "node not found: 42", plain.Error())
	assert.Equal(t, uint64(42), plain.Details["node_id"])
}

func TestGRPCCodeMapping(t *testing.T) {
	tests := []struct {
		err  *ClusterError
		want codes.Code
	}{
		{InvalidArgument("bad", nil), codes.InvalidArgument},
		{NodeNotFound(1), codes.NotFound},
		{NodeExists(1), codes.AlreadyExists},
		{KeySpaceNotFound("ks"), codes.NotFound},
		{KeySpaceExists("ks"), codes.AlreadyExists},
		{NoNodes(), codes.Unavailable},
		{QuorumFailed(1, 2), codes.Unavailable},
		{InvalidState("bad state"), codes.FailedPrecondition},
		{BadMagic([]byte("XXXX")), codes.InvalidArgument},
		{BadVersion(9, 2), codes.InvalidArgument},
		{TruncatedData("short"), codes.InvalidArgument},
		{NotImplemented("ApplyDelta"), codes.Unimplemented},
		{InternalError("boom", nil), codes.Internal},
	}
	for _, tt := range tests {
		t.Run(tt.err.Message, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.ToGRPCStatus().Code())
		})
	}
}

func TestGetCode(t *testing.T) {
	assert.Equal(t, ErrCodeQuorumFailed, GetCode(QuorumFailed(1, 3)))
	assert.Equal(t, ErrCodeInternal, GetCode(fmt.Errorf("opaque")))
	assert.True(t, IsClusterError(NoNodes()))
	assert.False(t, IsClusterError(fmt.Errorf("opaque")))
}
