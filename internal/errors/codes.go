package errors

import (
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ErrorCode represents internal error codes for cluster operations
type ErrorCode int

const (
	// Success
	ErrCodeOK ErrorCode = 0

	// Client errors (4xx equivalent)
	ErrCodeInvalidArgument  ErrorCode = 1000
	ErrCodeNodeNotFound     ErrorCode = 1001
	ErrCodeNodeExists       ErrorCode = 1002
	ErrCodeKeySpaceNotFound ErrorCode = 1003
	ErrCodeKeySpaceExists   ErrorCode = 1004
	ErrCodeMoveNotFound     ErrorCode = 1005
	ErrCodeBadMagic         ErrorCode = 1006
	ErrCodeBadVersion       ErrorCode = 1007
	ErrCodeTruncatedData    ErrorCode = 1008

	// Server errors (5xx equivalent)
	ErrCodeInternal       ErrorCode = 2000
	ErrCodeNoNodes        ErrorCode = 2001
	ErrCodeQuorumFailed   ErrorCode = 2002
	ErrCodeInvalidState   ErrorCode = 2003
	ErrCodeNotImplemented ErrorCode = 2004
)

// ClusterError represents a structured error with code and context
type ClusterError struct {
	Code    ErrorCode
	Message string
	Details map[string]interface{}
	Cause   error
}

// Error implements the error interface
func (e *ClusterError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying error
func (e *ClusterError) Unwrap() error {
	return e.Cause
}

// ToGRPCStatus converts ClusterError to gRPC status
func (e *ClusterError) ToGRPCStatus() *status.Status {
	return status.New(e.toGRPCCode(), e.Error())
}

// toGRPCCode maps internal error codes to gRPC codes
func (e *ClusterError) toGRPCCode() codes.Code {
	switch e.Code {
	case ErrCodeOK:
		return codes.OK
	case ErrCodeInvalidArgument, ErrCodeBadMagic, ErrCodeBadVersion, ErrCodeTruncatedData:
		return codes.InvalidArgument
	case ErrCodeNodeNotFound, ErrCodeKeySpaceNotFound, ErrCodeMoveNotFound:
		return codes.NotFound
	case ErrCodeNodeExists, ErrCodeKeySpaceExists:
		return codes.AlreadyExists
	case ErrCodeNoNodes, ErrCodeQuorumFailed:
		return codes.Unavailable
	case ErrCodeInvalidState:
		return codes.FailedPrecondition
	case ErrCodeNotImplemented:
		return codes.Unimplemented
	default:
		return codes.Internal
	}
}

// NewClusterError creates a new ClusterError
func NewClusterError(code ErrorCode, message string, cause error) *ClusterError {
	return &ClusterError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
		Cause:   cause,
	}
}

// WithDetail adds a detail to the error
func (e *ClusterError) WithDetail(key string, value interface{}) *ClusterError {
	e.Details[key] = value
	return e
}

// Convenience constructors for common errors

func InvalidArgument(message string, cause error) *ClusterError {
	return NewClusterError(ErrCodeInvalidArgument, message, cause)
}

func NodeNotFound(nodeID uint64) *ClusterError {
	return NewClusterError(ErrCodeNodeNotFound, fmt.Sprintf("node not found: %d", nodeID), nil).
		WithDetail("node_id", nodeID)
}

func NodeExists(nodeID uint64) *ClusterError {
	return NewClusterError(ErrCodeNodeExists, fmt.Sprintf("node already exists: %d", nodeID), nil).
		WithDetail("node_id", nodeID)
}

func KeySpaceNotFound(name string) *ClusterError {
	return NewClusterError(ErrCodeKeySpaceNotFound, fmt.Sprintf("keyspace not found: %s", name), nil).
		WithDetail("keyspace", name)
}

func KeySpaceExists(name string) *ClusterError {
	return NewClusterError(ErrCodeKeySpaceExists, fmt.Sprintf("keyspace already exists: %s", name), nil).
		WithDetail("keyspace", name)
}

func MoveNotFound(index int) *ClusterError {
	return NewClusterError(ErrCodeMoveNotFound, fmt.Sprintf("rebalance move out of range: %d", index), nil).
		WithDetail("move_index", index)
}

func NoNodes() *ClusterError {
	return NewClusterError(ErrCodeNoNodes, "no healthy nodes available", nil)
}

func QuorumFailed(healthy, required int) *ClusterError {
	return NewClusterError(ErrCodeQuorumFailed,
		fmt.Sprintf("quorum not achievable: %d healthy, %d required", healthy, required), nil).
		WithDetail("healthy", healthy).
		WithDetail("required", required)
}

func InvalidState(message string) *ClusterError {
	return NewClusterError(ErrCodeInvalidState, message, nil)
}

func BadMagic(got []byte) *ClusterError {
	return NewClusterError(ErrCodeBadMagic, fmt.Sprintf("bad snapshot magic: %q", got), nil)
}

func BadVersion(got, want uint32) *ClusterError {
	return NewClusterError(ErrCodeBadVersion,
		fmt.Sprintf("unsupported snapshot version %d (want %d)", got, want), nil).
		WithDetail("got", got).
		WithDetail("want", want)
}

func TruncatedData(message string) *ClusterError {
	return NewClusterError(ErrCodeTruncatedData, message, nil)
}

func NotImplemented(op string) *ClusterError {
	return NewClusterError(ErrCodeNotImplemented, fmt.Sprintf("%s is not implemented", op), nil).
		WithDetail("operation", op)
}

func InternalError(message string, cause error) *ClusterError {
	return NewClusterError(ErrCodeInternal, message, cause)
}

// IsClusterError checks if an error is a ClusterError
func IsClusterError(err error) bool {
	_, ok := err.(*ClusterError)
	return ok
}

// GetCode extracts the error code from an error
func GetCode(err error) ErrorCode {
	if ce, ok := err.(*ClusterError); ok {
		return ce.Code
	}
	return ErrCodeInternal
}
