package backend

import (
	"errors"

	grpccodes "google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/fyrsmithlabs/vectord/internal/schema"
)

// IsTransient checks if an error is transient (should retry).
// Returns true for network timeouts and temporary unavailability.
// Returns false for static mismatches that retrying cannot fix.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if IsFatal(err) {
		return false
	}

	st, ok := status.FromError(err)
	if !ok {
		// Non-gRPC errors (embedded engines, redis) default to transient
		// unless fatal above; a timed-out call counts as a failed call.
		return true
	}

	switch st.Code() {
	case grpccodes.Unavailable, grpccodes.DeadlineExceeded, grpccodes.Aborted, grpccodes.ResourceExhausted:
		return true
	case grpccodes.InvalidArgument, grpccodes.NotFound, grpccodes.PermissionDenied, grpccodes.Unauthenticated:
		return false
	default:
		return true
	}
}

// IsFatal reports whether an error indicates a static mismatch (unsupported
// field type, invalid definition or collection name) that no amount of
// retrying can fix.
func IsFatal(err error) bool {
	return errors.Is(err, schema.ErrUnsupportedFieldType) ||
		errors.Is(err, schema.ErrInvalidDefinition) ||
		errors.Is(err, ErrInvalidCollectionName) ||
		errors.Is(err, ErrUnknownEngine)
}
