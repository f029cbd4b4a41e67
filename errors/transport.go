package errors

import (
	"net/http"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// MapToGRPCError is only called at the gRPC edge.
// The error message keeps the sentinel text so clients can match on it.
func MapToGRPCError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case IsAuth(err):
		return status.Error(codes.Unauthenticated, err.Error())
	case IsValidation(err):
		return status.Error(codes.InvalidArgument, err.Error())
	case KindOf(err) == KindStoreUnavailable:
		return status.Error(codes.Unavailable, err.Error())
	case KindOf(err) == KindSessionClosed:
		return status.Error(codes.Canceled, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// HTTPStatus gives the response status for an error returned by the chat service.
func HTTPStatus(err error) int {
	switch {
	case IsAuth(err):
		return http.StatusUnauthorized
	case IsValidation(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
