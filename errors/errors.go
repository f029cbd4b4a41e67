package errors

import (
	stderrors "errors"
	"fmt"
)

var (
	ErrMissingToken     = fmt.Errorf("authorization token is missing")
	ErrInvalidToken     = fmt.Errorf("invalid or expired token")
	ErrUnknownChannel   = fmt.Errorf("unknown channel")
	ErrContentInvalid   = fmt.Errorf("invalid message content")
	ErrStoreUnavailable = fmt.Errorf("message store unavailable")
	ErrDeliveryDropped  = fmt.Errorf("live delivery dropped")
	ErrWorkerPanic      = fmt.Errorf("worker panic")
	ErrSessionClosed    = fmt.Errorf("session closed")
	ErrInvalidRequest   = fmt.Errorf("invalid request")
)

// Kind is the stable machine-readable name of an error, exposed to clients.
type Kind string

const (
	KindAuthMissing      Kind = "auth.missing"
	KindAuthInvalid      Kind = "auth.invalid"
	KindUnknownChannel   Kind = "validation.unknown_channel"
	KindContentInvalid   Kind = "validation.content_invalid"
	KindStoreUnavailable Kind = "store.unavailable"
	KindDeliveryDropped  Kind = "delivery.dropped"
	KindSessionClosed    Kind = "session.closed"
	KindInvalidRequest   Kind = "validation.invalid_request"
	KindInternal         Kind = "internal"
)

var kinds = []struct {
	err  error
	kind Kind
}{
	{ErrMissingToken, KindAuthMissing},
	{ErrInvalidToken, KindAuthInvalid},
	{ErrUnknownChannel, KindUnknownChannel},
	{ErrContentInvalid, KindContentInvalid},
	{ErrStoreUnavailable, KindStoreUnavailable},
	{ErrDeliveryDropped, KindDeliveryDropped},
	{ErrSessionClosed, KindSessionClosed},
	{ErrInvalidRequest, KindInvalidRequest},
}

func KindOf(err error) Kind {
	for _, k := range kinds {
		if stderrors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindInternal
}

func IsAuth(err error) bool {
	return stderrors.Is(err, ErrMissingToken) || stderrors.Is(err, ErrInvalidToken)
}

func IsValidation(err error) bool {
	return stderrors.Is(err, ErrUnknownChannel) || stderrors.Is(err, ErrContentInvalid) ||
		stderrors.Is(err, ErrInvalidRequest)
}
