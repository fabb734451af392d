package core

import "errors"

// Error codes for domain errors. These are wire-visible: clients receive them
// in call:error payloads and may branch on them.
const (
	ErrCodeCallNotFound          = "call_not_found"
	ErrCodeCallEnded             = "call_ended"
	ErrCodeParticipantNotFound   = "participant_not_found"
	ErrCodeRecipientNotConnected = "recipient_not_connected"
	ErrCodeBadRequest            = "bad_request"
	ErrCodeUnauthorized          = "unauthorized"
)

var (
	ErrCallNotFound          = errors.New("call not found")
	ErrAlreadyEnded          = errors.New("call has ended")
	ErrParticipantNotFound   = errors.New("participant not found")
	ErrRecipientNotConnected = errors.New("recipient not connected")
	ErrBadRequest            = errors.New("bad request")
	ErrUnauthorized          = errors.New("caller identity is required")
)

// CoreError wraps a code and human-readable message.
type CoreError struct {
	Code    string
	Message string
}

func (e *CoreError) Error() string {
	return e.Message
}

func coreError(code, msg string) *CoreError {
	return &CoreError{Code: code, Message: msg}
}

// coreErrorFrom maps a domain error to its wire-visible form.
func coreErrorFrom(err error) *CoreError {
	switch {
	case errors.Is(err, ErrCallNotFound):
		return coreError(ErrCodeCallNotFound, err.Error())
	case errors.Is(err, ErrAlreadyEnded):
		return coreError(ErrCodeCallEnded, err.Error())
	case errors.Is(err, ErrParticipantNotFound):
		return coreError(ErrCodeParticipantNotFound, err.Error())
	case errors.Is(err, ErrRecipientNotConnected):
		return coreError(ErrCodeRecipientNotConnected, err.Error())
	case errors.Is(err, ErrUnauthorized):
		return coreError(ErrCodeUnauthorized, err.Error())
	default:
		return coreError(ErrCodeBadRequest, err.Error())
	}
}
