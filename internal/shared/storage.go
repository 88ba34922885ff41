package shared

import "errors"

var (
	ErrStorageNotFound  = errors.New("not found")
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrUnknownAction    = errors.New("unknown action")
	ErrMalformedMessage = errors.New("malformed message")
)
