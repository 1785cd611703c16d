package service

import "errors"

var (
	ErrUserNotFound         = errors.New("user not found")
	ErrRoomNotFound         = errors.New("room not found")
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrRegistrationFailed   = errors.New("registration failed: username already exists")
	ErrRoomExists           = errors.New("room name already exists")
	ErrIncompleteRequest    = errors.New("incomplete request: missing required fields")
	ErrInvalidUpload        = errors.New("invalid upload: file type not allowed")
	ErrInternalServer       = errors.New("internal server error")
)
