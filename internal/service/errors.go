package service

import "errors"

var (
	ErrForbidden          = errors.New("not enough permissions")
	ErrInvalidCredentials = errors.New("incorrect username or password")
	ErrInactiveUser       = errors.New("inactive user")
)
