package notification

import "errors"

// Notification domain errors
var (
	ErrRecordNotFound    = errors.New("notification not found")
	ErrUnauthorized      = errors.New("unauthorized to access this notification")
	ErrInvalidRecordType = errors.New("invalid notification type")
)
