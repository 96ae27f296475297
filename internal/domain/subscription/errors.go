package subscription

import "errors"

// Subscription domain errors
var (
	ErrSubscriptionNotFound = errors.New("push subscription not found")
	ErrInvalidSubscription  = errors.New("invalid push subscription")
)
