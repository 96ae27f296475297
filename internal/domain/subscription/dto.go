package subscription

// ============= Request DTOs =============

// SubscribeRequest carries the serialized PushSubscription a client obtained
// from its push service.
type SubscribeRequest struct {
	Endpoint string `json:"endpoint"`
	Keys     Keys   `json:"keys"`
}

// UnsubscribeRequest identifies the endpoint being cancelled.
type UnsubscribeRequest struct {
	Endpoint string `json:"endpoint"`
}
