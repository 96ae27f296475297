package subscription

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Keys holds the client-side encryption material from a PushSubscription,
// base64url raw encoded as the browser hands them out.
type Keys struct {
	P256dh string `json:"p256dh"`
	Auth   string `json:"auth"`
}

// PushSubscription is the server-authoritative copy of a device's push
// endpoint, owned by the (user, device) pair. Dead marks endpoints the
// transport reported gone; they are pruned lazily by the sweep job.
type PushSubscription struct {
	EndpointID string    `json:"endpoint_id"`
	Endpoint   string    `json:"endpoint"`
	Keys       Keys      `json:"keys"`
	UserID     string    `json:"user_id"`
	CreatedAt  time.Time `json:"created_at"`
	Dead       bool      `json:"dead,omitempty"`
}

// EndpointID derives a stable identifier from a push endpoint URL so the
// same device re-subscribing maps onto the same record.
func EndpointID(endpoint string) string {
	sum := sha256.Sum256([]byte(endpoint))
	return hex.EncodeToString(sum[:8])
}
