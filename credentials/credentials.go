// Package credentials obtains short-lived, scoped credentials for one
// (erpType, clientId, dataType) tuple. Credentials never leave this package's
// cache except by value, and cache entries are invalidated before expiry.
package credentials

import (
	"time"
)

// Kind discriminates the credential payload.
type Kind string

const (
	KindApiKey     Kind = "apiKey"
	KindDbSecret   Kind = "dbSecret"
	KindClientCert Kind = "clientCert"
)

// Credentials is a short-lived, scoped secret bundle.
type Credentials struct {
	Kind      Kind              `json:"kind"`
	Values    map[string]string `json:"values"`
	ExpiresAt time.Time         `json:"expiresAt"`
	Scope     string            `json:"scope"`
}

// Expired reports whether the credentials are unusable at time now.
// A small safety margin avoids handing out secrets about to lapse mid-call.
func (c Credentials) Expired(now time.Time) bool {
	const safetyMargin = 30 * time.Second
	if c.ExpiresAt.IsZero() {
		return false
	}
	return !now.Add(safetyMargin).Before(c.ExpiresAt)
}

// Value fetches one named secret value, e.g. "apiKey" or "password".
func (c Credentials) Value(name string) (string, bool) {
	v, ok := c.Values[name]
	return v, ok
}

// Provider is the credential store contract the orchestrator relies on.
type Provider interface {
	GetCredentials(erpType string, clientId string, dataType string) (Credentials, error)
}

// ScopeKey builds the scope string for a tuple, also used as the store key.
func ScopeKey(erpType, clientId, dataType string) string {
	return erpType + "/" + clientId + "/" + dataType
}
