package resolver

import (
	"encoding/base64"
	"encoding/json"
)

// cursor binds a backend continuation token to the operation and parameters
// that produced it. Redeeming a cursor against a different operation or
// different parameters silently starts a fresh first page; the resolver never
// sends mismatched partial state to the backend.
type cursor struct {
	Op    string `json:"op"`
	Key   string `json:"key,omitempty"`
	Token string `json:"token"`
}

func encodeCursor(op, key, token string) string {
	if token == "" {
		return ""
	}
	data, err := json.Marshal(cursor{Op: op, Key: key, Token: token})
	if err != nil {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(data)
}

// decodeCursor returns the backend token carried by an opaque cursor, or ""
// when the cursor is absent, invalid, or bound to different parameters.
func decodeCursor(op, key, opaque string) string {
	if opaque == "" {
		return ""
	}
	data, err := base64.RawURLEncoding.DecodeString(opaque)
	if err != nil {
		return ""
	}
	var c cursor
	if err := json.Unmarshal(data, &c); err != nil {
		return ""
	}
	if c.Op != op || c.Key != key {
		return ""
	}
	return c.Token
}
