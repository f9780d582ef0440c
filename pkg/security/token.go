package security

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

const inviteTokenBytes = 32

// GenerateInviteToken returns an unguessable, URL-safe opaque token for
// invitation links.
func GenerateInviteToken() (string, error) {
	bytes := make([]byte, inviteTokenBytes)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("generating invite token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(bytes), nil
}
