// Package sessions binds conversation partners to stable session keys.
//
// Session keys follow the canonical format:
//
//	reply:{channel}:direct:{partnerID}
//
// Example:
//
//	reply:whatsapp:direct:918408878186
//
// The key is a pure function of the partner identity, so the same partner
// always maps to the same reply-generator session for the process lifetime.
package sessions

import (
	"fmt"
	"strings"
)

// BuildKey builds the canonical session key for a direct conversation.
func BuildKey(channel, partnerID string) string {
	return fmt.Sprintf("reply:%s:direct:%s", channel, partnerID)
}

// ParseKey extracts the channel and partner ID from a canonical key.
// Returns ("", "") if the key is not in the expected format.
func ParseKey(key string) (channel, partnerID string) {
	parts := strings.SplitN(key, ":", 4)
	if len(parts) != 4 || parts[0] != "reply" || parts[2] != "direct" {
		return "", ""
	}
	return parts[1], parts[3]
}
