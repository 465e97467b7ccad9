package slack

import (
	"fmt"
	"strings"
)

// IdentityMap resolves a Slack platform user ID to a kubeops identity. It
// is built once from SLACK_USER_MAP ("slackUserId:userId:role,...") and
// never mutated afterward.
type IdentityMap struct {
	byPlatformID map[string]mappedIdentity
}

// ParseIdentityMap builds an IdentityMap from the SLACK_USER_MAP env value.
// An empty string yields an empty (always-rejecting) map.
func ParseIdentityMap(raw string) (*IdentityMap, error) {
	m := &IdentityMap{byPlatformID: make(map[string]mappedIdentity)}

	raw = strings.TrimSpace(raw)
	if raw == "" {
		return m, nil
	}

	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, ":", 3)
		if len(parts) != 3 {
			return nil, fmt.Errorf("invalid slack user map entry %q: want slackUserId:userId:role", entry)
		}
		platformID, userID, role := parts[0], parts[1], parts[2]
		if platformID == "" || userID == "" {
			return nil, fmt.Errorf("invalid slack user map entry %q: slackUserId and userId are required", entry)
		}
		m.byPlatformID[platformID] = mappedIdentity{
			UserID:     userID,
			AdminClaim: strings.EqualFold(role, "admin"),
		}
	}

	return m, nil
}

// Lookup returns the mapped identity for a Slack user ID, or false if the
// caller is not on the allow-list.
func (m *IdentityMap) Lookup(slackUserID string) (userID string, adminClaim bool, ok bool) {
	if m == nil {
		return "", false, false
	}
	id, found := m.byPlatformID[slackUserID]
	if !found {
		return "", false, false
	}
	return id.UserID, id.AdminClaim, true
}
