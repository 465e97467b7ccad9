package slack

// mappedIdentity is one entry of the configured Slack user allow-list: a
// Slack platform user ID resolved to a kubeops user ID and admin claim.
// There is no OIDC token on this path, so this mapping is the entire trust
// boundary for the Slack front end.
type mappedIdentity struct {
	UserID     string
	AdminClaim bool
}
