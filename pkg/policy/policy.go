// Package policy implements the identity & quota gate: deriving a
// server-side priority class for an authenticated caller and tracking how
// much of their free-tier quota they have used. Role is always re-derived
// here from the verified identity on every request — callers can never
// declare their own role (invariant I8).
package policy

import "sync"

// Role is the server-derived priority class of an authenticated caller.
type Role string

const (
	// RoleAdmin is granted to break-glass subjects and tokens carrying the
	// admin role claim. Unlimited EXECUTE quota, highest priority.
	RoleAdmin Role = "ADMIN"
	// RoleFree is the default tier for an authenticated caller that still
	// has free-tier EXECUTE quota remaining.
	RoleFree Role = "FREE"
	// RoleNormal denotes a non-admin caller whose free-tier quota is
	// exhausted. A RoleNormal caller may still issue HELP/READ/DRY_RUN
	// commands; EXECUTE is rejected with QuotaExceeded before it is ever
	// scheduled, so RoleNormal never reaches the priority queue.
	RoleNormal Role = "NORMAL"
)

// Identity is the verified, server-derived view of the caller used
// throughout the rest of the pipeline. It is never constructed from
// caller-supplied data.
type Identity struct {
	UserID string
	Role   Role
}

// Priority values, ascending = scheduled sooner (invariant I3).
const (
	PriorityAdmin = 1
	PriorityFree  = 2
	PriorityOther = 3
)

// DefaultFreeQuota is the number of EXECUTE commands a FREE-tier user may
// run before being demoted to NORMAL.
const DefaultFreeQuota = 3

// Gate resolves roles and tracks per-user quota. It is safe for concurrent
// use; the quota counter is mutex-guarded rather than eventually
// consistent, unlike the Redis-backed auth rate limiter, because an
// under-count here would let a FREE user exceed their quota.
type Gate struct {
	mu          sync.Mutex
	freeQuota   int
	used        map[string]int
	adminSubs   map[string]struct{}
}

// NewGate creates a quota gate. adminSubjects are subjects always treated
// as ADMIN regardless of their token's role claim (break-glass, §6.4
// KUBEOPS_ADMIN_SUBJECTS). freeQuota <= 0 falls back to DefaultFreeQuota.
func NewGate(freeQuota int, adminSubjects []string) *Gate {
	if freeQuota <= 0 {
		freeQuota = DefaultFreeQuota
	}
	admins := make(map[string]struct{}, len(adminSubjects))
	for _, s := range adminSubjects {
		admins[s] = struct{}{}
	}
	return &Gate{
		freeQuota: freeQuota,
		used:      make(map[string]int),
		adminSubs: admins,
	}
}

// Resolve derives an Identity for userID given whether the verified token
// carried an admin role claim. It must run, and its result must be used to
// compute priority, before IncrementQuota is called for the same request
// (the pre-increment ordering the quota Open Question resolves on).
func (g *Gate) Resolve(userID string, tokenClaimsAdmin bool) Identity {
	if tokenClaimsAdmin || g.isBreakGlassAdmin(userID) {
		return Identity{UserID: userID, Role: RoleAdmin}
	}

	g.mu.Lock()
	remaining := g.freeQuota - g.used[userID]
	g.mu.Unlock()

	if remaining > 0 {
		return Identity{UserID: userID, Role: RoleFree}
	}
	return Identity{UserID: userID, Role: RoleNormal}
}

func (g *Gate) isBreakGlassAdmin(userID string) bool {
	_, ok := g.adminSubs[userID]
	return ok
}

// PriorityFor maps a derived Role to its scheduling priority.
func PriorityFor(role Role) int {
	switch role {
	case RoleAdmin:
		return PriorityAdmin
	case RoleFree:
		return PriorityFree
	default:
		return PriorityOther
	}
}

// PriorityLabel returns the human-readable name for a scheduling priority,
// for display in API responses (§6.1 `execution.priorityLabel`).
func PriorityLabel(priority int) string {
	switch priority {
	case PriorityAdmin:
		return "admin"
	case PriorityFree:
		return "free"
	default:
		return "standard"
	}
}

// IncrementQuota records one more accepted EXECUTE command for a FREE user.
// Call exactly once per accepted EXECUTE, and only after priority has
// already been computed for the current request.
func (g *Gate) IncrementQuota(userID string) {
	g.mu.Lock()
	g.used[userID]++
	g.mu.Unlock()
}

// QuotaRemaining reports how many FREE-tier EXECUTE commands userID has
// left. Always >= 0.
func (g *Gate) QuotaRemaining(userID string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	remaining := g.freeQuota - g.used[userID]
	if remaining < 0 {
		return 0
	}
	return remaining
}
