package auth

import (
	"fmt"
	"strings"
)

// Role is one of a small fixed ordered set.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleAgent   Role = "agent"
	RoleViewer  Role = "viewer"
)

// Integer rank positions; higher rank means more privilege.
const (
	RankViewer  = 10
	RankAgent   = 20
	RankManager = 30
	RankAdmin   = 40
)

var roleRanks = map[Role]int{
	RoleAdmin:   RankAdmin,
	RoleManager: RankManager,
	RoleAgent:   RankAgent,
	RoleViewer:  RankViewer,
}

// Rank returns the total-order position of the role. Unknown role strings
// resolve to the lowest-privilege rank, never to an elevated one.
func Rank(role Role) int {
	if r, ok := roleRanks[Role(strings.ToLower(string(role)))]; ok {
		return r
	}
	return RankViewer
}

// ParseRole validates a client-supplied role string so unknown roles cannot
// be persisted through the users facade.
func ParseRole(raw string) (Role, error) {
	role := Role(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := roleRanks[role]; !ok {
		return "", fmt.Errorf("unknown role %q", raw)
	}
	return role, nil
}

// Roles lists the known roles from highest to lowest rank.
func Roles() []Role {
	return []Role{RoleAdmin, RoleManager, RoleAgent, RoleViewer}
}
