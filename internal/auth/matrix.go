package auth

// Action names one of the generic CRUD verbs an identity can be granted.
type Action string

const (
	ActionRead   Action = "read"
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// requiredRanks is static configuration, not derived at runtime, so the
// authorization behavior stays auditable. Unspecified (resource, action)
// pairs fall back to the read-only baseline rank, never to "no restriction".
var requiredRanks = map[string]map[Action]int{
	"companies": {
		ActionRead:   RankViewer,
		ActionCreate: RankAdmin,
		ActionUpdate: RankAdmin,
		ActionDelete: RankAdmin,
	},
	"properties": {
		ActionRead:   RankViewer,
		ActionCreate: RankManager,
		ActionUpdate: RankManager,
		ActionDelete: RankAdmin,
	},
	"users": {
		ActionRead:   RankViewer,
		ActionCreate: RankAdmin,
		ActionUpdate: RankAdmin,
		ActionDelete: RankAdmin,
	},
	"numbers": {
		ActionRead:   RankViewer,
		ActionCreate: RankManager,
		ActionUpdate: RankManager,
		ActionDelete: RankAdmin,
	},
	"knowledge": {
		ActionRead:   RankViewer,
		ActionCreate: RankAgent,
		ActionUpdate: RankAgent,
		ActionDelete: RankManager,
	},
}

// RequiredRank returns the minimum rank needed for (resource, action).
func RequiredRank(resource string, action Action) int {
	if actions, ok := requiredRanks[resource]; ok {
		if rank, ok := actions[action]; ok {
			return rank
		}
	}
	return RankViewer
}

// Allowed reports whether the role's rank covers (resource, action).
// Privilege is monotonic: anything a lower rank may do, a higher rank may too.
func Allowed(role Role, resource string, action Action) bool {
	return Rank(role) >= RequiredRank(resource, action)
}
