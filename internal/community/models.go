package community

import "time"

type Role string

const (
	RoleOwner     Role = "owner"
	RoleAdmin     Role = "admin"
	RoleModerator Role = "moderator"
	RoleMember    Role = "member"
	RoleNone      Role = "none"
)

func (r Role) Valid() bool {
	switch r {
	case RoleOwner, RoleAdmin, RoleModerator, RoleMember:
		return true
	}
	return false
}

// CanManageChallenges reports whether the role may create or cancel
// challenges in its community.
func CanManageChallenges(r Role) bool {
	return r == RoleOwner || r == RoleAdmin
}

type Community struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Visibility  string    `json:"visibility"`
	CreatedBy   string    `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
}

type Membership struct {
	CommunityID string    `json:"community_id"`
	UserID      string    `json:"user_id"`
	Role        Role      `json:"role"`
	Status      string    `json:"status"`
	JoinedAt    time.Time `json:"joined_at"`
}
