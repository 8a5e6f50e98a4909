package model

import "time"

type OrganizationRole string

const (
	RoleOwner  OrganizationRole = "owner"
	RoleAdmin  OrganizationRole = "admin"
	RoleMember OrganizationRole = "member"
)

// roleRanks orders roles for permission checks: member < admin < owner.
var roleRanks = map[OrganizationRole]int{
	RoleMember: 1,
	RoleAdmin:  2,
	RoleOwner:  3,
}

// AtLeast reports whether r grants at least the privileges of minimum.
// Unknown roles rank below everything.
func (r OrganizationRole) AtLeast(minimum OrganizationRole) bool {
	return roleRanks[r] >= roleRanks[minimum] && roleRanks[r] > 0
}

func (r OrganizationRole) Valid() bool {
	return roleRanks[r] > 0
}

type OnboardingStatus string

const (
	OnboardingStatusInvited  OnboardingStatus = "invited"
	OnboardingStatusActive   OnboardingStatus = "active"
	OnboardingStatusComplete OnboardingStatus = "complete"
)

// Member is a user's organization-scoped identity. Exactly one member per
// organization holds RoleOwner at any time.
type Member struct {
	ID               int64            `json:"id"`
	OrganizationID   int64            `json:"organization_id"`
	UserID           int64            `json:"user_id"`
	Role             OrganizationRole `json:"role"`
	OnboardingStatus OnboardingStatus `json:"onboarding_status"`
	JoinedAt         time.Time        `json:"joined_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// MemberProfile is the read projection returned by member listings:
// membership fields joined with the user's display identity.
type MemberProfile struct {
	MemberID         int64            `json:"member_id"`
	UserID           int64            `json:"user_id"`
	Name             string           `json:"name"`
	Email            string           `json:"email"`
	Role             OrganizationRole `json:"role"`
	OnboardingStatus OnboardingStatus `json:"onboarding_status"`
	JoinedAt         time.Time        `json:"joined_at"`
}
