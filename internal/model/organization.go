package model

import "time"

type OrganizationType string

const (
	OrganizationTypeSchool   OrganizationType = "school"
	OrganizationTypeDistrict OrganizationType = "district"
	OrganizationTypeCenter   OrganizationType = "center"
)

func (t OrganizationType) Valid() bool {
	switch t {
	case OrganizationTypeSchool, OrganizationTypeDistrict, OrganizationTypeCenter:
		return true
	}
	return false
}

type Organization struct {
	ID        int64            `json:"id"`
	Name      string           `json:"name"`
	Slug      string           `json:"slug"`
	Type      OrganizationType `json:"type"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
	IsDeleted bool             `json:"-"` // internal, not exposed in API
}
