package models

import (
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// ProjectType names the template a project was created from.
type ProjectType string

const (
	ProjectTypeTrip      ProjectType = "Trip/Vacation"
	ProjectTypeRoommates ProjectType = "Roommates/Flatmates"
	ProjectTypeEvent     ProjectType = "Event/Party"
	ProjectTypeOffice    ProjectType = "Office/Work Project"
	ProjectTypeWedding   ProjectType = "Wedding"
	ProjectTypeFamily    ProjectType = "Family Budget"
	ProjectTypeCharity   ProjectType = "Charity/Fundraiser"
	ProjectTypePersonal  ProjectType = "Simple (Personal)"
	ProjectTypeCustom    ProjectType = "Custom"
)

// Project is a named container for shared or personal expense tracking.
type Project struct {
	Base
	Name          string                      `gorm:"not null" json:"name"`
	ProjectType   ProjectType                 `gorm:"not null" json:"project_type"`
	Currency      string                      `gorm:"size:3;not null" json:"currency"`
	TotalBudget   decimal.Decimal             `gorm:"type:numeric(14,2);not null" json:"total_budget"`
	MonthlyBudget *decimal.Decimal            `gorm:"type:numeric(14,2)" json:"monthly_budget,omitempty"`
	SharedBudget  bool                        `gorm:"not null" json:"shared_budget"`
	OwnerID       string                      `gorm:"type:uuid;not null;index" json:"owner_id"`
	MemberEmails  datatypes.JSONSlice[string] `json:"member_emails"`
	ShareableID   *string                     `gorm:"uniqueIndex" json:"shareable_id"`
	Version       int                         `gorm:"not null" json:"version"`

	// Relationships
	Members []ProjectMember `gorm:"foreignKey:ProjectID;constraint:OnDelete:CASCADE" json:"members"`
}

// ProjectMember is one entry of a project's member map.
type ProjectMember struct {
	Base
	ProjectID    string          `gorm:"type:uuid;not null;uniqueIndex:idx_project_member" json:"-"`
	UserID       string          `gorm:"type:uuid;not null;uniqueIndex:idx_project_member;index" json:"user_id"`
	DisplayName  string          `json:"display_name"`
	Email        string          `gorm:"not null" json:"email"`
	AvatarURL    string          `json:"avatar_url,omitempty"`
	Contribution decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"contribution"`
	Position     int             `gorm:"not null" json:"-"`
}

// IsPersonal reports whether the project tracks a single person's spending
// without any budget reconciliation.
func (p *Project) IsPersonal() bool {
	return !p.SharedBudget || p.ProjectType == ProjectTypePersonal
}

// IsMonthly reports whether the project budgets per calendar month.
func (p *Project) IsMonthly() bool {
	return IsMonthlyType(p.ProjectType)
}

// Member returns the member entry for the given user id.
func (p *Project) Member(userID string) (*ProjectMember, bool) {
	for i := range p.Members {
		if p.Members[i].UserID == userID {
			return &p.Members[i], true
		}
	}
	return nil, false
}

// MemberByEmail returns the member entry whose email matches.
func (p *Project) MemberByEmail(email string) (*ProjectMember, bool) {
	for i := range p.Members {
		if email != "" && p.Members[i].Email == email {
			return &p.Members[i], true
		}
	}
	return nil, false
}

// IsMember reports whether userID belongs to the project.
func (p *Project) IsMember(userID string) bool {
	_, ok := p.Member(userID)
	return ok
}

// MemberIDs returns member user ids in position order.
func (p *Project) MemberIDs() []string {
	out := make([]string, 0, len(p.Members))
	for _, m := range p.Members {
		out = append(out, m.UserID)
	}
	return out
}

// MemberName returns the display name recorded for userID, or "Someone".
func (p *Project) MemberName(userID string) string {
	if m, ok := p.Member(userID); ok && m.DisplayName != "" {
		return m.DisplayName
	}
	return "Someone"
}

// ContributionTotal sums the contributions of all members.
func (p *Project) ContributionTotal() decimal.Decimal {
	sum := decimal.Zero
	for _, m := range p.Members {
		sum = sum.Add(m.Contribution)
	}
	return sum
}
