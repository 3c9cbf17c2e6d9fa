package models

import "github.com/shopspring/decimal"

// Expense is a single spending record attached to a project. CreatedAt is
// user-settable; GORM only fills it in when left zero.
type Expense struct {
	Base
	ProjectID   string          `gorm:"type:uuid;not null;index" json:"project_id"`
	Description string          `gorm:"not null" json:"description"`
	Amount      decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"amount"`
	Category    string          `gorm:"not null" json:"category"`
	CreatedBy   string          `gorm:"type:uuid;not null;index" json:"created_by"`

	// Legacy single attachment kept for rows written before multi-receipt support.
	ImageURL  string `json:"image_url,omitempty"`
	ImagePath string `json:"image_path,omitempty"`

	Receipts []Receipt `gorm:"foreignKey:ExpenseID;constraint:OnDelete:CASCADE" json:"receipts"`
}

// Receipt is a stored file attached to an expense.
type Receipt struct {
	Base
	ExpenseID string `gorm:"type:uuid;not null;index" json:"-"`
	URL       string `gorm:"not null" json:"image_url"`
	Path      string `gorm:"not null" json:"image_path"`
	Name      string `json:"name"`
	Type      string `json:"type"`
	Position  int    `gorm:"not null" json:"-"`
}

// StoragePaths returns every object-store path owned by the expense,
// including the legacy single attachment.
func (e *Expense) StoragePaths() []string {
	paths := make([]string, 0, len(e.Receipts)+1)
	seen := make(map[string]bool, len(e.Receipts)+1)
	for _, r := range e.Receipts {
		if r.Path != "" && !seen[r.Path] {
			seen[r.Path] = true
			paths = append(paths, r.Path)
		}
	}
	if e.ImagePath != "" && !seen[e.ImagePath] {
		paths = append(paths, e.ImagePath)
	}
	return paths
}
