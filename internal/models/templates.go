package models

import "strings"

// ProjectTemplate describes the defaults a project type starts with.
type ProjectTemplate struct {
	Type         ProjectType `json:"type"`
	SharedBudget bool        `json:"shared_budget"`
	Monthly      bool        `json:"monthly"`
	Categories   []string    `json:"categories"`
}

// CategoryOther is the catch-all category for anything unrecognised.
const CategoryOther = "Other"

// Templates lists every supported project type in display order.
var Templates = []ProjectTemplate{
	{Type: ProjectTypeTrip, SharedBudget: true, Categories: []string{"Transport", "Accommodation", "Food", "Activities", "Shopping", "Miscellaneous"}},
	{Type: ProjectTypeRoommates, SharedBudget: true, Monthly: true, Categories: []string{"Rent", "Utilities", "Groceries", "Internet", "Cleaning", "Repairs"}},
	{Type: ProjectTypeEvent, SharedBudget: true, Categories: []string{"Venue", "Food & Drinks", "Decorations", "Entertainment", "Gifts"}},
	{Type: ProjectTypeOffice, SharedBudget: true, Categories: []string{"Office Supplies", "Meals", "Travel", "Software", "Miscellaneous"}},
	{Type: ProjectTypeWedding, SharedBudget: true, Categories: []string{"Venue", "Catering", "Attire", "Decorations", "Photography", "Gifts", "Miscellaneous"}},
	{Type: ProjectTypeFamily, SharedBudget: true, Monthly: true, Categories: []string{"Groceries", "Utilities", "Education", "Healthcare", "Transport", "Entertainment"}},
	{Type: ProjectTypeCharity, SharedBudget: true, Categories: []string{"Donations", "Venue", "Marketing", "Supplies", "Miscellaneous"}},
	{Type: ProjectTypePersonal, Categories: []string{"Food & Drinks", "Shopping", "Transport", "Entertainment", "Bills", "Miscellaneous"}},
	{Type: ProjectTypeCustom, SharedBudget: true},
}

// GlobalCategories are accepted on every project regardless of type.
var GlobalCategories = []string{
	"Construction Material", "Labor", "Equipment Rental", "Transportation",
	"Utilities", "Carpentering", "Painting", "Interior Design", "Consultancy",
	"Legal Fees", "Permits & Licenses", "Cleaning", "Miscellaneous", CategoryOther,
}

// TemplateFor returns the template for a project type.
func TemplateFor(t ProjectType) (ProjectTemplate, bool) {
	for _, tpl := range Templates {
		if tpl.Type == t {
			return tpl, true
		}
	}
	return ProjectTemplate{}, false
}

// IsValidProjectType reports whether t names a known template.
func IsValidProjectType(t ProjectType) bool {
	_, ok := TemplateFor(t)
	return ok
}

// IsMonthlyType reports whether projects of type t budget per calendar month.
func IsMonthlyType(t ProjectType) bool {
	tpl, ok := TemplateFor(t)
	return ok && tpl.Monthly
}

// CategoriesFor returns the template categories followed by the global ones,
// without duplicates.
func CategoriesFor(t ProjectType) []string {
	tpl, _ := TemplateFor(t)
	out := make([]string, 0, len(tpl.Categories)+len(GlobalCategories))
	seen := make(map[string]bool)
	for _, list := range [][]string{tpl.Categories, GlobalCategories} {
		for _, c := range list {
			if !seen[c] {
				seen[c] = true
				out = append(out, c)
			}
		}
	}
	return out
}

// NormalizeCategory maps a requested category onto one the project accepts.
// Custom projects keep any non-empty category; elsewhere unknown ones become Other.
func NormalizeCategory(t ProjectType, category string) string {
	if category == "" {
		return CategoryOther
	}
	if t == ProjectTypeCustom {
		return category
	}
	for _, c := range CategoriesFor(t) {
		if strings.EqualFold(c, category) {
			return c
		}
	}
	return CategoryOther
}
