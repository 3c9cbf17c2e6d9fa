package analytics

import (
	"sort"

	"github.com/CodeSyncr/collaborative-expense-tracker/internal/models"

	"github.com/shopspring/decimal"
)

// memberBreakdown builds one row per declared member followed by one row per
// non-member creator that the directory resolves. Declared members keep their
// position order; creators follow in first-seen order over ordered.
func memberBreakdown(project *models.Project, ordered []models.Expense, inScope func(models.Expense) bool, dir Directory) []MemberSpend {
	declared := make([]models.ProjectMember, len(project.Members))
	copy(declared, project.Members)
	sort.SliceStable(declared, func(i, j int) bool { return declared[i].Position < declared[j].Position })

	rows := make([]MemberSpend, 0, len(declared))
	seen := make(map[string]bool, len(declared))
	for _, m := range declared {
		seen[m.UserID] = true
		rows = append(rows, MemberSpend{
			UserID:       m.UserID,
			DisplayName:  displayName(m.DisplayName, m.Email),
			Email:        m.Email,
			AvatarURL:    m.AvatarURL,
			Declared:     true,
			Contribution: m.Contribution,
		})
	}

	var unknown []string
	for _, e := range ordered {
		if e.CreatedBy != "" && !seen[e.CreatedBy] {
			seen[e.CreatedBy] = true
			unknown = append(unknown, e.CreatedBy)
		}
	}

	if len(unknown) > 0 && dir != nil {
		resolved := dir(unknown)
		for _, id := range unknown {
			info, ok := resolved[id]
			if !ok {
				continue
			}
			row := MemberSpend{
				UserID:       id,
				DisplayName:  displayName(info.DisplayName, info.Email),
				Email:        info.Email,
				AvatarURL:    info.AvatarURL,
				Contribution: decimal.Zero,
			}
			if m, ok := project.MemberByEmail(info.Email); ok {
				row.Contribution = m.Contribution
			}
			rows = append(rows, row)
		}
	}

	for i := range rows {
		id := rows[i].UserID
		rows[i].Spent = sum(ordered, func(e models.Expense) bool {
			return e.CreatedBy == id && (inScope == nil || inScope(e))
		})
		if rows[i].Contribution.IsPositive() {
			u := rows[i].Spent.Div(rows[i].Contribution).Mul(hundred).InexactFloat64()
			rows[i].Utilization = &u
		} else {
			rows[i].NoContribution = true
		}
	}
	return rows
}

func displayName(name, email string) string {
	switch {
	case name != "":
		return name
	case email != "":
		return email
	}
	return "Unknown"
}
