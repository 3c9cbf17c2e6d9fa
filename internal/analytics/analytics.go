// Package analytics derives budget figures from a project and its expenses.
// Compute is pure: the same inputs always give the same Summary.
package analytics

import (
	"sort"
	"time"

	"github.com/CodeSyncr/collaborative-expense-tracker/internal/models"

	"github.com/shopspring/decimal"
)

// Mode is the budgeting mode a project is evaluated under.
type Mode string

const (
	ModeSimple  Mode = "simple"
	ModeMonthly Mode = "monthly"
	ModeTotal   Mode = "total"
)

// WarningThreshold is the utilization percentage above which a warning is raised.
const WarningThreshold = 80.0

var hundred = decimal.NewFromInt(100)

// UserInfo is the directory record used for creators outside the member list.
type UserInfo struct {
	ID          string
	DisplayName string
	Email       string
	AvatarURL   string
}

// Directory resolves user ids that are not declared project members.
// Ids missing from the returned map are treated as unresolved.
type Directory func(ids []string) map[string]UserInfo

// Options tune a computation.
type Options struct {
	// Period selects the month for monthly projects. Defaults to the month of Now.
	Period *Period
	// Directory resolves expense creators who are not declared members.
	Directory Directory
	// Now defaults to time.Now.
	Now time.Time
}

// MemberSpend is one row of the per-member breakdown.
type MemberSpend struct {
	UserID         string          `json:"user_id"`
	DisplayName    string          `json:"display_name"`
	Email          string          `json:"email"`
	AvatarURL      string          `json:"avatar_url,omitempty"`
	Declared       bool            `json:"declared"`
	Contribution   decimal.Decimal `json:"contribution"`
	Spent          decimal.Decimal `json:"spent"`
	Utilization    *float64        `json:"utilization"`
	NoContribution bool            `json:"no_contribution"`
}

// CategorySpend totals expenses of one category.
type CategorySpend struct {
	Category string          `json:"category"`
	Amount   decimal.Decimal `json:"amount"`
	Count    int             `json:"count"`
}

// Summary is the immutable result of Compute.
type Summary struct {
	ProjectID    string          `json:"project_id"`
	Mode         Mode            `json:"mode"`
	Currency     string          `json:"currency"`
	ExpenseCount int             `json:"expense_count"`
	TotalSpent   decimal.Decimal `json:"total_spent"`

	// Total mode.
	TotalBudget     *decimal.Decimal `json:"total_budget,omitempty"`
	RemainingBudget *decimal.Decimal `json:"remaining_budget,omitempty"`
	SpentPercentage float64          `json:"spent_percentage"`

	// Monthly mode.
	Period             *Period          `json:"period,omitempty"`
	MonthlyBudget      *decimal.Decimal `json:"monthly_budget,omitempty"`
	MonthlySpent       *decimal.Decimal `json:"monthly_spent,omitempty"`
	MonthlyUtilization float64          `json:"monthly_utilization"`

	Warning    bool            `json:"warning"`
	Members    []MemberSpend   `json:"members"`
	Categories []CategorySpend `json:"categories"`
}

// ModeOf returns the budgeting mode for a project.
func ModeOf(p *models.Project) Mode {
	switch {
	case p.IsPersonal():
		return ModeSimple
	case p.IsMonthly():
		return ModeMonthly
	default:
		return ModeTotal
	}
}

// Compute derives the summary for project from expenses.
func Compute(project *models.Project, expenses []models.Expense, opts Options) Summary {
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}

	ordered := NewestFirst(expenses)
	mode := ModeOf(project)

	s := Summary{
		ProjectID:  project.ID,
		Mode:       mode,
		Currency:   project.Currency,
		TotalSpent: sum(ordered, nil),
		Members:    []MemberSpend{},
	}

	var inScope func(models.Expense) bool
	scoped := ordered

	switch mode {
	case ModeSimple:
		s.ExpenseCount = len(ordered)
		s.Categories = byCategory(ordered)
		return s

	case ModeMonthly:
		period := PeriodOf(now)
		if opts.Period != nil {
			period = *opts.Period
		}
		inScope = func(e models.Expense) bool { return period.Contains(e.CreatedAt) }
		scoped = filter(ordered, inScope)

		monthlyBudget := decimal.Zero
		if project.MonthlyBudget != nil {
			monthlyBudget = *project.MonthlyBudget
		}
		monthlySpent := sum(scoped, nil)

		s.Period = &period
		s.MonthlyBudget = &monthlyBudget
		s.MonthlySpent = &monthlySpent
		s.MonthlyUtilization = clampedPercent(monthlySpent, monthlyBudget)
		s.Warning = s.MonthlyUtilization > WarningThreshold
	}

	// Monthly projects report only the month's figures; the spent
	// percentage stays 0 there.
	if mode == ModeTotal {
		total := project.TotalBudget
		remaining := total.Sub(s.TotalSpent)
		s.TotalBudget = &total
		s.RemainingBudget = &remaining
		s.SpentPercentage = clampedPercent(s.TotalSpent, total)
		s.Warning = s.SpentPercentage > WarningThreshold
	}

	s.ExpenseCount = len(scoped)
	s.Categories = byCategory(scoped)
	s.Members = memberBreakdown(project, ordered, inScope, opts.Directory)
	return s
}

// NewestFirst returns a copy of expenses sorted by creation time descending,
// ties broken by id descending.
func NewestFirst(expenses []models.Expense) []models.Expense {
	out := make([]models.Expense, len(expenses))
	copy(out, expenses)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

// clampedPercent returns part/whole*100 clamped to [0, 100], or 0 when whole <= 0.
func clampedPercent(part, whole decimal.Decimal) float64 {
	if !whole.IsPositive() {
		return 0
	}
	pct := part.Div(whole).Mul(hundred).InexactFloat64()
	switch {
	case pct < 0:
		return 0
	case pct > 100:
		return 100
	}
	return pct
}

func filter(expenses []models.Expense, keep func(models.Expense) bool) []models.Expense {
	out := make([]models.Expense, 0, len(expenses))
	for _, e := range expenses {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out
}

func sum(expenses []models.Expense, keep func(models.Expense) bool) decimal.Decimal {
	total := decimal.Zero
	for _, e := range expenses {
		if keep == nil || keep(e) {
			total = total.Add(e.Amount)
		}
	}
	return total
}

func byCategory(expenses []models.Expense) []CategorySpend {
	index := make(map[string]int)
	out := []CategorySpend{}
	for _, e := range expenses {
		i, ok := index[e.Category]
		if !ok {
			i = len(out)
			index[e.Category] = i
			out = append(out, CategorySpend{Category: e.Category, Amount: decimal.Zero})
		}
		out[i].Amount = out[i].Amount.Add(e.Amount)
		out[i].Count++
	}
	sort.SliceStable(out, func(i, j int) bool {
		if c := out[i].Amount.Cmp(out[j].Amount); c != 0 {
			return c > 0
		}
		return out[i].Category < out[j].Category
	})
	return out
}
