package services

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/CodeSyncr/collaborative-expense-tracker/internal/analytics"
	apperrors "github.com/CodeSyncr/collaborative-expense-tracker/internal/errors"
	"github.com/CodeSyncr/collaborative-expense-tracker/internal/models"
	"github.com/CodeSyncr/collaborative-expense-tracker/internal/session"
)

const (
	expensesSheet = "Expenses"
	summarySheet  = "Summary"
	exportTime    = "2006-01-02 15:04:05"
)

// exportService renders a project as an XLSX workbook.
type exportService struct {
	projects  ProjectServicer
	analytics AnalyticsServicer
}

// NewExportService creates a new ExportServicer.
func NewExportService(projects ProjectServicer, analytics AnalyticsServicer) ExportServicer {
	return &exportService{projects: projects, analytics: analytics}
}

// ExportProject writes the workbook to w and returns a suggested file name.
func (s *exportService) ExportProject(ctx context.Context, sess session.Session, projectID string, w io.Writer) (string, error) {
	project, err := s.projects.GetProject(ctx, sess, projectID)
	if err != nil {
		return "", err
	}
	summary, expenses, err := s.analytics.Summarize(ctx, project, nil)
	if err != nil {
		return "", err
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", expensesSheet); err != nil {
		return "", apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if _, err := f.NewSheet(summarySheet); err != nil {
		return "", apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	styles, err := newExportStyles(f)
	if err != nil {
		return "", apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	writeExpensesSheet(f, styles, project, expenses, summary)
	writeSummarySheet(f, styles, project, summary)

	if err := f.Write(w); err != nil {
		return "", apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return exportFilename(project), nil
}

type exportStyles struct {
	header  int
	data    int
	summary int
}

func newExportStyles(f *excelize.File) (exportStyles, error) {
	border := []excelize.Border{
		{Type: "left", Color: "000000", Style: 1},
		{Type: "top", Color: "000000", Style: 1},
		{Type: "bottom", Color: "000000", Style: 1},
		{Type: "right", Color: "000000", Style: 1},
	}

	var st exportStyles
	var err error
	st.header, err = f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 12, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"4F81BD"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
		Border:    border,
	})
	if err != nil {
		return st, err
	}
	st.data, err = f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{Vertical: "center"},
		Border:    border,
	})
	if err != nil {
		return st, err
	}
	st.summary, err = f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"FFC000"}, Pattern: 1},
		Alignment: &excelize.Alignment{Vertical: "center"},
		Border:    border,
	})
	return st, err
}

func cell(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}

func writeHeader(f *excelize.File, sheet string, style int, headers []string) {
	for i, h := range headers {
		_ = f.SetCellValue(sheet, cell(i+1, 1), h)
	}
	_ = f.SetCellStyle(sheet, cell(1, 1), cell(len(headers), 1), style)
}

func writeExpensesSheet(f *excelize.File, st exportStyles, project *models.Project, expenses []models.Expense, summary *analytics.Summary) {
	_ = f.SetColWidth(expensesSheet, "A", "A", 20)
	_ = f.SetColWidth(expensesSheet, "B", "B", 32)
	_ = f.SetColWidth(expensesSheet, "C", "D", 16)
	_ = f.SetColWidth(expensesSheet, "E", "E", 22)
	_ = f.SetColWidth(expensesSheet, "F", "F", 10)

	headers := []string{"Date", "Description", "Category", "Amount", "Added By", "Receipts"}
	writeHeader(f, expensesSheet, st.header, headers)

	for i, e := range expenses {
		row := i + 2
		_ = f.SetCellValue(expensesSheet, cell(1, row), e.CreatedAt.UTC().Format(exportTime))
		_ = f.SetCellValue(expensesSheet, cell(2, row), e.Description)
		_ = f.SetCellValue(expensesSheet, cell(3, row), e.Category)
		_ = f.SetCellValue(expensesSheet, cell(4, row), e.Amount.InexactFloat64())
		_ = f.SetCellValue(expensesSheet, cell(5, row), creatorName(project, summary, e.CreatedBy))
		_ = f.SetCellValue(expensesSheet, cell(6, row), len(e.StoragePaths()))
		_ = f.SetCellStyle(expensesSheet, cell(1, row), cell(len(headers), row), st.data)
	}

	totalRow := len(expenses) + 2
	_ = f.SetCellValue(expensesSheet, cell(1, totalRow), "Total")
	_ = f.MergeCell(expensesSheet, cell(1, totalRow), cell(3, totalRow))
	_ = f.SetCellValue(expensesSheet, cell(4, totalRow), summary.TotalSpent.InexactFloat64())
	_ = f.SetCellValue(expensesSheet, cell(5, totalRow), fmt.Sprintf("%d expenses", len(expenses)))
	_ = f.MergeCell(expensesSheet, cell(5, totalRow), cell(len(headers), totalRow))
	_ = f.SetCellStyle(expensesSheet, cell(1, totalRow), cell(len(headers), totalRow), st.summary)
}

func writeSummarySheet(f *excelize.File, st exportStyles, project *models.Project, summary *analytics.Summary) {
	_ = f.SetColWidth(summarySheet, "A", "A", 24)
	_ = f.SetColWidth(summarySheet, "B", "E", 16)

	rows := [][]interface{}{
		{"Project", project.Name},
		{"Type", string(project.ProjectType)},
		{"Currency", project.Currency},
		{"Mode", string(summary.Mode)},
		{"Total Spent", summary.TotalSpent.InexactFloat64()},
	}
	if summary.TotalBudget != nil {
		rows = append(rows,
			[]interface{}{"Total Budget", summary.TotalBudget.InexactFloat64()},
			[]interface{}{"Remaining", summary.RemainingBudget.InexactFloat64()},
			[]interface{}{"Spent %", summary.SpentPercentage},
		)
	}
	if summary.Period != nil {
		rows = append(rows, []interface{}{"Month", summary.Period.String()})
		if summary.MonthlyBudget != nil {
			rows = append(rows, []interface{}{"Monthly Budget", summary.MonthlyBudget.InexactFloat64()})
		}
		if summary.MonthlySpent != nil {
			rows = append(rows, []interface{}{"Monthly Spent", summary.MonthlySpent.InexactFloat64()})
		}
		rows = append(rows, []interface{}{"Monthly Utilization %", summary.MonthlyUtilization})
	}

	writeHeader(f, summarySheet, st.header, []string{"Field", "Value"})
	row := 2
	for _, r := range rows {
		_ = f.SetCellValue(summarySheet, cell(1, row), r[0])
		_ = f.SetCellValue(summarySheet, cell(2, row), r[1])
		_ = f.SetCellStyle(summarySheet, cell(1, row), cell(2, row), st.data)
		row++
	}

	if len(summary.Members) == 0 {
		return
	}
	row++
	memberHeaders := []string{"Member", "Email", "Contribution", "Spent", "Utilization %"}
	for i, h := range memberHeaders {
		_ = f.SetCellValue(summarySheet, cell(i+1, row), h)
	}
	_ = f.SetCellStyle(summarySheet, cell(1, row), cell(len(memberHeaders), row), st.header)
	for _, m := range summary.Members {
		row++
		_ = f.SetCellValue(summarySheet, cell(1, row), m.DisplayName)
		_ = f.SetCellValue(summarySheet, cell(2, row), m.Email)
		_ = f.SetCellValue(summarySheet, cell(3, row), m.Contribution.InexactFloat64())
		_ = f.SetCellValue(summarySheet, cell(4, row), m.Spent.InexactFloat64())
		if m.Utilization != nil {
			_ = f.SetCellValue(summarySheet, cell(5, row), *m.Utilization)
		} else {
			_ = f.SetCellValue(summarySheet, cell(5, row), "No contribution")
		}
		_ = f.SetCellStyle(summarySheet, cell(1, row), cell(len(memberHeaders), row), st.data)
	}
}

// creatorName prefers the member list, then resolved creators from the summary.
func creatorName(project *models.Project, summary *analytics.Summary, userID string) string {
	if m, ok := project.Member(userID); ok && m.DisplayName != "" {
		return m.DisplayName
	}
	for _, m := range summary.Members {
		if m.UserID == userID {
			return m.DisplayName
		}
	}
	return "Unknown"
}

func exportFilename(project *models.Project) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		case r == ' ':
			return '_'
		default:
			return -1
		}
	}, project.Name)
	if name == "" {
		name = "project"
	}
	return name + "_expenses.xlsx"
}
