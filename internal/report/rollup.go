package report

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/campushub/helpdesk-service/internal/service"
)

const (
	summarySheet = "Summary"
	historySheet = "Last 7 days"
	staffSheet   = "Staff"
)

// ContentType is the MIME type of the generated workbook.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// RollupWorkbook renders a department roll-up as an xlsx document.
func RollupWorkbook(rollup *service.DepartmentRollup) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, err
	}
	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}

	summary := [][]any{
		{"Department", rollup.Department.Title()},
		{"Generated at", rollup.GeneratedAt.Format("2006-01-02 15:04:05 MST")},
		{"Total staff", rollup.TotalStaff},
		{"Total issues", rollup.TotalIssues},
		{"Solved issues", rollup.SolvedIssues},
		{"Unsolved issues", rollup.UnsolvedIssues},
		{"Active issues", rollup.ActiveIssues},
	}
	if err := writeRows(f, summarySheet, summary); err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(summarySheet, "A1", fmt.Sprintf("A%d", len(summary)), header); err != nil {
		return nil, err
	}

	history := [][]any{{"Date", "Total", "Solved", "Performance %"}}
	for _, day := range rollup.PerformanceHistory {
		history = append(history, []any{day.Date, day.Total, day.Solved, day.Performance})
	}
	if err := addSheet(f, historySheet, history, header); err != nil {
		return nil, err
	}

	staff := [][]any{{"Rank", "Name", "Email", "Role", "Total", "Solved", "Percentage"}}
	for i, member := range rollup.StaffList {
		staff = append(staff, []any{
			i + 1,
			member.FullName,
			member.Email,
			string(member.Role),
			member.PerformanceMetrics.TotalIssues,
			member.PerformanceMetrics.SolvedIssues,
			member.PerformanceMetrics.Percentage,
		})
	}
	if err := addSheet(f, staffSheet, staff, header); err != nil {
		return nil, err
	}
	if err := f.SetColWidth(staffSheet, "B", "C", 28); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Filename is the attachment name for a roll-up export.
func Filename(rollup *service.DepartmentRollup) string {
	return fmt.Sprintf("%s-performance-%s.xlsx", rollup.Department, rollup.GeneratedAt.Format("20060102"))
}

func addSheet(f *excelize.File, name string, rows [][]any, header int) error {
	if _, err := f.NewSheet(name); err != nil {
		return err
	}
	if err := writeRows(f, name, rows); err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(len(rows[0]), 1)
	if err != nil {
		return err
	}
	return f.SetCellStyle(name, "A1", last, header)
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		values := row
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return err
		}
	}
	return nil
}
