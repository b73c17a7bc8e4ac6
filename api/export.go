/*
export.go - Spreadsheet exports and roster CSV import

PURPOSE:
  Renders a monthly report as CSV (for the payroll spreadsheet) or as an
  XLSX workbook, and moves the roster in and out as CSV.

FORMATS:
  Allowance CSV:  이름, 팀, 근무일수, 오후반차, 식대금액 + a 합계 row.
                  UTF-8 with BOM so spreadsheet tools detect the encoding.
  Allowance XLSX: 요약 sheet (one row per team + total), then one sheet
                  per team listing its employees.
  Roster CSV:     이름, 팀, 입사일, 퇴사일 (English headers name, team,
                  join_date, leave_date are accepted on import).

SEE ALSO:
  - handlers.go: writeError, writeServiceError
*/
package api

import (
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/kimmokhwa/meals-management-app/allowance"
	"github.com/kimmokhwa/meals-management-app/generic"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

const utf8BOM = "\ufeff"

var (
	allowanceHeader = []string{"이름", "팀", "근무일수", "오후반차", "식대금액"}
	rosterHeader    = []string{"이름", "팀", "입사일", "퇴사일"}
	summaryHeader   = []string{"팀", "인원", "근무일수", "식대금액"}
)

const (
	totalLabel   = "합계"
	summarySheet = "요약"
	maxSheetName = 31
)

// =============================================================================
// EXPORT HANDLERS
// =============================================================================

// ExportAllowancesCSV streams the monthly report as CSV.
func (h *Handler) ExportAllowancesCSV(w http.ResponseWriter, r *http.Request) {
	report, ok := h.reportFor(w, r)
	if !ok {
		return
	}

	setAttachment(w, "text/csv; charset=utf-8",
		fmt.Sprintf("meal-allowance-%s.csv", report.Month), allowanceFileName(report.Month, "csv"))
	if report.Degraded {
		w.Header().Set("X-Report-Degraded", "true")
	}
	if err := writeAllowanceCSV(w, report); err != nil {
		log.Printf("[Export] Failed to write allowance CSV for %s: %v", report.Month, err)
	}
}

// ExportAllowancesXLSX returns the monthly report as a workbook.
func (h *Handler) ExportAllowancesXLSX(w http.ResponseWriter, r *http.Request) {
	report, ok := h.reportFor(w, r)
	if !ok {
		return
	}

	f, err := buildAllowanceWorkbook(report)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to build workbook", err)
		return
	}
	defer f.Close()

	buf, err := f.WriteToBuffer()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to write workbook", err)
		return
	}

	setAttachment(w, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		fmt.Sprintf("meal-allowance-%s.xlsx", report.Month), allowanceFileName(report.Month, "xlsx"))
	if report.Degraded {
		w.Header().Set("X-Report-Degraded", "true")
	}
	w.Write(buf.Bytes())
}

// ExportEmployees streams the roster as CSV.
func (h *Handler) ExportEmployees(w http.ResponseWriter, r *http.Request) {
	employees, err := h.Service.ListEmployees(r.Context(), queryBool(r, "force"))
	if err != nil {
		writeServiceError(w, "Failed to list employees", err)
		return
	}
	setAttachment(w, "text/csv; charset=utf-8", "employees.csv", "직원목록.csv")
	if err := writeRosterCSV(w, employees); err != nil {
		log.Printf("[Export] Failed to write roster CSV: %v", err)
	}
}

// ImportEmployees reads a roster CSV (raw body or multipart field "file").
// Rows matching an existing employee by name and team update that employee;
// the rest are created. Invalid rows are reported and skipped.
func (h *Handler) ImportEmployees(w http.ResponseWriter, r *http.Request) {
	body := io.Reader(r.Body)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		file, _, err := r.FormFile("file")
		if err != nil {
			writeError(w, http.StatusBadRequest, "Missing file field", err)
			return
		}
		defer file.Close()
		body = file
	}

	rows, skipped, err := parseRosterCSV(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid roster CSV", err)
		return
	}

	ctx := r.Context()
	existing, err := h.Service.ListEmployees(ctx, true)
	if err != nil {
		writeServiceError(w, "Failed to list employees", err)
		return
	}
	ids := make(map[string]string, len(existing))
	for _, e := range existing {
		ids[rosterKey(e)] = e.ID
	}

	result := ImportResultDTO{Skipped: skipped}
	for _, emp := range rows {
		emp.ID = ids[rosterKey(emp)]
		saved, err := h.Service.SaveEmployee(ctx, emp)
		if err != nil {
			if generic.IsClientError(err) {
				result.Skipped = append(result.Skipped, fmt.Sprintf("%s: %v", emp.Name, err))
				continue
			}
			writeServiceError(w, "Failed to import employees", err)
			return
		}
		ids[rosterKey(saved)] = saved.ID
		result.Imported++
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) reportFor(w http.ResponseWriter, r *http.Request) (*allowance.RosterReport, bool) {
	m, ok := monthParam(w, r)
	if !ok {
		return nil, false
	}
	report, err := h.Service.Calculate(r.Context(), m, queryBool(r, "force"))
	if err != nil {
		writeServiceError(w, "Failed to calculate allowances", err)
		return nil, false
	}
	return report, true
}

func rosterKey(e allowance.Employee) string {
	return string(e.Team) + "/" + e.Name
}

// allowanceFileName is the name payroll has always filed the export under.
func allowanceFileName(m generic.Month, ext string) string {
	return fmt.Sprintf("식대계산_%d년%d월.%s", m.Year, int(m.Month), ext)
}

func setAttachment(w http.ResponseWriter, contentType, asciiName, name string) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(
		"attachment; filename=%q; filename*=UTF-8''%s", asciiName, url.PathEscape(name)))
}

// =============================================================================
// ALLOWANCE CSV
// =============================================================================

func writeAllowanceCSV(w io.Writer, report *allowance.RosterReport) error {
	if _, err := io.WriteString(w, utf8BOM); err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(allowanceHeader); err != nil {
		return err
	}

	afternoonHalves := 0
	for _, ts := range report.ByTeam {
		for _, res := range ts.Employees {
			afternoonHalves += res.AfternoonHalfDays
			if err := cw.Write([]string{
				res.EmployeeName,
				string(res.Team),
				res.WorkDays.String(),
				strconv.Itoa(res.AfternoonHalfDays),
				strconv.FormatInt(res.TotalAllowance, 10),
			}); err != nil {
				return err
			}
		}
	}

	if err := cw.Write([]string{
		totalLabel,
		"",
		report.Totals.WorkDays.String(),
		strconv.Itoa(afternoonHalves),
		strconv.FormatInt(report.Totals.TotalAllowance, 10),
	}); err != nil {
		return err
	}

	cw.Flush()
	return cw.Error()
}

// =============================================================================
// ALLOWANCE XLSX
// =============================================================================

func buildAllowanceWorkbook(report *allowance.RosterReport) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		f.Close()
		return nil, err
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		f.Close()
		return nil, err
	}

	summary := [][]any{toRow(summaryHeader)}
	for _, ts := range report.ByTeam {
		summary = append(summary, []any{string(ts.Team), ts.EmployeeCount, workDaysCell(ts.TotalWorkDays), ts.TotalAllowance})
	}
	summary = append(summary, []any{totalLabel, report.Totals.EmployeeCount,
		workDaysCell(report.Totals.WorkDays), report.Totals.TotalAllowance})
	if err := writeSheet(f, summarySheet, summary, bold); err != nil {
		f.Close()
		return nil, err
	}

	for _, ts := range report.ByTeam {
		name := sheetName(string(ts.Team))
		if _, err := f.NewSheet(name); err != nil {
			f.Close()
			return nil, fmt.Errorf("sheet %s: %w", name, err)
		}
		rows := [][]any{toRow(allowanceHeader)}
		for _, res := range ts.Employees {
			rows = append(rows, []any{res.EmployeeName, string(res.Team),
				workDaysCell(res.WorkDays), res.AfternoonHalfDays, res.TotalAllowance})
		}
		rows = append(rows, []any{totalLabel, "", workDaysCell(ts.TotalWorkDays), "", ts.TotalAllowance})
		if err := writeSheet(f, name, rows, bold); err != nil {
			f.Close()
			return nil, err
		}
	}

	f.SetActiveSheet(0)
	return f, nil
}

// writeSheet writes rows from A1 down, bolding the header and the last row.
func writeSheet(f *excelize.File, sheet string, rows [][]any, style int) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}

	last, err := excelize.CoordinatesToCellName(len(rows[0]), len(rows))
	if err != nil {
		return err
	}
	headerEnd, err := excelize.CoordinatesToCellName(len(rows[0]), 1)
	if err != nil {
		return err
	}
	footerStart, err := excelize.CoordinatesToCellName(1, len(rows))
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", headerEnd, style); err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, footerStart, last, style); err != nil {
		return err
	}
	endCol, _, err := excelize.SplitCellName(headerEnd)
	if err != nil {
		return err
	}
	return f.SetColWidth(sheet, "A", endCol, 14)
}

// workDaysCell keeps whole numbers integral in the sheet.
func workDaysCell(d decimal.Decimal) any {
	if d.IsInteger() {
		return d.IntPart()
	}
	return d.InexactFloat64()
}

func toRow(values []string) []any {
	row := make([]any, len(values))
	for i, v := range values {
		row[i] = v
	}
	return row
}

// sheetName strips characters Excel rejects and truncates to 31 runes.
func sheetName(s string) string {
	s = strings.Map(func(r rune) rune {
		if strings.ContainsRune(`[]:*?/\`, r) {
			return '_'
		}
		return r
	}, s)
	if runes := []rune(s); len(runes) > maxSheetName {
		s = string(runes[:maxSheetName])
	}
	if s == "" || s == summarySheet {
		s = "_" + s
	}
	return s
}

// =============================================================================
// ROSTER CSV
// =============================================================================

func writeRosterCSV(w io.Writer, employees []allowance.Employee) error {
	if _, err := io.WriteString(w, utf8BOM); err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(rosterHeader); err != nil {
		return err
	}
	for _, e := range employees {
		left := ""
		if e.LeaveDate != nil && !e.LeaveDate.IsZero() {
			left = e.LeaveDate.String()
		}
		if err := cw.Write([]string{e.Name, string(e.Team), e.JoinDate.String(), left}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

var rosterColumns = map[string]string{
	"이름": "name", "name": "name",
	"팀": "team", "team": "team",
	"입사일": "join_date", "join_date": "join_date",
	"퇴사일": "leave_date", "leave_date": "leave_date",
}

// parseRosterCSV reads roster rows. Rows with an unknown team, a missing
// name, or an unparseable date are returned as skip reasons.
func parseRosterCSV(r io.Reader) ([]allowance.Employee, []string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("read header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		if i == 0 {
			name = strings.TrimPrefix(name, utf8BOM)
		}
		if key, ok := rosterColumns[strings.ToLower(strings.TrimSpace(name))]; ok {
			cols[key] = i
		}
	}
	for _, required := range []string{"name", "team", "join_date"} {
		if _, ok := cols[required]; !ok {
			return nil, nil, fmt.Errorf("missing column %s", required)
		}
	}

	field := func(rec []string, key string) string {
		i, ok := cols[key]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	var (
		employees []allowance.Employee
		skipped   []string
	)
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("line %d: %w", line, err)
		}

		emp := allowance.Employee{
			Name: field(rec, "name"),
			Team: allowance.Team(field(rec, "team")),
		}
		if emp.Name == "" {
			skipped = append(skipped, fmt.Sprintf("line %d: name is empty", line))
			continue
		}
		if !emp.Team.IsKnown() {
			skipped = append(skipped, fmt.Sprintf("line %d: unknown team %q", line, emp.Team))
			continue
		}
		join, err := generic.ParseDate(field(rec, "join_date"))
		if err != nil {
			skipped = append(skipped, fmt.Sprintf("line %d: %v", line, err))
			continue
		}
		emp.JoinDate = join
		if raw := field(rec, "leave_date"); raw != "" {
			left, err := generic.ParseDate(raw)
			if err != nil {
				skipped = append(skipped, fmt.Sprintf("line %d: %v", line, err))
				continue
			}
			emp.LeaveDate = &left
		}
		employees = append(employees, emp)
	}
	return employees, skipped, nil
}
