package domain

import "strings"

// Department is one of the fixed campus help-desk portals.
type Department string

const (
	DepartmentSSU      Department = "SSU"
	DepartmentIT       Department = "IT"
	DepartmentEU       Department = "EU"
	DepartmentLRC      Department = "LRC"
	DepartmentCR       Department = "CR"
	DepartmentAcademic Department = "Academic"
)

// Departments lists every portal in display order.
var Departments = []Department{
	DepartmentSSU,
	DepartmentIT,
	DepartmentEU,
	DepartmentLRC,
	DepartmentCR,
	DepartmentAcademic,
}

var departmentTitles = map[Department]string{
	DepartmentSSU:      "SSU(Student Support Unit)",
	DepartmentIT:       "IT department",
	DepartmentEU:       "EU(Exam Unit)",
	DepartmentLRC:      "LRC(Learning Resource Center)",
	DepartmentCR:       "CR(Central Registry)",
	DepartmentAcademic: "Academic department",
}

// ParseDepartment accepts either the short code or the long portal title.
func ParseDepartment(raw string) (Department, bool) {
	raw = strings.TrimSpace(raw)
	for _, dept := range Departments {
		if strings.EqualFold(raw, string(dept)) || strings.EqualFold(raw, departmentTitles[dept]) {
			return dept, true
		}
	}
	return "", false
}

// Title returns the human readable portal name.
func (d Department) Title() string {
	if title, ok := departmentTitles[d]; ok {
		return title
	}
	return string(d)
}

// Valid reports whether d is a known department.
func (d Department) Valid() bool {
	_, ok := departmentTitles[d]
	return ok
}
