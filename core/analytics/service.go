package analytics

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/ramesh-perabattula/EduPay/core"
	"github.com/ramesh-perabattula/EduPay/core/ledger"
)

// All selects every year or department.
const All = "all"

// Groupings
const (
	ByDepartment = "department"
	ByYear       = "year"
	Single       = "single"
)

type (
	// Filter narrows the report. Year 0 and Department "" mean all.
	Filter struct {
		Year       int    `json:"year"`
		Department string `json:"department"`
	}

	Group struct {
		Label     string `json:"label"`
		Students  int    `json:"students"`
		FullyPaid int    `json:"fully_paid"`
		Pending   int    `json:"pending"`
		TotalDue  int64  `json:"total_due"`
	}

	Totals struct {
		ledger.Dues
		TotalOverallDue int64 `json:"total_overall_due"`
		TotalStudents   int   `json:"total_students"`
		FullyPaid       int   `json:"fully_paid"`
		Pending         int   `json:"pending"`
	}

	Report struct {
		Filter  Filter  `json:"filter"`
		GroupBy string  `json:"group_by"`
		Groups  []Group `json:"groups"`
		Totals  Totals  `json:"totals"`
	}

	Service struct {
		repo ledger.Repository
	}
)

func NewService(repo ledger.Repository) *Service {
	return &Service{repo: repo}
}

// ParseFilter reads `year` (1..4 or all) and `department` (a department or all); empty values mean all.
func ParseFilter(year, department string) (Filter, error) {
	var f Filter
	year = core.CleanString(year, true /* lower */)
	if year != "" && year != All {
		y, err := strconv.Atoi(year)
		if err != nil || y < ledger.FirstYear || y > ledger.FinalYear {
			return Filter{}, core.NewFieldError("year", fmt.Sprintf("year must be %s or between %d and %d", All, ledger.FirstYear, ledger.FinalYear))
		}
		f.Year = y
	}
	department = core.CleanString(department)
	if department != "" && !strings.EqualFold(department, All) {
		f.Department = strings.ToUpper(department)
	}
	return f, nil
}

func (f Filter) groupBy() string {
	switch {
	case f.Department == "":
		return ByDepartment
	case f.Year == 0:
		return ByYear
	default:
		return Single
	}
}

// Analyze aggregates the dues of active students. Every canonical department (or every year) is
// reported, even without students.
func (svc *Service) Analyze(ctx context.Context, f Filter) (Report, error) {
	if f.Year != 0 && (f.Year < ledger.FirstYear || f.Year > ledger.FinalYear) {
		return Report{}, core.NewFieldError("year", fmt.Sprintf("year must be between %d and %d", ledger.FirstYear, ledger.FinalYear))
	}
	students, err := svc.repo.QueryStudents(ctx, ledger.StudentFilter{
		Year:       f.Year,
		Department: f.Department,
		Status:     ledger.Active,
	})
	if err != nil {
		return Report{}, errors.Wrap(err, "querying students")
	}
	return aggregate(f, students), nil
}

func aggregate(f Filter, students []ledger.Student) Report {
	rep := Report{Filter: f, GroupBy: f.groupBy()}

	var labels []string
	keyOf := func(s ledger.Student) string { return f.Department }
	switch rep.GroupBy {
	case ByDepartment:
		labels = append(labels, ledger.Departments...)
		var unknown []string
		seen := make(map[string]bool)
		for _, s := range students {
			if !ledger.IsDepartment(s.Department) && !seen[s.Department] {
				seen[s.Department] = true
				unknown = append(unknown, s.Department)
			}
		}
		sort.Strings(unknown)
		labels = append(labels, unknown...)
		keyOf = func(s ledger.Student) string { return s.Department }
	case ByYear:
		for y := ledger.FirstYear; y <= ledger.FinalYear; y++ {
			labels = append(labels, yearLabel(y))
		}
		keyOf = func(s ledger.Student) string { return yearLabel(s.CurrentYear) }
	default:
		labels = []string{f.Department}
	}

	groups := make(map[string]*Group, len(labels))
	rep.Groups = make([]Group, len(labels))
	for i, label := range labels {
		rep.Groups[i].Label = label
		groups[label] = &rep.Groups[i]
	}

	for _, s := range students {
		total := s.Dues.Total()
		rep.Totals.College += s.Dues.College
		rep.Totals.Transport += s.Dues.Transport
		rep.Totals.Hostel += s.Dues.Hostel
		rep.Totals.Placement += s.Dues.Placement
		rep.Totals.TotalStudents++
		if total <= 0 {
			rep.Totals.FullyPaid++
		} else {
			rep.Totals.Pending++
		}

		g := groups[keyOf(s)]
		if g == nil {
			continue
		}
		g.Students++
		g.TotalDue += total
		if total <= 0 {
			g.FullyPaid++
		} else {
			g.Pending++
		}
	}
	rep.Totals.TotalOverallDue = rep.Totals.Dues.Total()
	return rep
}

func yearLabel(year int) string {
	return "Year " + strconv.Itoa(year)
}
