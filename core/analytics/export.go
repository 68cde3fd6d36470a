package analytics

import (
	"io"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/ramesh-perabattula/EduPay/core/ledger"
)

const (
	SummarySheet = "Summary"
	DuesSheet    = "Dues"

	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// Export writes the report as an xlsx workbook with a Summary sheet (one row per group, then the
// totals) and a Dues sheet (outstanding amount per fee stream).
func Export(rep Report, w io.Writer) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", SummarySheet); err != nil {
		return errors.Wrap(err, "naming summary sheet")
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return errors.Wrap(err, "creating header style")
	}

	rows := [][]interface{}{{groupHeader(rep.GroupBy), "Students", "Fully paid", "Pending", "Total due"}}
	for _, g := range rep.Groups {
		rows = append(rows, []interface{}{g.Label, g.Students, g.FullyPaid, g.Pending, g.TotalDue})
	}
	rows = append(rows, []interface{}{"Total", rep.Totals.TotalStudents, rep.Totals.FullyPaid, rep.Totals.Pending, rep.Totals.TotalOverallDue})
	if err := writeRows(f, SummarySheet, rows); err != nil {
		return err
	}
	_ = f.SetRowStyle(SummarySheet, 1, 1, bold)
	_ = f.SetRowStyle(SummarySheet, len(rows), len(rows), bold)

	if _, err := f.NewSheet(DuesSheet); err != nil {
		return errors.Wrap(err, "creating dues sheet")
	}
	rows = [][]interface{}{{"Fee", "Outstanding"}}
	for _, ft := range ledger.FeeTypes {
		rows = append(rows, []interface{}{string(ft), rep.Totals.Dues.Of(ft)})
	}
	rows = append(rows, []interface{}{"Total", rep.Totals.TotalOverallDue})
	if err := writeRows(f, DuesSheet, rows); err != nil {
		return err
	}
	_ = f.SetRowStyle(DuesSheet, 1, 1, bold)

	if err := f.Write(w); err != nil {
		return errors.Wrap(err, "writing workbook")
	}
	return nil
}

func writeRows(f *excelize.File, sheet string, rows [][]interface{}) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return errors.Wrap(err, "locating cell")
		}
		row := row
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return errors.Wrapf(err, "writing %s row %d", sheet, i+1)
		}
	}
	return nil
}

func groupHeader(groupBy string) string {
	switch groupBy {
	case ByDepartment:
		return "Department"
	case ByYear:
		return "Year"
	}
	return "Group"
}
