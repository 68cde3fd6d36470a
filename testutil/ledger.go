package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/ramesh-perabattula/EduPay/core/ledger"
)

// NewStudent returns an active regular student with no facilities.
func NewStudent(usn, dept string, year int, quota ledger.Quota) ledger.Student {
	now := time.Now().UTC()
	return ledger.Student{
		USN:         usn,
		Name:        "Student " + usn,
		Department:  dept,
		CurrentYear: year,
		Quota:       quota,
		Entry:       ledger.Regular,
		Status:      ledger.Active,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Record returns an unsaved fee record of the student's stream.
func Record(ft ledger.FeeType, year int, due, paid int64, semester ...int) ledger.FeeRecord {
	now := time.Now().UTC()
	rec := ledger.FeeRecord{
		FeeType:    ft,
		Year:       year,
		AmountDue:  due,
		AmountPaid: paid,
		Note:       ledger.NoteRegistration,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if len(semester) > 0 {
		rec.Semester = null.IntFrom(semester[0])
	}
	return rec
}

func CreateStudent(t *testing.T, repo ledger.Repository, s ledger.Student, records ...ledger.FeeRecord) ledger.Student {
	t.Helper()
	s, err := repo.CreateStudent(context.Background(), s, records...)
	if err != nil {
		t.Fatalf("CreateStudent() failed: %v", err)
	}
	return s
}

func GetStudent(t *testing.T, repo ledger.Repository, usn string) ledger.Student {
	t.Helper()
	s, err := repo.GetStudent(context.Background(), usn)
	if err != nil {
		t.Fatalf("GetStudent() failed: %v", err)
	}
	return s
}

func FeeRecords(t *testing.T, repo ledger.Repository, usn string) []ledger.FeeRecord {
	t.Helper()
	records, err := repo.FeeRecords(context.Background(), usn)
	if err != nil {
		t.Fatalf("FeeRecords() failed: %v", err)
	}
	return records
}
