package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/volatiletech/null/v8"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name      string
		due, paid int64
		want      RecordStatus
	}{
		{name: "nothing paid", due: 100, paid: 0, want: Unpaid},
		{name: "partially paid", due: 100, paid: 1, want: Partial},
		{name: "almost paid", due: 100, paid: 99, want: Partial},
		{name: "fully paid", due: 100, paid: 100, want: Paid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusFor(tt.due, tt.paid))
		})
	}
}

func TestDuesFrom(t *testing.T) {
	records := []FeeRecord{
		{FeeType: College, AmountDue: 50000, AmountPaid: 20000},
		{FeeType: College, AmountDue: 10000, AmountPaid: 10000},
		{FeeType: Hostel, AmountDue: 30000},
		{FeeType: Placement, AmountDue: 5000, AmountPaid: 1000},
	}
	dues := DuesFrom(records)

	assert.Equal(t, Dues{College: 30000, Hostel: 30000, Placement: 4000}, dues)
	assert.Equal(t, int64(64000), dues.Total())
	assert.Equal(t, int64(30000), dues.Of(Hostel))
	assert.Zero(t, dues.Of(Transport))
	assert.Zero(t, dues.Of(FeeType("library")))
}

func TestStudent_Opted(t *testing.T) {
	s := Student{HostelOpted: true}
	assert.True(t, s.Opted(College))
	assert.True(t, s.Opted(Placement))
	assert.True(t, s.Opted(Hostel))
	assert.False(t, s.Opted(Transport))
}

func TestSortRecords(t *testing.T) {
	now := time.Now().UTC()
	records := []FeeRecord{
		{ID: "y2s4", Year: 2, Semester: null.IntFrom(4), CreatedAt: now},
		{ID: "y1-late", Year: 1, CreatedAt: now.Add(time.Hour)},
		{ID: "y2s3", Year: 2, Semester: null.IntFrom(3), CreatedAt: now},
		{ID: "y1", Year: 1, CreatedAt: now},
		{ID: "y2", Year: 2, CreatedAt: now},
	}
	SortRecords(records)

	ids := make([]string, 0, len(records))
	for _, r := range records {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []string{"y1", "y1-late", "y2", "y2s3", "y2s4"}, ids)
}
