package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ramesh-perabattula/EduPay/core"
)

func TestAllocate(t *testing.T) {
	records := []FeeRecord{
		{ID: "a", FeeType: College, Year: 1, AmountDue: 100, AmountPaid: 100},
		{ID: "b", FeeType: College, Year: 1, AmountDue: 100, AmountPaid: 40},
		{ID: "h", FeeType: Hostel, Year: 1, AmountDue: 500},
		{ID: "c", FeeType: College, Year: 2, AmountDue: 200},
	}

	tests := []struct {
		name    string
		ft      FeeType
		amount  int64
		want    []Allocation
		wantErr bool
	}{
		{name: "zero amount", ft: College, amount: 0, wantErr: true},
		{name: "negative amount", ft: College, amount: -5, wantErr: true},
		{name: "oldest record first", ft: College, amount: 50, want: []Allocation{{FeeRecordID: "b", Amount: 50}}},
		{name: "spans records", ft: College, amount: 100, want: []Allocation{{FeeRecordID: "b", Amount: 60}, {FeeRecordID: "c", Amount: 40}}},
		{name: "whole stream", ft: College, amount: 260, want: []Allocation{{FeeRecordID: "b", Amount: 60}, {FeeRecordID: "c", Amount: 200}}},
		{name: "overpayment", ft: College, amount: 261, wantErr: true},
		{name: "other stream", ft: Hostel, amount: 500, want: []Allocation{{FeeRecordID: "h", Amount: 500}}},
		{name: "nothing due", ft: Transport, amount: 1, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Allocate(records, tt.ft, tt.amount)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, core.IsValidationError(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFeeRecord_Apply(t *testing.T) {
	rec := FeeRecord{AmountDue: 100, AmountPaid: 30, Status: Partial}

	err := rec.Apply(80)
	require.Error(t, err)
	assert.True(t, core.IsValidationError(err))
	assert.Equal(t, int64(30), rec.AmountPaid)

	require.NoError(t, rec.Apply(20))
	assert.Equal(t, int64(50), rec.AmountPaid)
	assert.Equal(t, Partial, rec.Status)

	require.NoError(t, rec.Apply(50))
	assert.Equal(t, Paid, rec.Status)
	assert.Zero(t, rec.Balance())

	assert.Error(t, rec.Apply(0))
}
