package sqlxrepos

import (
	"testing"

	"github.com/ramesh-perabattula/EduPay/core/ledger"
	"github.com/ramesh-perabattula/EduPay/testutil"
)

func TestLedgerRepository(t *testing.T) {
	testutil.RunRepositoryTests(t, func(t *testing.T) ledger.Repository {
		return NewLedgerRepository(testutil.PrepareDB(t))
	})
}
