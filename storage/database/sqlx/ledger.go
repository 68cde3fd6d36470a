package sqlxrepos

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/ramesh-perabattula/EduPay/core"
	"github.com/ramesh-perabattula/EduPay/core/ledger"
)

const (
	uniqueViolation = "23505"

	studentColumns = `s.id, s.usn, s.name, s.email, s.department, s.current_year, s.quota, s.entry,
		s.transport_opted, s.hostel_opted, s.status, s.graduated_at, s.version, s.created_at, s.updated_at`

	recordColumns = `id, usn, fee_type, year, semester, amount_due, amount_paid, status, note, created_at, updated_at`

	paymentColumns = `id, usn, fee_type, amount, mode, reference, created_at`
)

// dues are derived from the fee records on every read
var studentSelect = `SELECT ` + studentColumns + `,
		COALESCE(SUM(GREATEST(r.amount_due - r.amount_paid, 0)) FILTER (WHERE r.fee_type = 'college'), 0)   AS college_fee_due,
		COALESCE(SUM(GREATEST(r.amount_due - r.amount_paid, 0)) FILTER (WHERE r.fee_type = 'transport'), 0) AS transport_fee_due,
		COALESCE(SUM(GREATEST(r.amount_due - r.amount_paid, 0)) FILTER (WHERE r.fee_type = 'hostel'), 0)    AS hostel_fee_due,
		COALESCE(SUM(GREATEST(r.amount_due - r.amount_paid, 0)) FILTER (WHERE r.fee_type = 'placement'), 0) AS placement_fee_due
	FROM students s
	LEFT JOIN fee_records r ON r.usn = s.usn`

type studentRow struct {
	ledger.Student
	CollegeDue   int64 `db:"college_fee_due"`
	TransportDue int64 `db:"transport_fee_due"`
	HostelDue    int64 `db:"hostel_fee_due"`
	PlacementDue int64 `db:"placement_fee_due"`
}

func (row studentRow) student() ledger.Student {
	s := row.Student
	s.Dues = ledger.Dues{
		College:   row.CollegeDue,
		Transport: row.TransportDue,
		Hostel:    row.HostelDue,
		Placement: row.PlacementDue,
	}
	return s
}

type ledgerRepository struct {
	db *sqlx.DB
}

var _ ledger.Repository = (*ledgerRepository)(nil)

func NewLedgerRepository(db *sqlx.DB) ledger.Repository {
	return &ledgerRepository{db: db}
}

func isUniqueViolation(err error) bool {
	pqErr, ok := errors.Cause(err).(*pq.Error)
	return ok && pqErr.Code == uniqueViolation
}

func (repo *ledgerRepository) CreateStudent(ctx context.Context, s ledger.Student, records ...ledger.FeeRecord) (ledger.Student, error) {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return ledger.Student{}, errors.Wrap(err, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	s.Version = 1
	q := `INSERT INTO students (usn, name, email, department, current_year, quota, entry,
			transport_opted, hostel_opted, status, graduated_at, version, created_at, updated_at)
		VALUES (:usn, :name, :email, :department, :current_year, :quota, :entry,
			:transport_opted, :hostel_opted, :status, :graduated_at, :version, :created_at, :updated_at)
		RETURNING id`
	rows, err := sqlx.NamedQueryContext(ctx, tx, q, s)
	if err != nil {
		if isUniqueViolation(err) {
			return ledger.Student{}, ledger.ErrStudentExists
		}
		return ledger.Student{}, errors.Wrap(err, "inserting student")
	}
	if rows.Next() {
		err = rows.Scan(&s.ID)
	}
	if err == nil {
		err = rows.Err()
	}
	_ = rows.Close()
	if err != nil {
		return ledger.Student{}, errors.Wrap(err, "scanning student id")
	}

	for _, rec := range records {
		if _, err := insertRecord(ctx, tx, s.USN, rec); err != nil {
			return ledger.Student{}, err
		}
	}

	if err = tx.Commit(); err != nil {
		return ledger.Student{}, errors.Wrap(err, "committing transaction")
	}
	return repo.GetStudent(ctx, s.USN)
}

func getStudent(ctx context.Context, db core.DBExecutor, usn string) (ledger.Student, error) {
	var row studentRow
	q := studentSelect + ` WHERE s.usn = $1 GROUP BY s.usn`
	if err := db.GetContext(ctx, &row, q, usn); err != nil {
		if err == sql.ErrNoRows {
			return ledger.Student{}, ledger.ErrStudentNotFound
		}
		return ledger.Student{}, errors.Wrap(err, "selecting student")
	}
	return row.student(), nil
}

func (repo *ledgerRepository) GetStudent(ctx context.Context, usn string) (ledger.Student, error) {
	return getStudent(ctx, repo.db, usn)
}

func (repo *ledgerRepository) QueryStudents(ctx context.Context, filter ledger.StudentFilter) ([]ledger.Student, error) {
	where := make([]string, 0, 3)
	args := make([]interface{}, 0, 3)
	if filter.Year != 0 {
		args = append(args, filter.Year)
		where = append(where, fmt.Sprintf("s.current_year = $%d", len(args)))
	}
	if filter.Department != "" {
		args = append(args, filter.Department)
		where = append(where, fmt.Sprintf("s.department = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		where = append(where, fmt.Sprintf("s.status = $%d", len(args)))
	}

	q := studentSelect
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` GROUP BY s.usn ORDER BY s.id`

	var rows []studentRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "selecting students")
	}
	students := make([]ledger.Student, 0, len(rows))
	for _, row := range rows {
		students = append(students, row.student())
	}
	return students, nil
}

func feeRecords(ctx context.Context, db core.DBExecutor, usn string) ([]ledger.FeeRecord, error) {
	records := make([]ledger.FeeRecord, 0)
	q := `SELECT ` + recordColumns + ` FROM fee_records WHERE usn = $1
		ORDER BY year, semester NULLS FIRST, created_at`
	if err := db.SelectContext(ctx, &records, q, usn); err != nil {
		return nil, errors.Wrap(err, "selecting fee records")
	}
	return records, nil
}

func (repo *ledgerRepository) FeeRecords(ctx context.Context, usn string) ([]ledger.FeeRecord, error) {
	if _, err := getStudent(ctx, repo.db, usn); err != nil {
		return nil, err
	}
	return feeRecords(ctx, repo.db, usn)
}

func (repo *ledgerRepository) Payments(ctx context.Context, usn string) ([]ledger.Payment, error) {
	if _, err := getStudent(ctx, repo.db, usn); err != nil {
		return nil, err
	}

	payments := make([]ledger.Payment, 0)
	q := `SELECT ` + paymentColumns + ` FROM payments WHERE usn = $1 ORDER BY created_at DESC`
	if err := repo.db.SelectContext(ctx, &payments, q, usn); err != nil {
		return nil, errors.Wrap(err, "selecting payments")
	}
	if len(payments) == 0 {
		return payments, nil
	}

	ids := make([]string, 0, len(payments))
	for _, p := range payments {
		ids = append(ids, p.ID)
	}
	var allocs []ledger.Allocation
	q = `SELECT payment_id, fee_record_id, amount FROM payment_allocations WHERE payment_id = ANY($1)`
	if err := repo.db.SelectContext(ctx, &allocs, q, pq.Array(ids)); err != nil {
		return nil, errors.Wrap(err, "selecting payment allocations")
	}
	byPayment := make(map[string][]ledger.Allocation, len(payments))
	for _, a := range allocs {
		byPayment[a.PaymentID] = append(byPayment[a.PaymentID], a)
	}
	for i := range payments {
		payments[i].Allocations = byPayment[payments[i].ID]
		if payments[i].Allocations == nil {
			payments[i].Allocations = []ledger.Allocation{}
		}
	}
	return payments, nil
}

func (repo *ledgerRepository) WithStudent(ctx context.Context, usn string, fn func(tx ledger.Tx) error) error {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	var locked string
	if err := tx.GetContext(ctx, &locked, `SELECT usn FROM students WHERE usn = $1 FOR UPDATE`, usn); err != nil {
		if err == sql.ErrNoRows {
			return ledger.ErrStudentNotFound
		}
		return errors.Wrap(err, "locking student")
	}

	if err := fn(&ledgerTx{tx: tx, usn: usn}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "committing transaction")
	}
	return nil
}

type ledgerTx struct {
	tx  core.DBTransactor
	usn string
}

var _ ledger.Tx = (*ledgerTx)(nil)

func (t *ledgerTx) Student(ctx context.Context) (ledger.Student, error) {
	return getStudent(ctx, t.tx, t.usn)
}

func (t *ledgerTx) FeeRecords(ctx context.Context) ([]ledger.FeeRecord, error) {
	return feeRecords(ctx, t.tx, t.usn)
}

func insertRecord(ctx context.Context, db core.DBExecutor, usn string, rec ledger.FeeRecord) (ledger.FeeRecord, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	rec.USN = usn
	rec.Status = ledger.StatusFor(rec.AmountDue, rec.AmountPaid)

	q := `INSERT INTO fee_records (` + recordColumns + `)
		VALUES (:id, :usn, :fee_type, :year, :semester, :amount_due, :amount_paid, :status, :note, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, db, q, rec); err != nil {
		return ledger.FeeRecord{}, errors.Wrap(err, "inserting fee record")
	}
	return rec, nil
}

func (t *ledgerTx) CreateFeeRecord(ctx context.Context, rec ledger.FeeRecord) (ledger.FeeRecord, error) {
	return insertRecord(ctx, t.tx, t.usn, rec)
}

func (t *ledgerTx) UpdateFeeRecord(ctx context.Context, rec ledger.FeeRecord) (ledger.FeeRecord, error) {
	var updated ledger.FeeRecord
	q := `UPDATE fee_records
		SET amount_paid = $1,
			status = CASE WHEN $1 >= amount_due THEN 'paid' WHEN $1 > 0 THEN 'partial' ELSE 'unpaid' END,
			updated_at = $2
		WHERE id = $3 AND usn = $4
		RETURNING ` + recordColumns
	if err := t.tx.GetContext(ctx, &updated, q, rec.AmountPaid, rec.UpdatedAt, rec.ID, t.usn); err != nil {
		if err == sql.ErrNoRows {
			return ledger.FeeRecord{}, ledger.ErrFeeRecordNotFound
		}
		return ledger.FeeRecord{}, errors.Wrap(err, "updating fee record")
	}
	return updated, nil
}

func (t *ledgerTx) SavePayment(ctx context.Context, p ledger.Payment) (ledger.Payment, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p.USN = t.usn

	q := `INSERT INTO payments (` + paymentColumns + `)
		VALUES (:id, :usn, :fee_type, :amount, :mode, :reference, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, t.tx, q, p); err != nil {
		if isUniqueViolation(err) {
			return ledger.Payment{}, ledger.ErrConflict
		}
		return ledger.Payment{}, errors.Wrap(err, "inserting payment")
	}

	allocs := make([]ledger.Allocation, 0, len(p.Allocations))
	for _, a := range p.Allocations {
		a.PaymentID = p.ID
		q := `INSERT INTO payment_allocations (payment_id, fee_record_id, amount) VALUES ($1, $2, $3)`
		if _, err := t.tx.ExecContext(ctx, q, a.PaymentID, a.FeeRecordID, a.Amount); err != nil {
			return ledger.Payment{}, errors.Wrap(err, "inserting payment allocation")
		}
		allocs = append(allocs, a)
	}
	p.Allocations = allocs
	return p, nil
}

func (t *ledgerTx) PaymentByReference(ctx context.Context, ref string) (ledger.Payment, error) {
	var p ledger.Payment
	q := `SELECT ` + paymentColumns + ` FROM payments WHERE usn = $1 AND reference = $2`
	if err := t.tx.GetContext(ctx, &p, q, t.usn, ref); err != nil {
		if err == sql.ErrNoRows {
			return ledger.Payment{}, ledger.ErrPaymentNotFound
		}
		return ledger.Payment{}, errors.Wrap(err, "selecting payment")
	}

	p.Allocations = make([]ledger.Allocation, 0)
	q = `SELECT payment_id, fee_record_id, amount FROM payment_allocations WHERE payment_id = $1`
	if err := t.tx.SelectContext(ctx, &p.Allocations, q, p.ID); err != nil {
		return ledger.Payment{}, errors.Wrap(err, "selecting payment allocations")
	}
	return p, nil
}

func (t *ledgerTx) UpdateStudent(ctx context.Context, s ledger.Student) (ledger.Student, error) {
	q := `UPDATE students
		SET current_year = $1, status = $2, graduated_at = $3, transport_opted = $4, hostel_opted = $5,
			updated_at = $6, version = version + 1
		WHERE usn = $7 AND version = $8`
	res, err := t.tx.ExecContext(ctx, q,
		s.CurrentYear, s.Status, s.GraduatedAt, s.TransportOpted, s.HostelOpted, s.UpdatedAt, t.usn, s.Version)
	if err != nil {
		return ledger.Student{}, errors.Wrap(err, "updating student")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return ledger.Student{}, errors.Wrap(err, "updating student")
	}
	if n == 0 {
		return ledger.Student{}, ledger.ErrConflict
	}
	return getStudent(ctx, t.tx, t.usn)
}
