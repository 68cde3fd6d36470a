package inmemdb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/ramesh-perabattula/EduPay/core/ledger"
)

type ledgerRepository struct {
	db *DB
}

var _ ledger.Repository = (*ledgerRepository)(nil)

func NewLedgerRepository(db *DB) ledger.Repository {
	return &ledgerRepository{db: db}
}

// withDues must be called with the table lock held.
func (repo *ledgerRepository) withDues(s ledger.Student) ledger.Student {
	s.Dues = ledger.DuesFrom(repo.db.records[s.USN])
	return s
}

func (repo *ledgerRepository) CreateStudent(ctx context.Context, s ledger.Student, records ...ledger.FeeRecord) (ledger.Student, error) {
	if err := ctx.Err(); err != nil {
		return ledger.Student{}, err
	}
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.students[s.USN]; ok {
		return ledger.Student{}, ledger.ErrStudentExists
	}
	repo.db.seq++
	s.ID = repo.db.seq
	s.Version = 1
	s.Dues = ledger.Dues{}

	recs := make([]ledger.FeeRecord, 0, len(records))
	for _, rec := range records {
		recs = append(recs, newRecord(s.USN, rec))
	}
	ledger.SortRecords(recs)

	repo.db.students[s.USN] = s
	repo.db.records[s.USN] = recs
	repo.db.order = append(repo.db.order, s.USN)
	return repo.withDues(s), nil
}

func (repo *ledgerRepository) GetStudent(ctx context.Context, usn string) (ledger.Student, error) {
	if err := ctx.Err(); err != nil {
		return ledger.Student{}, err
	}
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	s, ok := repo.db.students[usn]
	if !ok {
		return ledger.Student{}, ledger.ErrStudentNotFound
	}
	return repo.withDues(s), nil
}

func (repo *ledgerRepository) QueryStudents(ctx context.Context, filter ledger.StudentFilter) ([]ledger.Student, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	students := make([]ledger.Student, 0)
	for _, usn := range repo.db.order {
		s := repo.db.students[usn]
		if filter.Year != 0 && s.CurrentYear != filter.Year {
			continue
		}
		if filter.Department != "" && s.Department != filter.Department {
			continue
		}
		if filter.Status != "" && s.Status != filter.Status {
			continue
		}
		students = append(students, repo.withDues(s))
	}
	return students, nil
}

func (repo *ledgerRepository) FeeRecords(ctx context.Context, usn string) ([]ledger.FeeRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if _, ok := repo.db.students[usn]; !ok {
		return nil, ledger.ErrStudentNotFound
	}
	return append([]ledger.FeeRecord{}, repo.db.records[usn]...), nil
}

func (repo *ledgerRepository) Payments(ctx context.Context, usn string) ([]ledger.Payment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if _, ok := repo.db.students[usn]; !ok {
		return nil, ledger.ErrStudentNotFound
	}
	pays := append([]ledger.Payment{}, repo.db.payments[usn]...)
	sort.SliceStable(pays, func(i, j int) bool { return pays[i].CreatedAt.After(pays[j].CreatedAt) })
	return pays, nil
}

func (repo *ledgerRepository) WithStudent(ctx context.Context, usn string, fn func(tx ledger.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	repo.db.mutex.RLock()
	_, exists := repo.db.students[usn]
	repo.db.mutex.RUnlock()
	if !exists {
		return ledger.ErrStudentNotFound
	}

	lock := repo.db.studentLock(usn)
	lock.Lock()
	defer lock.Unlock()

	repo.db.mutex.RLock()
	s, ok := repo.db.students[usn]
	tx := &ledgerTx{
		student:  s,
		records:  append([]ledger.FeeRecord{}, repo.db.records[usn]...),
		payments: append([]ledger.Payment{}, repo.db.payments[usn]...),
	}
	repo.db.mutex.RUnlock()
	if !ok {
		return ledger.ErrStudentNotFound
	}

	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	// commit
	repo.db.mutex.Lock()
	repo.db.students[usn] = tx.student
	repo.db.records[usn] = tx.records
	repo.db.payments[usn] = tx.payments
	repo.db.mutex.Unlock()
	return nil
}

// ledgerTx stages the writes of a unit of work on copies of the student's rows.
type ledgerTx struct {
	student  ledger.Student
	records  []ledger.FeeRecord
	payments []ledger.Payment
}

var _ ledger.Tx = (*ledgerTx)(nil)

func (tx *ledgerTx) Student(ctx context.Context) (ledger.Student, error) {
	s := tx.student
	s.Dues = ledger.DuesFrom(tx.records)
	return s, ctx.Err()
}

func (tx *ledgerTx) FeeRecords(ctx context.Context) ([]ledger.FeeRecord, error) {
	return append([]ledger.FeeRecord{}, tx.records...), ctx.Err()
}

func (tx *ledgerTx) CreateFeeRecord(ctx context.Context, rec ledger.FeeRecord) (ledger.FeeRecord, error) {
	if err := ctx.Err(); err != nil {
		return ledger.FeeRecord{}, err
	}
	rec = newRecord(tx.student.USN, rec)
	tx.records = append(tx.records, rec)
	ledger.SortRecords(tx.records)
	return rec, nil
}

func (tx *ledgerTx) UpdateFeeRecord(ctx context.Context, rec ledger.FeeRecord) (ledger.FeeRecord, error) {
	if err := ctx.Err(); err != nil {
		return ledger.FeeRecord{}, err
	}
	for i, orig := range tx.records {
		if orig.ID == rec.ID {
			orig.AmountPaid = rec.AmountPaid
			orig.Status = ledger.StatusFor(orig.AmountDue, orig.AmountPaid)
			orig.UpdatedAt = rec.UpdatedAt
			tx.records[i] = orig
			return orig, nil
		}
	}
	return ledger.FeeRecord{}, ledger.ErrFeeRecordNotFound
}

func (tx *ledgerTx) SavePayment(ctx context.Context, p ledger.Payment) (ledger.Payment, error) {
	if err := ctx.Err(); err != nil {
		return ledger.Payment{}, err
	}
	if p.Reference.Valid {
		for _, existing := range tx.payments {
			if existing.Reference.Valid && existing.Reference.String == p.Reference.String {
				return ledger.Payment{}, ledger.ErrConflict
			}
		}
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p.USN = tx.student.USN
	allocs := make([]ledger.Allocation, 0, len(p.Allocations))
	for _, a := range p.Allocations {
		a.PaymentID = p.ID
		allocs = append(allocs, a)
	}
	p.Allocations = allocs
	tx.payments = append(tx.payments, p)
	return p, nil
}

func (tx *ledgerTx) PaymentByReference(ctx context.Context, ref string) (ledger.Payment, error) {
	if err := ctx.Err(); err != nil {
		return ledger.Payment{}, err
	}
	for _, p := range tx.payments {
		if p.Reference.Valid && p.Reference.String == ref {
			return p, nil
		}
	}
	return ledger.Payment{}, ledger.ErrPaymentNotFound
}

func (tx *ledgerTx) UpdateStudent(ctx context.Context, s ledger.Student) (ledger.Student, error) {
	if err := ctx.Err(); err != nil {
		return ledger.Student{}, err
	}
	if s.Version != tx.student.Version {
		return ledger.Student{}, ledger.ErrConflict
	}

	// only save lifecycle & facility fields
	orig := tx.student
	orig.CurrentYear = s.CurrentYear
	orig.Status = s.Status
	orig.GraduatedAt = s.GraduatedAt
	orig.TransportOpted = s.TransportOpted
	orig.HostelOpted = s.HostelOpted
	orig.UpdatedAt = s.UpdatedAt
	orig.Version++
	tx.student = orig
	return tx.Student(ctx)
}

func newRecord(usn string, rec ledger.FeeRecord) ledger.FeeRecord {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	rec.USN = usn
	rec.Status = ledger.StatusFor(rec.AmountDue, rec.AmountPaid)
	return rec
}
