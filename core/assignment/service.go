package assignment

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
	"golang.org/x/sync/errgroup"

	"github.com/ramesh-perabattula/EduPay/core"
	"github.com/ramesh-perabattula/EduPay/core/ledger"
)

// Cohort skip reasons
const (
	ReasonQuota           = "quota not eligible for this fee"
	ReasonNotOpted        = "not opted in"
	ReasonAlreadyAssigned = "due already equals the amount"
	ReasonLeftCohort      = "no longer in cohort"
)

var errGovernmentCollegeFee = errors.New("fee for government quota students is assigned per cohort")

type (
	// Selector picks the students a fee is assigned to. Exactly one field must be set.
	Selector struct {
		USN  string `json:"usn"`
		Year int    `json:"year"`
	}

	AssignFee struct {
		FeeType  ledger.FeeType `json:"fee_type" validate:"required,feetype"`
		Amount   int64          `json:"amount" validate:"gt=0"`
		Semester null.Int       `json:"semester"`
		Selector Selector       `json:"selector"`
	}

	Skip struct {
		USN    string `json:"usn"`
		Reason string `json:"reason"`
	}

	Failure struct {
		USN   string `json:"usn"`
		Error string `json:"error"`
	}

	// CohortResult reports the outcome of a cohort assignment. Partial failures are never rolled back.
	CohortResult struct {
		FeeType    ledger.FeeType `json:"fee_type"`
		Year       int            `json:"year"`
		Semester   null.Int       `json:"semester"`
		Amount     int64          `json:"amount"`
		CohortSize int            `json:"cohort_size"`
		Assigned   int            `json:"assigned"`
		Skipped    []Skip         `json:"skipped"`
		Failed     []Failure      `json:"failed"`
	}

	// Result is the outcome of Assign: Student & Record for an individual assignment, Cohort otherwise.
	Result struct {
		Student *ledger.Student   `json:"student,omitempty"`
		Record  *ledger.FeeRecord `json:"record,omitempty"`
		Cohort  *CohortResult     `json:"cohort,omitempty"`
	}

	Service struct {
		repo    ledger.Repository
		workers int
		logger  core.Logger
	}
)

func NewService(repo ledger.Repository, conf *core.Config, logger core.Logger) *Service {
	workers := conf.Ledger.CohortWorkers
	if workers < 1 {
		workers = 1
	}
	return &Service{repo: repo, workers: workers, logger: logger}
}

func validate(af AssignFee) error {
	if err := ledger.Validate(af); err != nil {
		return err
	}
	if (af.Selector.USN == "") == (af.Selector.Year == 0) {
		return core.NewValidationError(
			errors.New("exactly one of usn or year must be given"),
			core.FieldError{Field: "usn", Error: "exactly one of usn or year must be given"},
			core.FieldError{Field: "year", Error: "exactly one of usn or year must be given"},
		)
	}
	if af.Selector.Year != 0 && (af.Selector.Year < ledger.FirstYear || af.Selector.Year > ledger.FinalYear) {
		return core.NewFieldError("year", fmt.Sprintf("year must be between %d and %d", ledger.FirstYear, ledger.FinalYear))
	}
	if af.Semester.Valid && (af.Semester.Int < 1 || af.Semester.Int > 2*ledger.FinalYear) {
		return core.NewFieldError("semester", fmt.Sprintf("semester must be between 1 and %d", 2*ledger.FinalYear))
	}
	return nil
}

// Assign records a fee for a single student (Selector.USN) or for a whole cohort (Selector.Year).
func (svc *Service) Assign(ctx context.Context, af AssignFee) (Result, error) {
	af.Selector.USN = core.CleanUSN(af.Selector.USN)
	if err := validate(af); err != nil {
		return Result{}, err
	}

	if af.Selector.USN != "" {
		s, rec, err := svc.assignIndividual(ctx, af)
		if err != nil {
			return Result{}, err
		}
		return Result{Student: &s, Record: &rec}, nil
	}
	res, err := svc.assignCohort(ctx, af)
	if err != nil {
		return Result{}, err
	}
	return Result{Cohort: &res}, nil
}

// individualIneligible returns why s cannot be assigned ft individually.
func individualIneligible(s ledger.Student, ft ledger.FeeType) error {
	if !s.IsActive() {
		return core.NewValidationError(errors.New("student has graduated"))
	}
	if ft == ledger.College && s.Quota != ledger.Management {
		return core.NewValidationError(errGovernmentCollegeFee, core.FieldError{Field: "quota", Error: errGovernmentCollegeFee.Error()})
	}
	if !s.Opted(ft) {
		msg := fmt.Sprintf("student has not opted in to %s", ft)
		return core.NewValidationError(errors.New(msg), core.FieldError{Field: "fee_type", Error: msg})
	}
	return nil
}

// cohortIneligible returns why s is skipped by a cohort assignment of ft, or "".
func cohortIneligible(s ledger.Student, ft ledger.FeeType, year int) string {
	if !s.IsActive() || s.CurrentYear != year {
		return ReasonLeftCohort
	}
	if ft == ledger.College && s.Quota != ledger.Government {
		return ReasonQuota
	}
	if !s.Opted(ft) {
		return ReasonNotOpted
	}
	return ""
}

func newRecord(af AssignFee, year int, note string) ledger.FeeRecord {
	now := time.Now().UTC()
	return ledger.FeeRecord{
		FeeType:   af.FeeType,
		Year:      year,
		Semester:  af.Semester,
		AmountDue: af.Amount,
		Status:    ledger.Unpaid,
		Note:      note,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (svc *Service) assignIndividual(ctx context.Context, af AssignFee) (ledger.Student, ledger.FeeRecord, error) {
	var (
		s   ledger.Student
		rec ledger.FeeRecord
	)
	err := svc.repo.WithStudent(ctx, af.Selector.USN, func(tx ledger.Tx) error {
		cur, err := tx.Student(ctx)
		if err != nil {
			return err
		}
		if err := individualIneligible(cur, af.FeeType); err != nil {
			return err
		}
		if rec, err = tx.CreateFeeRecord(ctx, newRecord(af, cur.CurrentYear, ledger.NoteIndividual)); err != nil {
			return errors.Wrap(err, "creating fee record")
		}
		s, err = tx.Student(ctx)
		return err
	})
	if err != nil {
		return ledger.Student{}, ledger.FeeRecord{}, err
	}
	return s, rec, nil
}

type outcome struct {
	assigned bool
	skip     string
	err      error
}

func (svc *Service) assignCohort(ctx context.Context, af AssignFee) (CohortResult, error) {
	year := af.Selector.Year
	students, err := svc.repo.QueryStudents(ctx, ledger.StudentFilter{Year: year, Status: ledger.Active})
	if err != nil {
		return CohortResult{}, errors.Wrap(err, "querying cohort")
	}

	outcomes := make([]outcome, len(students))
	var g errgroup.Group
	g.SetLimit(svc.workers)
	for i, s := range students {
		i, s := i, s
		if reason := cohortIneligible(s, af.FeeType, year); reason != "" {
			outcomes[i] = outcome{skip: reason}
			continue
		}
		g.Go(func() error {
			outcomes[i] = svc.assignCohortMember(ctx, s.USN, af)
			return nil
		})
	}
	_ = g.Wait()

	res := CohortResult{
		FeeType:    af.FeeType,
		Year:       year,
		Semester:   af.Semester,
		Amount:     af.Amount,
		CohortSize: len(students),
		Skipped:    make([]Skip, 0),
		Failed:     make([]Failure, 0),
	}
	for i, o := range outcomes {
		switch {
		case o.err != nil:
			res.Failed = append(res.Failed, Failure{USN: students[i].USN, Error: o.err.Error()})
		case o.skip != "":
			res.Skipped = append(res.Skipped, Skip{USN: students[i].USN, Reason: o.skip})
		case o.assigned:
			res.Assigned++
		}
	}

	if len(res.Failed) > 0 {
		svc.logger.Warn(fmt.Sprintf("cohort %s fee for year %d: %d failed", af.FeeType, year, len(res.Failed)),
			map[string]interface{}{"failed": res.Failed})
	}
	return res, nil
}

// assignCohortMember re-checks the student under lock and sets the stream's due to the cohort amount.
// Earlier records of the stream, arrears included, are absorbed into the new due.
func (svc *Service) assignCohortMember(ctx context.Context, usn string, af AssignFee) outcome {
	var o outcome
	err := svc.repo.WithStudent(ctx, usn, func(tx ledger.Tx) error {
		s, err := tx.Student(ctx)
		if err != nil {
			return err
		}
		if o.skip = cohortIneligible(s, af.FeeType, af.Selector.Year); o.skip != "" {
			return nil
		}
		changed, err := ledger.SetDue(ctx, tx, af.FeeType, s.Dues.Of(af.FeeType), af.Amount,
			newRecord(af, af.Selector.Year, ledger.NoteCohort))
		if err != nil {
			return err
		}
		if !changed {
			o.skip = ReasonAlreadyAssigned
			return nil
		}
		o.assigned = true
		return nil
	})
	if err != nil {
		return outcome{err: err}
	}
	return o
}
