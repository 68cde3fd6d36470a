package promotion

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

var (
	ErrEmptyCohort        = errors.New("no students in this year")
	ErrNoEligibleStudents = errors.New("no eligible students to promote, clear dues first")
)

// Skip reasons
const (
	ReasonDues       = "pending dues"
	ReasonLeftCohort = "no longer in cohort"
)

type (
	Skip struct {
		USN      string `json:"usn"`
		Reason   string `json:"reason"`
		TotalDue int64  `json:"total_due"`
	}

	Failure struct {
		USN   string `json:"usn"`
		Error string `json:"error"`
	}

	// Result reports a cohort promotion: len(Skipped) + len(Failed) + Promoted + Graduated == CohortSize.
	Result struct {
		Year       int       `json:"year"`
		CohortSize int       `json:"cohort_size"`
		Promoted   int       `json:"promoted"`
		Graduated  int       `json:"graduated"`
		Skipped    []Skip    `json:"skipped"`
		Failed     []Failure `json:"failed"`
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

// Eligible reports whether s has cleared every due.
func Eligible(s ledger.Student) bool {
	return s.Dues.Total() <= 0
}

func validateYear(year int) error {
	if year < ledger.FirstYear || year > ledger.FinalYear {
		return core.NewFieldError("current_year", fmt.Sprintf("year must be between %d and %d", ledger.FirstYear, ledger.FinalYear))
	}
	return nil
}

// ListCohort returns the active students of a year, in registration order.
func (svc *Service) ListCohort(ctx context.Context, year int) ([]ledger.Student, error) {
	if err := validateYear(year); err != nil {
		return nil, err
	}
	return svc.repo.QueryStudents(ctx, ledger.StudentFilter{Year: year, Status: ledger.Active})
}

type outcome struct {
	promoted  bool
	graduated bool
	skip      *Skip
	err       error
}

// PromoteCohort moves every eligible student of a year to the next year, graduating final year students.
// Each student is re-checked under lock; students with dues are skipped.
func (svc *Service) PromoteCohort(ctx context.Context, year int) (Result, error) {
	cohort, err := svc.ListCohort(ctx, year)
	if err != nil {
		return Result{}, err
	}
	if len(cohort) == 0 {
		return Result{}, core.NewValidationError(ErrEmptyCohort, core.FieldError{Field: "current_year", Error: ErrEmptyCohort.Error()})
	}

	var anyEligible bool
	for _, s := range cohort {
		if Eligible(s) {
			anyEligible = true
			break
		}
	}
	if !anyEligible {
		return Result{}, core.NewValidationError(ErrNoEligibleStudents)
	}

	outcomes := make([]outcome, len(cohort))
	var g errgroup.Group
	g.SetLimit(svc.workers)
	for i, s := range cohort {
		i, s := i, s
		if !Eligible(s) {
			outcomes[i] = outcome{skip: &Skip{USN: s.USN, Reason: ReasonDues, TotalDue: s.Dues.Total()}}
			continue
		}
		g.Go(func() error {
			outcomes[i] = svc.promote(ctx, s.USN, year)
			return nil
		})
	}
	_ = g.Wait()

	res := Result{Year: year, CohortSize: len(cohort), Skipped: make([]Skip, 0), Failed: make([]Failure, 0)}
	for i, o := range outcomes {
		switch {
		case o.err != nil:
			res.Failed = append(res.Failed, Failure{USN: cohort[i].USN, Error: o.err.Error()})
		case o.skip != nil:
			res.Skipped = append(res.Skipped, *o.skip)
		case o.graduated:
			res.Graduated++
		case o.promoted:
			res.Promoted++
		}
	}

	svc.logger.Info(fmt.Sprintf("year %d cohort: %d promoted, %d graduated, %d skipped, %d failed",
		year, res.Promoted, res.Graduated, len(res.Skipped), len(res.Failed)))
	return res, nil
}

func (svc *Service) promote(ctx context.Context, usn string, year int) outcome {
	var o outcome
	err := svc.repo.WithStudent(ctx, usn, func(tx ledger.Tx) error {
		s, err := tx.Student(ctx)
		if err != nil {
			return err
		}
		if !s.IsActive() || s.CurrentYear != year {
			o.skip = &Skip{USN: usn, Reason: ReasonLeftCohort}
			return nil
		}
		if !Eligible(s) {
			o.skip = &Skip{USN: usn, Reason: ReasonDues, TotalDue: s.Dues.Total()}
			return nil
		}

		now := time.Now().UTC()
		if s.CurrentYear >= ledger.FinalYear {
			s.Status = ledger.Graduated
			s.GraduatedAt = null.TimeFrom(now)
			o.graduated = true
		} else {
			s.CurrentYear++
			o.promoted = true
		}
		s.UpdatedAt = now
		_, err = tx.UpdateStudent(ctx, s)
		return err
	})
	if err != nil {
		return outcome{err: err}
	}
	return o
}
