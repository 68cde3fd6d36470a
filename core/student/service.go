package student

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/ramesh-perabattula/EduPay/core"
	"github.com/ramesh-perabattula/EduPay/core/ledger"
)

type (
	// InitialFees are the amounts assigned at admission, for the admission year.
	InitialFees struct {
		College   int64 `json:"college_fee" validate:"min=0"`
		Transport int64 `json:"transport_fee" validate:"min=0"`
		Hostel    int64 `json:"hostel_fee" validate:"min=0"`
		Placement int64 `json:"placement_fee" validate:"min=0"`
	}

	NewStudent struct {
		USN            string       `json:"usn" validate:"required,usn"`
		Name           string       `json:"name" validate:"required,max=100"`
		Email          string       `json:"email" validate:"omitempty,email"`
		Department     string       `json:"department" validate:"required,department"`
		CurrentYear    int          `json:"current_year" validate:"required,min=1,max=4"`
		Quota          ledger.Quota `json:"quota" validate:"required,quota"`
		Entry          ledger.Entry `json:"entry" validate:"omitempty,entry"`
		TransportOpted bool         `json:"transport_opted"`
		HostelOpted    bool         `json:"hostel_opted"`
		Fees           InitialFees  `json:"fees"`
	}

	// Facilities holds the optional streams to subscribe to or cancel; nil fields are left unchanged.
	Facilities struct {
		TransportOpted *bool `json:"transport_opted"`
		HostelOpted    *bool `json:"hostel_opted"`
	}

	// Ledger is a student with the full history of its account.
	Ledger struct {
		Student    ledger.Student     `json:"student"`
		FeeRecords []ledger.FeeRecord `json:"fee_records"`
		Payments   []ledger.Payment   `json:"payments"`
	}

	Service struct {
		repo ledger.Repository
	}
)

func NewService(repo ledger.Repository) *Service {
	return &Service{repo: repo}
}

func (fees InitialFees) of(ft ledger.FeeType) int64 {
	switch ft {
	case ledger.College:
		return fees.College
	case ledger.Transport:
		return fees.Transport
	case ledger.Hostel:
		return fees.Hostel
	case ledger.Placement:
		return fees.Placement
	}
	return 0
}

// Register admits a new student, recording the admission fees in the ledger.
func (svc *Service) Register(ctx context.Context, ns NewStudent) (ledger.Student, error) {
	ns.USN = core.CleanUSN(ns.USN)
	ns.Name = core.CleanString(ns.Name)
	ns.Email = core.CleanString(ns.Email, true /* lower */)
	if ns.Entry == "" {
		ns.Entry = ledger.Regular
	}
	if err := ledger.Validate(ns); err != nil {
		return ledger.Student{}, err
	}
	if ns.Entry == ledger.Lateral && ns.CurrentYear < 2 {
		return ledger.Student{}, core.NewFieldError("current_year", "lateral entries start in year 2 or later")
	}
	if ns.Fees.Transport > 0 && !ns.TransportOpted {
		return ledger.Student{}, core.NewFieldError("transport_fee", "transport fee requires opting in to transport")
	}
	if ns.Fees.Hostel > 0 && !ns.HostelOpted {
		return ledger.Student{}, core.NewFieldError("hostel_fee", "hostel fee requires opting in to hostel")
	}

	now := time.Now().UTC()
	s := ledger.Student{
		USN:            ns.USN,
		Name:           ns.Name,
		Department:     ns.Department,
		CurrentYear:    ns.CurrentYear,
		Quota:          ns.Quota,
		Entry:          ns.Entry,
		TransportOpted: ns.TransportOpted,
		HostelOpted:    ns.HostelOpted,
		Status:         ledger.Active,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if ns.Email != "" {
		s.Email = null.StringFrom(ns.Email)
	}

	records := make([]ledger.FeeRecord, 0, len(ledger.FeeTypes))
	for _, ft := range ledger.FeeTypes {
		amount := ns.Fees.of(ft)
		if amount <= 0 {
			continue
		}
		records = append(records, ledger.FeeRecord{
			FeeType:   ft,
			Year:      ns.CurrentYear,
			AmountDue: amount,
			Status:    ledger.Unpaid,
			Note:      ledger.NoteRegistration,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}

	created, err := svc.repo.CreateStudent(ctx, s, records...)
	if err != nil {
		if errors.Cause(err) == ledger.ErrStudentExists {
			return ledger.Student{}, err
		}
		return ledger.Student{}, errors.Wrap(err, "registering student")
	}
	return created, nil
}

func (svc *Service) Get(ctx context.Context, usn string) (ledger.Student, error) {
	return svc.repo.GetStudent(ctx, core.CleanUSN(usn))
}

// Ledger returns the student, its fee records and its payments.
func (svc *Service) Ledger(ctx context.Context, usn string) (Ledger, error) {
	usn = core.CleanUSN(usn)
	s, err := svc.repo.GetStudent(ctx, usn)
	if err != nil {
		return Ledger{}, err
	}
	records, err := svc.repo.FeeRecords(ctx, usn)
	if err != nil {
		return Ledger{}, err
	}
	payments, err := svc.repo.Payments(ctx, usn)
	if err != nil {
		return Ledger{}, err
	}
	return Ledger{Student: s, FeeRecords: records, Payments: payments}, nil
}

// UpdateFacilities subscribes to or cancels the transport and hostel streams.
// A stream cannot be cancelled while it has outstanding dues.
func (svc *Service) UpdateFacilities(ctx context.Context, usn string, f Facilities) (ledger.Student, error) {
	if f.TransportOpted == nil && f.HostelOpted == nil {
		return ledger.Student{}, core.NewValidationError(errors.New("nothing to update"))
	}

	var updated ledger.Student
	err := svc.repo.WithStudent(ctx, core.CleanUSN(usn), func(tx ledger.Tx) error {
		s, err := tx.Student(ctx)
		if err != nil {
			return err
		}
		if !s.IsActive() {
			return core.NewValidationError(errors.New("student has graduated"))
		}
		if f.TransportOpted != nil {
			if !*f.TransportOpted && s.Dues.Transport > 0 {
				return core.NewFieldError("transport_opted", "clear transport dues before opting out")
			}
			s.TransportOpted = *f.TransportOpted
		}
		if f.HostelOpted != nil {
			if !*f.HostelOpted && s.Dues.Hostel > 0 {
				return core.NewFieldError("hostel_opted", "clear hostel dues before opting out")
			}
			s.HostelOpted = *f.HostelOpted
		}
		s.UpdatedAt = time.Now().UTC()
		updated, err = tx.UpdateStudent(ctx, s)
		return err
	})
	if err != nil {
		return ledger.Student{}, err
	}
	return updated, nil
}
