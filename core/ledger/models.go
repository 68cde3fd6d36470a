package ledger

import (
	"time"

	"github.com/volatiletech/null/v8"
)

type (
	FeeType      string
	Quota        string
	Entry        string
	Status       string
	RecordStatus string
	PaymentMode  string
)

// Fee streams
const (
	College   FeeType = "college"
	Transport FeeType = "transport"
	Hostel    FeeType = "hostel"
	Placement FeeType = "placement"
)

const (
	Government Quota = "government"
	Management Quota = "management"
)

const (
	Regular Entry = "regular"
	Lateral Entry = "lateral"
)

const (
	Active    Status = "active"
	Graduated Status = "graduated"
)

const (
	Unpaid  RecordStatus = "unpaid"
	Partial RecordStatus = "partial"
	Paid    RecordStatus = "paid"
)

const (
	Cash       PaymentMode = "CASH"
	DD         PaymentMode = "DD"
	Online     PaymentMode = "ONLINE"
	Adjustment PaymentMode = "ADJUSTMENT"
)

const (
	FirstYear = 1
	FinalYear = 4
)

// FeeRecord notes
const (
	NoteCohort       = "cohort"
	NoteIndividual   = "individual"
	NoteRegistration = "registration"
	NoteAdjustment   = "adjustment"
)

var (
	FeeTypes     = []FeeType{College, Transport, Hostel, Placement}
	Quotas       = []Quota{Government, Management}
	Entries      = []Entry{Regular, Lateral}
	PaymentModes = []PaymentMode{Cash, DD, Online, Adjustment}

	// Departments is the canonical department list, in reporting order.
	Departments = []string{"CSE", "CSE-CAD", "CSE-AIML", "CSE-CSM", "ECE", "EEE", "ME", "CV"}
)

func (ft FeeType) Valid() bool {
	for _, t := range FeeTypes {
		if ft == t {
			return true
		}
	}
	return false
}

func (q Quota) Valid() bool { return q == Government || q == Management }

func (m PaymentMode) Valid() bool {
	for _, pm := range PaymentModes {
		if m == pm {
			return true
		}
	}
	return false
}

func IsDepartment(dept string) bool {
	for _, d := range Departments {
		if d == dept {
			return true
		}
	}
	return false
}

// Dues holds the outstanding amount of each fee stream.
type Dues struct {
	College   int64 `json:"college_fee_due"`
	Transport int64 `json:"transport_fee_due"`
	Hostel    int64 `json:"hostel_fee_due"`
	Placement int64 `json:"placement_fee_due"`
}

func (d Dues) Total() int64 {
	return d.College + d.Transport + d.Hostel + d.Placement
}

func (d Dues) Of(ft FeeType) int64 {
	switch ft {
	case College:
		return d.College
	case Transport:
		return d.Transport
	case Hostel:
		return d.Hostel
	case Placement:
		return d.Placement
	}
	return 0
}

func (d *Dues) add(ft FeeType, amount int64) {
	switch ft {
	case College:
		d.College += amount
	case Transport:
		d.Transport += amount
	case Hostel:
		d.Hostel += amount
	case Placement:
		d.Placement += amount
	}
}

// DuesFrom derives the per-stream dues from a student's fee records.
func DuesFrom(records []FeeRecord) Dues {
	var d Dues
	for _, rec := range records {
		d.add(rec.FeeType, rec.Balance())
	}
	return d
}

type Student struct {
	ID             int64       `db:"id" json:"-"` // insertion sequence
	USN            string      `db:"usn" json:"usn"`
	Name           string      `db:"name" json:"name"`
	Email          null.String `db:"email" json:"email"`
	Department     string      `db:"department" json:"department"`
	CurrentYear    int         `db:"current_year" json:"current_year"`
	Quota          Quota       `db:"quota" json:"quota"`
	Entry          Entry       `db:"entry" json:"entry"`
	TransportOpted bool        `db:"transport_opted" json:"transport_opted"`
	HostelOpted    bool        `db:"hostel_opted" json:"hostel_opted"`
	Status         Status      `db:"status" json:"status"`
	GraduatedAt    null.Time   `db:"graduated_at" json:"graduated_at"`
	Version        int64       `db:"version" json:"version"`
	CreatedAt      time.Time   `db:"created_at" json:"created_at"` // UTC
	UpdatedAt      time.Time   `db:"updated_at" json:"updated_at"` // UTC

	// derived from the fee records on every read
	Dues Dues `db:"-" json:"dues"`
}

func (s Student) IsActive() bool { return s.Status == Active }

// Opted reports whether the student subscribed to an optional fee stream.
// College and placement fees apply to every student.
func (s Student) Opted(ft FeeType) bool {
	switch ft {
	case Transport:
		return s.TransportOpted
	case Hostel:
		return s.HostelOpted
	}
	return true
}

type FeeRecord struct {
	ID         string       `db:"id" json:"id"`
	USN        string       `db:"usn" json:"usn"`
	FeeType    FeeType      `db:"fee_type" json:"fee_type"`
	Year       int          `db:"year" json:"year"`
	Semester   null.Int     `db:"semester" json:"semester"`
	AmountDue  int64        `db:"amount_due" json:"amount_due"`
	AmountPaid int64        `db:"amount_paid" json:"amount_paid"`
	Status     RecordStatus `db:"status" json:"status"`
	Note       string       `db:"note" json:"note"`
	CreatedAt  time.Time    `db:"created_at" json:"created_at"` // UTC
	UpdatedAt  time.Time    `db:"updated_at" json:"updated_at"` // UTC
}

// StatusFor derives the status of a record from its amounts.
func StatusFor(due, paid int64) RecordStatus {
	switch {
	case paid >= due:
		return Paid
	case paid > 0:
		return Partial
	default:
		return Unpaid
	}
}

// Balance is the amount still owed on the record.
func (r FeeRecord) Balance() int64 {
	if b := r.AmountDue - r.AmountPaid; b > 0 {
		return b
	}
	return 0
}

type Payment struct {
	ID          string       `db:"id" json:"id"`
	USN         string       `db:"usn" json:"usn"`
	FeeType     FeeType      `db:"fee_type" json:"fee_type"`
	Amount      int64        `db:"amount" json:"amount"`
	Mode        PaymentMode  `db:"mode" json:"mode"`
	Reference   null.String  `db:"reference" json:"reference"`
	Allocations []Allocation `db:"-" json:"allocations"`
	CreatedAt   time.Time    `db:"created_at" json:"created_at"` // UTC
}

// Allocation is the share of a payment applied to a single fee record.
type Allocation struct {
	PaymentID   string `db:"payment_id" json:"-"`
	FeeRecordID string `db:"fee_record_id" json:"fee_record_id"`
	Amount      int64  `db:"amount" json:"amount"`
}
