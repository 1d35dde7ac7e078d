package models

// OffenderSummary is the Department of Corrections search-result row.
type OffenderSummary struct {
	OffenderNumber string  `json:"OffenderNumber" db:"offender_number" maxlen:"50" validate:"required"`
	Name           *string `json:"Name" db:"name" maxlen:"255"`
	Gender         *string `json:"Gender" db:"gender" maxlen:"50"`
	Age            *string `json:"Age" db:"age" maxlen:"20"`
}

// OffenderDetail is the per-offender detail page, owning its charge rows.
type OffenderDetail struct {
	OffenderNumber   string           `json:"OffenderNumber" db:"offender_number" maxlen:"50" validate:"required"`
	Location         *string          `json:"Location" db:"location" maxlen:"255"`
	Offense          *string          `json:"Offense" db:"offense" maxlen:"500"`
	TDDSDD           *Timestamp       `json:"TDD_SDD" db:"tdd_sdd"`
	CommitmentDate   *Timestamp       `json:"CommitmentDate" db:"commitment_date"`
	RecallDate       *Timestamp       `json:"RecallDate" db:"recall_date"`
	InterviewDate    *string          `json:"InterviewDate" db:"interview_date" maxlen:"100"`
	MandatoryMinimum *string          `json:"MandatoryMinimum" db:"mandatory_minimum" maxlen:"100"`
	DecisionType     *string          `json:"DecisionType" db:"decision_type" maxlen:"100"`
	Decision         *string          `json:"Decision" db:"decision" maxlen:"255"`
	DecisionDate     *Timestamp       `json:"DecisionDate" db:"decision_date"`
	EffectiveDate    *Timestamp       `json:"EffectiveDate" db:"effective_date"`
	Charges          []OffenderCharge `json:"Charges" db:"-"`
}

type OffenderCharge struct {
	SupervisionStatus  *string    `json:"SupervisionStatus" db:"supervision_status" maxlen:"100"`
	OffenseClass       *string    `json:"OffenseClass" db:"offense_class" maxlen:"100"`
	CountyOfCommitment *string    `json:"CountyOfCommitment" db:"county_of_commitment" maxlen:"100"`
	EndDate            *Timestamp `json:"EndDate" db:"end_date"`
}

type OffenderSummaryResult struct {
	Inserted int         `json:"inserted"`
	Skipped  int         `json:"skipped"`
	Rejected []Rejection `json:"rejected,omitempty"`
}

type OffenderDetailResult struct {
	Inserted int         `json:"inserted"`
	Updated  int         `json:"updated"`
	Rejected []Rejection `json:"rejected,omitempty"`
}
