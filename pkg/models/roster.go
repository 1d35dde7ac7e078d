package models

// RosterRecord is one jail inmate snapshot keyed by booking id.
type RosterRecord struct {
	BookID          string         `json:"book_id" db:"book_id" maxlen:"50" validate:"required"`
	Invid           *string        `json:"invid" db:"invid" maxlen:"50"`
	FirstName       *string        `json:"firstname" db:"first_name" maxlen:"100"`
	LastName        *string        `json:"lastname" db:"last_name" maxlen:"100"`
	MiddleName      *string        `json:"middlename" db:"middle_name" maxlen:"100"`
	DisplayName     *string        `json:"disp_name" db:"display_name" maxlen:"255"`
	Age             *int           `json:"age" db:"age"`
	DOB             *Timestamp     `json:"dob" db:"dob"`
	Sex             *string        `json:"sex" db:"sex" maxlen:"50"`
	Race            *string        `json:"race" db:"race" maxlen:"100"`
	ArrestDate      *Timestamp     `json:"arrest_date" db:"arrest_date"`
	ReleasedDate    *Timestamp     `json:"released_date" db:"released_date"`
	Agency          *string        `json:"agency" db:"agency" maxlen:"255"`
	DisplayAgency   *string        `json:"disp_agency" db:"display_agency" maxlen:"255"`
	TotalBondAmount *string        `json:"total_bond_amount" db:"total_bond_amount" maxlen:"100"`
	NextCourtDate   *Timestamp     `json:"next_court_date" db:"next_court_date"`
	PhotoData       []byte         `json:"photo_data,omitempty" db:"-"`
	Charges         []RosterCharge `json:"charges" db:"-"`
}

type RosterCharge struct {
	Description  *string `json:"charge_description" db:"charge_description" maxlen:"500"`
	Status       *string `json:"status" db:"status" maxlen:"255"`
	DocketNumber *string `json:"docket_number" db:"docket_number" maxlen:"100"`
	BondAmount   *string `json:"bond_amount" db:"bond_amount" maxlen:"100"`
	Disposition  *string `json:"disp_charge" db:"disposition" maxlen:"255"`
}

type RosterBatchRequest struct {
	Inmates []RosterRecord `json:"inmates"`
}

type RosterResult struct {
	Inserted int         `json:"inserted"`
	Updated  int         `json:"updated"`
	Rejected []Rejection `json:"rejected,omitempty"`
}
