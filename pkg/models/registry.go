package models

// RegistryEntrant is one sex-offender registrant with its full child graph.
type RegistryEntrant struct {
	RegistrantID      string       `json:"registrant_id" db:"registrant_id" maxlen:"50" validate:"required"`
	OCI               *string      `json:"oci" db:"oci" maxlen:"50"`
	LastName          *string      `json:"last_name" db:"last_name" maxlen:"100"`
	FirstName         *string      `json:"first_name" db:"first_name" maxlen:"100"`
	MiddleName        *string      `json:"middle_name" db:"middle_name" maxlen:"100"`
	Gender            *string      `json:"gender" db:"gender" maxlen:"50"`
	Tier              *string      `json:"tier" db:"tier" maxlen:"50"`
	Race              *string      `json:"race" db:"race" maxlen:"100"`
	HairColor         *string      `json:"hair_color" db:"hair_color" maxlen:"50"`
	EyeColor          *string      `json:"eye_color" db:"eye_color" maxlen:"50"`
	HeightInches      *string      `json:"height_inches" db:"height_inches" maxlen:"20"`
	WeightPounds      *string      `json:"weight_pounds" db:"weight_pounds" maxlen:"20"`
	AddressLine1      *string      `json:"address_line_1" db:"address_line_1" maxlen:"255"`
	AddressLine2      *string      `json:"address_line_2" db:"address_line_2" maxlen:"255"`
	City              *string      `json:"city" db:"city" maxlen:"100"`
	State             *string      `json:"state" db:"state" maxlen:"50"`
	PostalCode        *string      `json:"postal_code" db:"postal_code" maxlen:"20"`
	County            *string      `json:"county" db:"county" maxlen:"100"`
	Lat               *string      `json:"lat" db:"lat" maxlen:"50"`
	Lon               *string      `json:"lon" db:"lon" maxlen:"50"`
	Birthdate         *Timestamp   `json:"birthdate" db:"birthdate"`
	VictimMinors      *int         `json:"victim_minors" db:"victim_minors"`
	VictimAdults      *int         `json:"victim_adults" db:"victim_adults"`
	VictimUnknown     *int         `json:"victim_unknown" db:"victim_unknown"`
	RegistrantCluster *string      `json:"registrant_cluster" db:"registrant_cluster" maxlen:"100"`
	PhotoURL          *string      `json:"photo_url" db:"photo_url" maxlen:"1000"`
	Distance          *float64     `json:"distance" db:"distance"`
	LastChanged       *Timestamp   `json:"last_changed" db:"last_changed"`
	PhotoData         []byte       `json:"photo_data,omitempty" db:"-"`
	Convictions       []Conviction `json:"conviction_list" db:"-"`
	Aliases           []Alias      `json:"alias_list" db:"-"`
	Markings          []string     `json:"markings" db:"-" maxlen:"255"`
}

type Conviction struct {
	Text          *string  `json:"conviction_text" db:"conviction_text" maxlen:"1000"`
	RegistrantAge *string  `json:"registrant_age" db:"registrant_age" maxlen:"50"`
	Victims       []Victim `json:"victims" db:"-"`
}

type Victim struct {
	Gender   *string `json:"gender" db:"gender" maxlen:"50"`
	AgeGroup *string `json:"age_group" db:"age_group" maxlen:"50"`
}

type Alias struct {
	LastName   *string `json:"last_name" db:"last_name" maxlen:"100"`
	FirstName  *string `json:"first_name" db:"first_name" maxlen:"100"`
	MiddleName *string `json:"middle_name" db:"middle_name" maxlen:"100"`
}

type RegistryBatchRequest struct {
	Registrants []RegistryEntrant `json:"registrants"`
}

type RegistryResult struct {
	Count    int         `json:"count"`
	Inserted int         `json:"inserted"`
	Updated  int         `json:"updated"`
	Rejected []Rejection `json:"rejected,omitempty"`
}
