package models

// BulletinReport is one daily bulletin arrest, citation or incident row.
// RowHash is the identity: supplied by the scraper as "id" or derived from the stable fields.
type BulletinReport struct {
	RowHash     string     `json:"id" db:"row_hash" maxlen:"50"`
	SiteID      *string    `json:"site_id" db:"site_id" maxlen:"50"`
	Invid       *string    `json:"invid" db:"invid" maxlen:"50"`
	Key         *string    `json:"key" db:"category_key" maxlen:"50"`
	Location    *string    `json:"location" db:"location" maxlen:"500"`
	Name        *string    `json:"name" db:"name" maxlen:"255"`
	Crime       *string    `json:"crime" db:"crime" maxlen:"500"`
	TimeText    *string    `json:"time" db:"time_text" maxlen:"100"`
	Property    *string    `json:"property" db:"property" maxlen:"255"`
	Officer     *string    `json:"officer" db:"officer" maxlen:"255"`
	Case        *string    `json:"case" db:"case_text" maxlen:"1500"`
	Description *string    `json:"description" db:"description" maxlen:"1000"`
	Race        *string    `json:"race" db:"race" maxlen:"100"`
	Sex         *string    `json:"sex" db:"sex" maxlen:"50"`
	LastName    *string    `json:"lastname" db:"last_name" maxlen:"100"`
	FirstName   *string    `json:"firstname" db:"first_name" maxlen:"100"`
	Charge      *string    `json:"charge" db:"charge" maxlen:"500"`
	MiddleName  *string    `json:"middlename" db:"middle_name" maxlen:"100"`
	Lat         *float64   `json:"lat" db:"lat"`
	Lon         *float64   `json:"lon" db:"lon"`
	EventTime   *Timestamp `json:"event_time" db:"event_time"`
}

// BulletinCandidate is the slice of a stored report needed for logical-duplicate matching.
type BulletinCandidate struct {
	RowHash  string  `db:"row_hash"`
	SiteID   *string `db:"site_id"`
	Key      *string `db:"category_key"`
	Name     *string `db:"name"`
	TimeText *string `db:"time_text"`
	Location *string `db:"location"`
}

type BulletinResult struct {
	Inserted          int         `json:"inserted"`
	Skipped           int         `json:"skipped"`
	LogicalDuplicates int         `json:"logicalDuplicates"`
	InsertedIDs       []string    `json:"insertedIds"`
	Rejected          []Rejection `json:"rejected,omitempty"`
}
