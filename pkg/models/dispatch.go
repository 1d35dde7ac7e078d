package models

// DispatchCall is one CAD call. Calls are write-once; a re-sighted id is skipped.
type DispatchCall struct {
	CallID           string     `json:"id" db:"call_id" maxlen:"50" validate:"required"`
	Invid            *string    `json:"invid" db:"invid" maxlen:"50"`
	StartTime        *Timestamp `json:"starttime" db:"start_time"`
	CloseTime        *Timestamp `json:"closetime" db:"close_time"`
	Agency           *string    `json:"agency" db:"agency" maxlen:"255"`
	Service          *string    `json:"service" db:"service" maxlen:"255"`
	Nature           *string    `json:"nature" db:"nature" maxlen:"500"`
	Address          *string    `json:"address" db:"address" maxlen:"500"`
	GeoX             *float64   `json:"geox" db:"geo_x"`
	GeoY             *float64   `json:"geoy" db:"geo_y"`
	MarkerDetailsXML *string    `json:"marker_details_xml" db:"marker_details_xml"`
	RecKey           *string    `json:"rec_key" db:"rec_key" maxlen:"100"`
	IconURL          *string    `json:"icon_url" db:"icon_url" maxlen:"1000"`
	Icon             *string    `json:"icon" db:"icon" maxlen:"255"`
}

type DispatchBatchRequest struct {
	Calls []DispatchCall `json:"calls"`
}

type DispatchResult struct {
	Inserted    int         `json:"inserted"`
	Skipped     int         `json:"skipped"`
	InsertedIDs []string    `json:"insertedIds"`
	Rejected    []Rejection `json:"rejected,omitempty"`
}
