package domain

// Stock is a tracked ticker. The ingestion pipeline only reads stocks.
type Stock struct {
	ID          string `json:"id" bson:"_id"`
	Ticker      string `json:"ticker" bson:"ticker"`
	CompanyName string `json:"company_name" bson:"company_name"`
	Sector      string `json:"sector,omitempty" bson:"sector,omitempty"`
}

// DisplayName returns the company name, or the ticker when no name is known.
func (s Stock) DisplayName() string {
	if s.CompanyName != "" {
		return s.CompanyName
	}
	return s.Ticker
}
