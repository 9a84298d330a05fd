package model

// Status distinguishes a computed comparison from a query that had no data.
type Status string

const (
	StatusSuccess          Status = "success"
	StatusInsufficientData Status = "insufficient-data"
)

// ComparisonResult is the answer to a market comparison query.
type ComparisonResult struct {
	Status      Status  `json:"status"`
	Category    string  `json:"category"`
	Period      string  `json:"period,omitempty"`
	Value       float64 `json:"value"`
	Average     float64 `json:"category_average"`
	Ratio       float64 `json:"ratio"`
	Position    string  `json:"position,omitempty"`
	Performance string  `json:"performance,omitempty"`
	SampleCount int     `json:"sample_count"`
	Message     string  `json:"message,omitempty"`
}

// Profile holds decrypted per-field averages of one accumulator.
type Profile struct {
	Category    string            `json:"category"`
	Period      string            `json:"period,omitempty"`
	SampleCount int               `json:"sample_count"`
	Averages    map[Field]float64 `json:"averages"`
}

// PrivacyReport summarizes what the store holds. Every number in it comes
// from cleartext metadata.
type PrivacyReport struct {
	TotalRecords         int            `json:"total_records"`
	TotalArtists         int            `json:"total_artists"`
	CategoryDistribution map[string]int `json:"category_distribution"`
	PeriodDistribution   map[string]int `json:"period_distribution"`
	PrivacyLevel         string         `json:"privacy_level"`
	EncryptionMethod     string         `json:"encryption_method"`
	DataProcessing       string         `json:"data_processing"`
}
