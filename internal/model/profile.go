package model

// BusinessProfile is the read-only business context supplied at the start of
// a run. The engine never mutates it.
type BusinessProfile struct {
	UVP         string   `json:"uvp" yaml:"uvp"`                 // unique value proposition statement
	Industry    string   `json:"industry" yaml:"industry"`       // industry category
	Competitors []string `json:"competitors" yaml:"competitors"` // known competitor names
}
