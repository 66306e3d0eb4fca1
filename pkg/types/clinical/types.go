// Package clinical defines the wire-level clinical data shapes exchanged
// between the DiagnoVera core and its external collaborators: the NLP
// extraction service that supplies observations, the literature pipeline
// that supplies reference profiles, and the HTTP layer that relays results.
//
// Payloads from those collaborators are loosely-typed JSON; everything in
// this package is the validated, strongly-typed form they are converted into
// at the boundary.
package clinical

import (
	"fmt"
)

// ─────────────────────────────────────────────────────────────────────────────
// Clinical domains
// ─────────────────────────────────────────────────────────────────────────────

// Domain is one of the six fixed clinical categories used to bucket findings.
type Domain string

const (
	DomainSubjective  Domain = "subjective"
	DomainVitals      Domain = "vitals"
	DomainExamination Domain = "examination"
	DomainLaboratory  Domain = "laboratory"
	DomainImaging     Domain = "imaging"
	DomainProcedures  Domain = "procedures_pathology"
)

// domainSequence is the canonical enumeration order.  It fixes both the
// angle-sector layout of the complex plane and the adjacency chain used by
// the domain-transition (Markov) measure, so it must never be reordered.
var domainSequence = [...]Domain{
	DomainSubjective,
	DomainVitals,
	DomainExamination,
	DomainLaboratory,
	DomainImaging,
	DomainProcedures,
}

// DomainSequence returns the six domains in canonical order.
func DomainSequence() []Domain {
	seq := make([]Domain, len(domainSequence))
	copy(seq, domainSequence[:])
	return seq
}

// DomainCount is the number of clinical domains.
const DomainCount = len(domainSequence)

// Index returns the domain's position in the canonical sequence, or -1 for
// an unknown domain.
func (d Domain) Index() int {
	for i, s := range domainSequence {
		if s == d {
			return i
		}
	}
	return -1
}

// Valid reports whether d is one of the six fixed domains.
func (d Domain) Valid() bool {
	return d.Index() >= 0
}

// ParseDomain converts a wire string into a Domain.  The short form
// "procedures" used by older payloads is accepted as an alias.
func ParseDomain(s string) (Domain, error) {
	if s == "procedures" {
		return DomainProcedures, nil
	}
	d := Domain(s)
	if !d.Valid() {
		return "", fmt.Errorf("clinical: unknown domain %q", s)
	}
	return d, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Observations (encounter side, supplied by the NLP extractor)
// ─────────────────────────────────────────────────────────────────────────────

// Observation is one raw clinical observation for a single variable.
// Categorical domains populate Present (true = asserted, false = explicitly
// negated); numeric domains populate Value.  Names the extractor did not
// mention are simply absent, never materialized at magnitude 0.
type Observation struct {
	Name       string   `json:"name"`
	Subdomain  string   `json:"subdomain,omitempty"`
	Present    *bool    `json:"present,omitempty"`
	Value      *float64 `json:"value,omitempty"`
	Confidence *float64 `json:"confidence,omitempty"`
	Weight     *float64 `json:"weight,omitempty"`
}

// ObservationSet maps each domain to its raw observations.  A domain absent
// from the map is treated as empty, never as an error.
type ObservationSet map[Domain][]Observation

// EncounterInput is the payload of one diagnosis request.
type EncounterInput struct {
	EncounterID  string             `json:"encounter_id,omitempty"`
	Observations ObservationSet     `json:"observations"`
	Prior        map[string]float64 `json:"prior,omitempty"`
	TopK         int                `json:"top_k,omitempty"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Reference profiles (disease side, supplied by the literature pipeline)
// ─────────────────────────────────────────────────────────────────────────────

// Range is a fixed (min, max) normalization range for a numeric variable.
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// VariableRecord is one expected finding inside a reference profile.
// Angle is in radians in [0, 2π); Magnitude is in [0, 1].
type VariableRecord struct {
	Name      string   `json:"name"`
	Subdomain string   `json:"subdomain,omitempty"`
	Angle     float64  `json:"angle"`
	Magnitude float64  `json:"magnitude"`
	Range     *Range   `json:"range,omitempty"`
	Weight    *float64 `json:"weight,omitempty"`
}

// ProfileRecord is the persisted, wire-level form of one disease profile.
type ProfileRecord struct {
	DiseaseID   string                      `json:"disease_id"` // ICD-10 code
	Description string                      `json:"description,omitempty"`
	Category    string                      `json:"category,omitempty"`
	Sources     []string                    `json:"sources,omitempty"`
	Confidence  float64                     `json:"confidence,omitempty"`
	Domains     map[Domain][]VariableRecord `json:"domains"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Ranked output
// ─────────────────────────────────────────────────────────────────────────────

// ComponentScores carries the three independent similarity measures for one
// candidate disease.  Every component is in [0, 1].
type ComponentScores struct {
	Bayesian float64 `json:"bayesian"`
	Kuramoto float64 `json:"kuramoto"`
	Markov   float64 `json:"markov"`
}

// RankedDiagnosis is one entry of the differential-diagnosis list.
type RankedDiagnosis struct {
	DiseaseID   string          `json:"disease_id"`
	Description string          `json:"description,omitempty"`
	Combined    float64         `json:"combined_score"`
	Components  ComponentScores `json:"component_scores"`

	// Posterior is the Bayesian-normalized probability of this candidate
	// across the scored set (uniform prior unless the request supplied one).
	Posterior float64 `json:"posterior"`

	// MatchedVariables / PatientVariables feed downstream confidence
	// calculations; unmatched variables never affect the scores themselves.
	MatchedVariables int `json:"matched_variables"`
	PatientVariables int `json:"patient_variables"`
}
