package complexplane

import (
	"time"

	"github.com/diagnovera/diagnovera/internal/infrastructure/monitoring/logging"
	"github.com/diagnovera/diagnovera/pkg/errors"
	"github.com/diagnovera/diagnovera/pkg/types/clinical"
)

// MapperOptions configures how raw observations become complex-plane points.
type MapperOptions struct {
	// Ranges maps domain → variable name → (min, max) affine-normalization
	// range for numeric observations.
	Ranges map[clinical.Domain]map[string]clinical.Range

	// PresenceFallback, when true, maps a numeric observation whose variable
	// has no configured range to a presence-only magnitude of 1.0 instead of
	// skipping it.
	PresenceFallback bool
}

// Mapper turns a domain's raw observations into DomainData.  It is a
// stateless transformation apart from the shared Allocator it draws angles
// from, so one Mapper may serve concurrent requests.
//
// Malformed observations are dropped with a warning and processing continues
// for the rest of the domain: literature and NLP inputs are inherently noisy
// and one bad field must never block a full diagnosis.  The only aborting
// condition is angle-sector exhaustion.
type Mapper struct {
	alloc  *Allocator
	opts   MapperOptions
	logger logging.Logger
}

// NewMapper constructs a Mapper drawing angles from alloc.
func NewMapper(alloc *Allocator, opts MapperOptions, log logging.Logger) *Mapper {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Mapper{alloc: alloc, opts: opts, logger: log.Named("mapper")}
}

// MapDomain converts one domain's raw observations.  An empty observation
// slice yields an empty DomainData, not an error.  Unknown variable names
// are not rejected: the allocator mints a new angle, because both the
// reference library and incoming patient text may introduce previously
// unseen findings.
func (m *Mapper) MapDomain(domain clinical.Domain, observations []clinical.Observation) (*DomainData, error) {
	if !domain.Valid() {
		return nil, errors.New(errors.CodeUnknownDomain, "cannot map observations").
			WithDetail(string(domain))
	}

	dd := NewDomainData(domain)
	for _, obs := range observations {
		v, ok, err := m.mapObservation(domain, obs)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		if addErr := dd.Add(v); addErr != nil {
			m.logger.Warn("dropping duplicate observation",
				logging.String("domain", string(domain)),
				logging.String("name", obs.Name),
			)
		}
	}
	return dd, nil
}

// MapEncounter converts a full observation set into a patient encounter.
// Domains absent from the set are simply absent from the result.
func (m *Mapper) MapEncounter(encounterID string, set clinical.ObservationSet) (*Encounter, error) {
	enc := &Encounter{
		ID:        encounterID,
		Domains:   make(map[clinical.Domain]*DomainData, len(set)),
		CreatedAt: time.Now().UTC(),
	}
	for _, domain := range clinical.DomainSequence() {
		observations, ok := set[domain]
		if !ok || len(observations) == 0 {
			continue
		}
		dd, err := m.MapDomain(domain, observations)
		if err != nil {
			return nil, err
		}
		if dd.Len() > 0 {
			enc.Domains[domain] = dd
		}
	}
	for domain := range set {
		if !domain.Valid() {
			m.logger.Warn("ignoring observations for unknown domain",
				logging.String("domain", string(domain)))
		}
	}
	return enc, nil
}

// MapProfile builds a disease-side aggregate from raw observation sets, the
// same way an encounter is built.  Used by the library builder when the
// literature pipeline supplies extracted findings rather than pre-computed
// variable records.
func (m *Mapper) MapProfile(diseaseID, description string, set clinical.ObservationSet) (*Profile, error) {
	if diseaseID == "" {
		return nil, errors.New(errors.CodeProfileInvalid, "profile has no disease id")
	}
	enc, err := m.MapEncounter(diseaseID, set)
	if err != nil {
		return nil, err
	}
	return &Profile{
		DiseaseID:   diseaseID,
		Description: description,
		Domains:     enc.Domains,
	}, nil
}

// mapObservation converts one observation, reporting ok=false for a dropped
// (malformed or unrepresentable) observation and a non-nil error only for
// allocation failures.
func (m *Mapper) mapObservation(domain clinical.Domain, obs clinical.Observation) (Variable, bool, error) {
	if obs.Name == "" {
		m.warnMalformed(domain, obs.Name, "missing name")
		return Variable{}, false, nil
	}
	if obs.Weight != nil && *obs.Weight < 0 {
		m.warnMalformed(domain, obs.Name, "negative weight")
		return Variable{}, false, nil
	}

	var magnitude float64
	switch classify(domain, obs) {
	case kindNumeric:
		mag, ok := m.numericMagnitude(domain, obs)
		if !ok {
			return Variable{}, false, nil
		}
		magnitude = mag
	case kindCategorical:
		// Present=true → asserted, Present=false → explicitly negated.
		if *obs.Present {
			magnitude = 1.0
		} else {
			magnitude = 0.0
		}
	default:
		m.warnMalformed(domain, obs.Name, "missing value for its domain type")
		return Variable{}, false, nil
	}

	angle, err := m.alloc.Angle(domain, obs.Subdomain, obs.Name)
	if err != nil {
		return Variable{}, false, err
	}

	weight := 1.0
	if obs.Weight != nil {
		weight = *obs.Weight
	}
	confidence := 1.0
	if obs.Confidence != nil {
		confidence = *obs.Confidence
	}

	return Variable{
		Name:       obs.Name,
		Subdomain:  obs.Subdomain,
		Domain:     domain,
		Angle:      angle,
		Magnitude:  magnitude,
		Weight:     weight,
		Confidence: confidence,
	}, true, nil
}

// numericMagnitude affine-normalizes a numeric value into [0, 1] using the
// variable's configured range.  Variables without a range are skipped, or
// mapped to a presence magnitude of 1.0 under PresenceFallback.
func (m *Mapper) numericMagnitude(domain clinical.Domain, obs clinical.Observation) (float64, bool) {
	r, ok := m.rangeFor(domain, obs.Name)
	if !ok {
		if m.opts.PresenceFallback {
			return 1.0, true
		}
		m.logger.Debug("skipping numeric observation without a configured range",
			logging.String("domain", string(domain)),
			logging.String("name", obs.Name),
		)
		return 0, false
	}
	if r.Max <= r.Min {
		m.warnMalformed(domain, obs.Name, "degenerate normalization range")
		return 0, false
	}
	return clamp01((*obs.Value - r.Min) / (r.Max - r.Min)), true
}

func (m *Mapper) rangeFor(domain clinical.Domain, name string) (clinical.Range, bool) {
	vars, ok := m.opts.Ranges[domain]
	if !ok {
		return clinical.Range{}, false
	}
	r, ok := vars[name]
	return r, ok
}

func (m *Mapper) warnMalformed(domain clinical.Domain, name, reason string) {
	m.logger.Warn("dropping malformed observation",
		logging.String("domain", string(domain)),
		logging.String("name", name),
		logging.String("reason", reason),
		logging.Err(errors.MalformedObservation(name, reason)),
	)
}

type observationKind int

const (
	kindMalformed observationKind = iota
	kindNumeric
	kindCategorical
)

// classify decides which normalization an observation gets.  Vitals are
// strictly numeric; laboratory is mixed (numeric when a value is present,
// categorical when only an assertion is); the text-derived domains are
// categorical but accept a numeric value where one is configured (e.g. age
// in subjective demographics).
func classify(domain clinical.Domain, obs clinical.Observation) observationKind {
	switch domain {
	case clinical.DomainVitals:
		if obs.Value != nil {
			return kindNumeric
		}
		return kindMalformed
	case clinical.DomainLaboratory:
		if obs.Value != nil {
			return kindNumeric
		}
		if obs.Present != nil {
			return kindCategorical
		}
		return kindMalformed
	default:
		if obs.Present != nil {
			return kindCategorical
		}
		if obs.Value != nil {
			return kindNumeric
		}
		return kindMalformed
	}
}
