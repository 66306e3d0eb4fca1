// Package complexplane implements the angular coordinate model shared by
// patient encounters and disease reference profiles: a stable angle
// allocator, the complex-plane variable/domain containers, and the mapper
// that turns raw clinical observations into points on the plane.
package complexplane

import (
	"math"
	"math/cmplx"
	"sort"
	"time"

	"github.com/diagnovera/diagnovera/pkg/errors"
	"github.com/diagnovera/diagnovera/pkg/types/clinical"
)

// twoPi is the full circle in radians.
const twoPi = 2 * math.Pi

// Variable is one clinical fact placed in the angular space.  Angle encodes
// the variable's identity (assigned once per (domain, subdomain, name) key
// and never reassigned); Magnitude encodes presence or normalized intensity.
type Variable struct {
	Name      string          `json:"name"`
	Subdomain string          `json:"subdomain,omitempty"`
	Domain    clinical.Domain `json:"domain"`

	// Angle is in radians in [0, 2π).
	Angle float64 `json:"angle"`

	// Magnitude is in [0, 1].
	Magnitude float64 `json:"magnitude"`

	// Weight biases the Bayesian measure; 1.0 when the source supplied none.
	Weight float64 `json:"weight"`

	// Confidence passes through from the upstream extractor unchanged;
	// 1.0 when not supplied.
	Confidence float64 `json:"confidence"`
}

// Phasor returns the variable's complex-plane point, magnitude·e^(iθ).
func (v Variable) Phasor() complex128 {
	return cmplx.Rect(v.Magnitude, v.Angle)
}

// normalizeAngle folds an arbitrary angle into [0, 2π).
func normalizeAngle(a float64) float64 {
	a = math.Mod(a, twoPi)
	if a < 0 {
		a += twoPi
	}
	return a
}

// DomainData is the collection of complex-plane variables for one domain.
// Names are unique within the domain; insertion order is not significant.
type DomainData struct {
	domain clinical.Domain
	vars   []Variable
	index  map[string]int
}

// NewDomainData returns an empty container for the given domain.
func NewDomainData(domain clinical.Domain) *DomainData {
	return &DomainData{
		domain: domain,
		index:  make(map[string]int),
	}
}

// Domain returns the clinical domain this container belongs to.
func (d *DomainData) Domain() clinical.Domain {
	return d.domain
}

// Add inserts a variable.  A second variable with the same name is a
// conflict: the caller decides whether to drop or abort.
func (d *DomainData) Add(v Variable) error {
	if _, exists := d.index[v.Name]; exists {
		return errors.Conflict("duplicate variable in domain").
			WithDetail(string(d.domain) + "/" + v.Name)
	}
	d.index[v.Name] = len(d.vars)
	d.vars = append(d.vars, v)
	return nil
}

// Get looks a variable up by name.
func (d *DomainData) Get(name string) (Variable, bool) {
	if d == nil {
		return Variable{}, false
	}
	i, ok := d.index[name]
	if !ok {
		return Variable{}, false
	}
	return d.vars[i], true
}

// Len returns the number of variables.  Nil-safe: an absent domain is empty.
func (d *DomainData) Len() int {
	if d == nil {
		return 0
	}
	return len(d.vars)
}

// Variables returns a copy of the contained variables.
func (d *DomainData) Variables() []Variable {
	if d == nil {
		return nil
	}
	out := make([]Variable, len(d.vars))
	copy(out, d.vars)
	return out
}

// Encounter is the patient-side aggregate: one DomainData per populated
// domain, built fresh for each diagnosis request and discarded after
// scoring.  A domain absent from Domains is empty, never an error.
type Encounter struct {
	ID        string
	Domains   map[clinical.Domain]*DomainData
	CreatedAt time.Time
}

// Domain returns the data for one domain, nil when absent.
func (e *Encounter) Domain(d clinical.Domain) *DomainData {
	if e == nil {
		return nil
	}
	return e.Domains[d]
}

// VariableCount returns the total number of mapped variables.
func (e *Encounter) VariableCount() int {
	n := 0
	for _, dd := range e.Domains {
		n += dd.Len()
	}
	return n
}

// Profile is the disease-side aggregate, effectively immutable once built.
type Profile struct {
	DiseaseID   string
	Description string
	Category    string
	Sources     []string
	Confidence  float64
	Domains     map[clinical.Domain]*DomainData
}

// Domain returns the data for one domain, nil when absent.
func (p *Profile) Domain(d clinical.Domain) *DomainData {
	if p == nil {
		return nil
	}
	return p.Domains[d]
}

// ProfileFromRecord validates a wire-level profile record and converts it
// into the strongly-typed aggregate.  Malformed variable records (empty
// name, out-of-range magnitude that cannot be clamped sensibly) are dropped;
// a missing disease id invalidates the whole record.
func ProfileFromRecord(rec clinical.ProfileRecord) (*Profile, error) {
	if rec.DiseaseID == "" {
		return nil, errors.New(errors.CodeProfileInvalid, "profile record has no disease id")
	}

	p := &Profile{
		DiseaseID:   rec.DiseaseID,
		Description: rec.Description,
		Category:    rec.Category,
		Sources:     append([]string(nil), rec.Sources...),
		Confidence:  rec.Confidence,
		Domains:     make(map[clinical.Domain]*DomainData, len(rec.Domains)),
	}

	for domain, vars := range rec.Domains {
		if !domain.Valid() {
			continue
		}
		dd := NewDomainData(domain)
		for _, vr := range vars {
			if vr.Name == "" {
				continue
			}
			weight := 1.0
			if vr.Weight != nil {
				weight = *vr.Weight
			}
			v := Variable{
				Name:       vr.Name,
				Subdomain:  vr.Subdomain,
				Domain:     domain,
				Angle:      normalizeAngle(vr.Angle),
				Magnitude:  clamp01(vr.Magnitude),
				Weight:     weight,
				Confidence: 1.0,
			}
			// Duplicates within one record: first occurrence wins.
			_ = dd.Add(v)
		}
		if dd.Len() > 0 {
			p.Domains[domain] = dd
		}
	}

	return p, nil
}

// Record converts the aggregate back to its wire-level form, with domains
// and variables in deterministic order.
func (p *Profile) Record() clinical.ProfileRecord {
	rec := clinical.ProfileRecord{
		DiseaseID:   p.DiseaseID,
		Description: p.Description,
		Category:    p.Category,
		Sources:     append([]string(nil), p.Sources...),
		Confidence:  p.Confidence,
		Domains:     make(map[clinical.Domain][]clinical.VariableRecord, len(p.Domains)),
	}
	for domain, dd := range p.Domains {
		vars := dd.Variables()
		sort.Slice(vars, func(i, j int) bool { return vars[i].Name < vars[j].Name })
		out := make([]clinical.VariableRecord, 0, len(vars))
		for _, v := range vars {
			w := v.Weight
			out = append(out, clinical.VariableRecord{
				Name:      v.Name,
				Subdomain: v.Subdomain,
				Angle:     v.Angle,
				Magnitude: v.Magnitude,
				Weight:    &w,
			})
		}
		rec.Domains[domain] = out
	}
	return rec
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
