package complexplane

import (
	"math"
	"sync"

	"github.com/diagnovera/diagnovera/pkg/errors"
	"github.com/diagnovera/diagnovera/pkg/types/clinical"
)

// sectorWidth is the angular span owned by each of the six domains.
const sectorWidth = twoPi / float64(clinical.DomainCount)

// allocKey identifies one variable in the allocation table.  Subdomain is
// part of the key so that, e.g., a "pain" chief complaint and a "pain" item
// in past history occupy distinct angles.
type allocKey struct {
	domain    clinical.Domain
	subdomain string
	name      string
}

// AllocatorConfig carries the allocator's single tunable.
type AllocatorConfig struct {
	// IncrementDegrees is the angular step between consecutive keys inside a
	// domain's sector.  It determines sector capacity:
	// floor(60° / increment) distinct keys per domain.
	IncrementDegrees float64
}

// Allocator assigns a stable, unique angular coordinate to every
// (domain, subdomain, name) triple.  Each domain owns a disjoint 60° sector
// of the circle, laid out in the canonical domain order; within a sector,
// each new distinct key receives the next increment offset.
//
// The allocation table is the only process-wide mutable state in the core.
// It is append-only (no deletion is exposed) and safe for concurrent use:
// the check-then-insert step is serialized so two concurrent first
// allocations of the same key cannot mint different angles.
type Allocator struct {
	mu        sync.RWMutex
	increment float64 // radians
	capacity  int     // slots per sector
	table     map[allocKey]float64
	counts    map[clinical.Domain]int
}

// NewAllocator constructs an Allocator.  A non-positive or oversized
// increment falls back to 1°.
func NewAllocator(cfg AllocatorConfig) *Allocator {
	deg := cfg.IncrementDegrees
	if deg <= 0 || deg > 60 {
		deg = 1
	}
	increment := deg * math.Pi / 180
	return &Allocator{
		increment: increment,
		// The epsilon keeps float rounding from minting one extra slot that
		// would land on the next domain's sector base.
		capacity: int(math.Floor(sectorWidth/increment + 1e-9)),
		table:    make(map[allocKey]float64),
		counts:   make(map[clinical.Domain]int),
	}
}

// Angle returns the angular coordinate for the given key, allocating the
// next free slot in the domain's sector on first sight.  Re-deriving the
// angle for a key always reproduces the same value.  When the sector has no
// free slot left, Angle fails with CodeSectorExhausted; it never wraps
// around, because aliasing two variables to one angle would silently corrupt
// every later similarity computation involving either.
func (a *Allocator) Angle(domain clinical.Domain, subdomain, name string) (float64, error) {
	idx := domain.Index()
	if idx < 0 {
		return 0, errors.New(errors.CodeUnknownDomain, "cannot allocate angle").
			WithDetail(string(domain))
	}
	if name == "" {
		return 0, errors.InvalidParam("cannot allocate angle for empty variable name")
	}

	k := allocKey{domain: domain, subdomain: subdomain, name: name}

	// Reads of already-allocated angles take only the shared lock.
	a.mu.RLock()
	angle, ok := a.table[k]
	a.mu.RUnlock()
	if ok {
		return angle, nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	// Re-check: another goroutine may have allocated while we upgraded.
	if angle, ok = a.table[k]; ok {
		return angle, nil
	}

	if a.counts[domain] >= a.capacity {
		return 0, errors.SectorExhausted(string(domain))
	}

	angle = sectorBase(idx) + float64(a.counts[domain])*a.increment
	a.table[k] = angle
	a.counts[domain]++
	return angle, nil
}

// Size returns the number of allocated keys.  Exposed for metrics.
func (a *Allocator) Size() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.table)
}

// SectorCapacity returns the number of distinct keys one domain can hold.
func (a *Allocator) SectorCapacity() int {
	return a.capacity
}

// sectorBase returns the start angle of the i-th domain's sector.
func sectorBase(i int) float64 {
	return float64(i) * sectorWidth
}
