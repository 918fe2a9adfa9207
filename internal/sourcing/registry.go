package sourcing

import (
	"sort"
	"sync"

	"github.com/andresuchdata/supplyplan/internal/domain"
)

// Registry is the supplier directory. Records are mutated in place
// during a run (status changes, negotiation attempt counters) and live
// for the process lifetime; concurrent runs must either share it under
// the orchestrator's run lock or work on a Clone.
type Registry struct {
	mu        sync.Mutex
	suppliers map[string]*domain.SupplierRecord
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{suppliers: make(map[string]*domain.SupplierRecord)}
}

// NewDemoRegistry seeds the registry with the demo supplier table.
// Regional Distributors starts in outage.
func NewDemoRegistry() *Registry {
	r := NewRegistry()
	for _, s := range []domain.SupplierRecord{
		{SupplierID: "S001", Name: "Premium Supplies Co", Status: domain.SupplierActive, Location: "USA", Capacity: 10000, LeadTimeDays: 5, CostPerUnit: 50, ReliabilityScore: 95},
		{SupplierID: "S002", Name: "Global Imports Ltd", Status: domain.SupplierActive, Location: "China", Capacity: 50000, LeadTimeDays: 15, CostPerUnit: 35, ReliabilityScore: 85},
		{SupplierID: "S003", Name: "Regional Distributors", Status: domain.SupplierOutage, Location: "Mexico", Capacity: 5000, LeadTimeDays: 7, CostPerUnit: 45, ReliabilityScore: 75},
		{SupplierID: "S004", Name: "Fast Track Logistics", Status: domain.SupplierActive, Location: "USA", Capacity: 8000, LeadTimeDays: 3, CostPerUnit: 60, ReliabilityScore: 90},
		{SupplierID: "S005", Name: "Emergency Supply Hub", Status: domain.SupplierActive, Location: "USA", Capacity: 2000, LeadTimeDays: 1, CostPerUnit: 85, ReliabilityScore: 92},
	} {
		r.Put(s)
	}
	return r
}

// Put inserts or replaces a supplier record.
func (r *Registry) Put(s domain.SupplierRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := s
	r.suppliers[s.SupplierID] = &copied
}

// Get returns the record for an ID, or nil when unknown.
func (r *Registry) Get(supplierID string) *domain.SupplierRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.suppliers[supplierID]
}

// All returns every record sorted by supplier ID.
func (r *Registry) All() []*domain.SupplierRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*domain.SupplierRecord, 0, len(r.suppliers))
	for _, s := range r.suppliers {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SupplierID < out[j].SupplierID })
	return out
}

// ByStatus returns records with the given status, sorted by ID.
func (r *Registry) ByStatus(status domain.SupplierStatus) []*domain.SupplierRecord {
	var out []*domain.SupplierRecord
	for _, s := range r.All() {
		if s.Status == status {
			out = append(out, s)
		}
	}
	return out
}

// DetectOutages returns every supplier currently in outage.
func (r *Registry) DetectOutages() []*domain.SupplierRecord {
	return r.ByStatus(domain.SupplierOutage)
}

// FindAlternatives returns active suppliers other than the excluded one
// whose capacity covers the required quantity, ranked by reliability
// descending with cost ascending as the tie-break.
func (r *Registry) FindAlternatives(excludeID string, requiredCapacity float64) []*domain.SupplierRecord {
	var alternatives []*domain.SupplierRecord
	for _, s := range r.ByStatus(domain.SupplierActive) {
		if s.SupplierID == excludeID {
			continue
		}
		if float64(s.Capacity) >= requiredCapacity {
			alternatives = append(alternatives, s)
		}
	}
	sort.SliceStable(alternatives, func(i, j int) bool {
		if alternatives[i].ReliabilityScore != alternatives[j].ReliabilityScore {
			return alternatives[i].ReliabilityScore > alternatives[j].ReliabilityScore
		}
		return alternatives[i].CostPerUnit < alternatives[j].CostPerUnit
	})
	return alternatives
}

// SetStatus updates the status of a supplier when it exists.
func (r *Registry) SetStatus(supplierID string, status domain.SupplierStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.suppliers[supplierID]; ok {
		s.Status = status
	}
}

// Clone deep-copies the registry. Used by tests and by callers that
// need run isolation from the process-wide directory.
func (r *Registry) Clone() *Registry {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := NewRegistry()
	for id, s := range r.suppliers {
		copied := *s
		clone.suppliers[id] = &copied
	}
	return clone
}

// Snapshot returns value copies of all records, for serialization.
func (r *Registry) Snapshot() []domain.SupplierRecord {
	records := r.All()
	out := make([]domain.SupplierRecord, len(records))
	for i, s := range records {
		out[i] = *s
	}
	return out
}
