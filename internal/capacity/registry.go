package capacity

import (
	"sort"
	"sync"

	"github.com/andresuchdata/supplyplan/internal/domain"
)

// Registry is the warehouse directory. Like the supplier registry it is
// process-wide and mutated in place; runs are serialized by the
// orchestrator or given a Clone.
type Registry struct {
	mu         sync.Mutex
	warehouses map[string]*domain.WarehouseRecord
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{warehouses: make(map[string]*domain.WarehouseRecord)}
}

// NewDemoRegistry seeds the registry with the demo warehouse network.
// Regional Storage starts near capacity.
func NewDemoRegistry() *Registry {
	r := NewRegistry()
	for _, w := range []domain.WarehouseRecord{
		{WarehouseID: "W001", Name: "East Coast Hub", Location: "New Jersey", TotalCapacity: 100000, CurrentUtilization: 65000, OperatingDays: 7, MaxShipmentsPerDay: 500},
		{WarehouseID: "W002", Name: "Central Hub", Location: "Texas", TotalCapacity: 80000, CurrentUtilization: 55000, OperatingDays: 7, MaxShipmentsPerDay: 400},
		{WarehouseID: "W003", Name: "West Coast Hub", Location: "California", TotalCapacity: 120000, CurrentUtilization: 90000, OperatingDays: 7, MaxShipmentsPerDay: 600},
		{WarehouseID: "W004", Name: "Regional Storage", Location: "Illinois", TotalCapacity: 50000, CurrentUtilization: 48000, OperatingDays: 5, MaxShipmentsPerDay: 200},
	} {
		r.Put(w)
	}
	return r
}

// Put inserts or replaces a warehouse record.
func (r *Registry) Put(w domain.WarehouseRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := w
	r.warehouses[w.WarehouseID] = &copied
}

// Get returns the record for an ID, or nil when unknown.
func (r *Registry) Get(warehouseID string) *domain.WarehouseRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.warehouses[warehouseID]
}

// All returns every record sorted by warehouse ID.
func (r *Registry) All() []*domain.WarehouseRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*domain.WarehouseRecord, 0, len(r.warehouses))
	for _, w := range r.warehouses {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].WarehouseID < out[j].WarehouseID })
	return out
}

// Clone deep-copies the registry.
func (r *Registry) Clone() *Registry {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := NewRegistry()
	for id, w := range r.warehouses {
		copied := *w
		clone.warehouses[id] = &copied
	}
	return clone
}

// Snapshot returns value copies of all records, for serialization.
func (r *Registry) Snapshot() []domain.WarehouseRecord {
	records := r.All()
	out := make([]domain.WarehouseRecord, len(records))
	for i, w := range records {
		out[i] = *w
	}
	return out
}
