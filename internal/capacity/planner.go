package capacity

import (
	"math"
	"sort"

	"github.com/andresuchdata/supplyplan/internal/domain"
)

// nearCapacityThreshold flags a warehouse constraint above 80%
// utilization; above 95% the constraint is HIGH severity.
const (
	nearCapacityThreshold = 0.8
	highSeverityThreshold = 0.95
)

// minOperatingDays excludes part-week warehouses from shipment planning.
const minOperatingDays = 5

// Planner allocates shipment volume across the warehouse network and
// stress-tests it against surge scenarios.
type Planner struct {
	registry *Registry
}

// NewPlanner builds a capacity planner over the given registry.
func NewPlanner(registry *Registry) *Planner {
	return &Planner{registry: registry}
}

// DetectConstraints returns every warehouse above the near-capacity
// threshold, in registry order.
func (p *Planner) DetectConstraints() []domain.CapacityConstraint {
	var constraints []domain.CapacityConstraint
	for _, w := range p.registry.All() {
		utilization := w.UtilizationRate()
		if utilization <= nearCapacityThreshold {
			continue
		}
		severity := domain.SeverityMedium
		if utilization > highSeverityThreshold {
			severity = domain.SeverityHigh
		}
		constraints = append(constraints, domain.CapacityConstraint{
			WarehouseID:       w.WarehouseID,
			WarehouseName:     w.Name,
			UtilizationRate:   math.Round(utilization*1000) / 1000,
			AvailableCapacity: w.AvailableCapacity(),
			Severity:          severity,
		})
	}
	return constraints
}

// PlanShipments greedily allocates the total quantity across full-week
// warehouses, largest available capacity first. A nil result signals
// that the network cannot fulfill the quantity; the caller converts
// this into a critical alert, it is not an error.
func (p *Planner) PlanShipments(totalQty int, horizonDays int) []domain.ShipmentAllocation {
	if horizonDays <= 0 {
		horizonDays = 7
	}

	var active []*domain.WarehouseRecord
	totalAvailable := 0
	for _, w := range p.registry.All() {
		if w.OperatingDays >= minOperatingDays {
			active = append(active, w)
			totalAvailable += w.AvailableCapacity()
		}
	}

	if totalAvailable < totalQty {
		return nil
	}

	sort.SliceStable(active, func(i, j int) bool {
		return active[i].AvailableCapacity() > active[j].AvailableCapacity()
	})

	var plan []domain.ShipmentAllocation
	remaining := totalQty
	for _, w := range active {
		if remaining <= 0 {
			break
		}

		qty := remaining
		if available := w.AvailableCapacity(); available < qty {
			qty = available
		}
		shipments := (qty + w.MaxShipmentsPerDay - 1) / w.MaxShipmentsPerDay

		halfWeek := w.OperatingDays / 2
		if halfWeek < 1 {
			halfWeek = 1
		}
		estimatedDays := shipments / halfWeek
		if estimatedDays < 1 {
			estimatedDays = 1
		}

		plan = append(plan, domain.ShipmentAllocation{
			WarehouseID:      w.WarehouseID,
			WarehouseName:    w.Name,
			Location:         w.Location,
			Quantity:         qty,
			Shipments:        shipments,
			ShipmentCapacity: w.MaxShipmentsPerDay,
			EstimatedDays:    estimatedDays,
		})
		remaining -= qty
	}

	if remaining > 0 {
		return nil
	}
	return plan
}

// PlanSurge evaluates a demand-surge scenario against total network
// headroom. Feasible iff the surplus demand fits in the free space.
func (p *Planner) PlanSurge(normalDemand int, surgeMultiplier float64) domain.SurgePlan {
	surgeDemand := int(float64(normalDemand) * surgeMultiplier)

	totalCapacity := 0
	totalCurrent := 0
	for _, w := range p.registry.All() {
		totalCapacity += w.TotalCapacity
		totalCurrent += w.CurrentUtilization
	}

	spaceNeeded := surgeDemand - (totalCapacity - totalCurrent)
	canAccommodate := spaceNeeded <= 0

	recommendation := "Current capacity sufficient"
	if !canAccommodate {
		recommendation = "Increase inventory"
	}

	clamped := spaceNeeded
	if clamped < 0 {
		clamped = 0
	}

	return domain.SurgePlan{
		NormalDemand:           normalDemand,
		SurgeMultiplier:        surgeMultiplier,
		SurgeDemand:            surgeDemand,
		CurrentTotalStock:      totalCurrent,
		TotalWarehouseCapacity: totalCapacity,
		SpaceNeededForSurge:    clamped,
		CanAccommodate:         canAccommodate,
		PrePositioningRequired: !canAccommodate,
		Recommendation:         recommendation,
	}
}

// FindAvailableCapacity returns warehouses whose available capacity
// alone covers the quantity, sorted descending. This is a
// single-warehouse sufficiency test, distinct from the multi-warehouse
// allocation in PlanShipments.
func (p *Planner) FindAvailableCapacity(quantity int) []domain.WarehouseRecord {
	var available []domain.WarehouseRecord
	for _, w := range p.registry.All() {
		if w.AvailableCapacity() >= quantity {
			available = append(available, *w)
		}
	}
	sort.SliceStable(available, func(i, j int) bool {
		return available[i].AvailableCapacity() > available[j].AvailableCapacity()
	})
	return available
}
