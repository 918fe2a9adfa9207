package sourcing

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/andresuchdata/supplyplan/internal/domain"
	"github.com/rs/zerolog/log"
)

// primarySupplierID is the designated primary source for every plan row
// in the demo directory.
const primarySupplierID = "S001"

// emergencyCapacityShare is the fraction of a supplier's capacity it can
// furnish after a successful negotiation, at a 20% cost premium.
const (
	emergencyCapacityShare = 0.3
	emergencyCostPremium   = 1.2
)

// Resolver detects supplier outages, sources alternatives and runs
// negotiation attempts. The negotiation outcome is a pseudo-random draw;
// callers requiring determinism inject a seeded rand.Rand.
type Resolver struct {
	registry *Registry
	rng      *rand.Rand
	now      func() time.Time
}

// NewResolver builds a resolver over the given registry. A nil rng gets
// a time-seeded source.
func NewResolver(registry *Registry, rng *rand.Rand) *Resolver {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Resolver{registry: registry, rng: rng, now: time.Now}
}

// Result is the sourcing outcome for one reorder plan.
type Result struct {
	Procurement    []domain.ProcurementEntry
	SupplierStatus []domain.SupplierRecord
	Alerts         []string
	Escalations    []domain.EscalationRecord
}

// Resolve walks the reorder plan against the supplier directory. Rows
// with an active primary are marked as such; an outaged primary routes
// to the best-ranked alternative or, failing that, a critical alert.
// Each distinct outaged supplier then gets one negotiation attempt.
func (r *Resolver) Resolve(plan []domain.ReorderPlanRow) Result {
	result := Result{}

	outaged := r.registry.DetectOutages()
	for _, s := range outaged {
		result.Alerts = append(result.Alerts, fmt.Sprintf("OUTAGE: %s is currently in outage", s.Name))
	}
	result.SupplierStatus = r.registry.Snapshot()

	for _, row := range plan {
		primary := r.registry.Get(primarySupplierID)
		if primary == nil {
			// Malformed registry is fatal to the row, not the run.
			result.Alerts = append(result.Alerts, fmt.Sprintf(
				"CRITICAL: Location %s, Item %s - Primary supplier %s missing from registry",
				row.LocationID, row.ItemID, primarySupplierID))
			continue
		}

		entry := domain.ProcurementEntry{
			LocationID:            row.LocationID,
			ItemID:                row.ItemID,
			QtyNeeded:             row.OrderQty,
			PrimarySupplier:       primary.Name,
			PrimarySupplierStatus: string(primary.Status),
			SupplierCost:          row.UnitCost,
			TotalCost:             row.LineCost,
		}

		if primary.Status == domain.SupplierOutage {
			alternatives := r.registry.FindAlternatives(primarySupplierID, row.OrderQty)
			if len(alternatives) > 0 {
				selected := alternatives[0]
				entry.AlternativeSupplier = selected.Name
				entry.AlternativeSupplierID = selected.SupplierID
				entry.AlternativeCost = selected.CostPerUnit
				entry.Status = domain.ProcurementAlternative
				result.Alerts = append(result.Alerts, fmt.Sprintf(
					"ALTERNATIVE SOURCING: Location %s, Item %s - Using %s (Lead time: %dd)",
					row.LocationID, row.ItemID, selected.Name, selected.LeadTimeDays))
			} else {
				entry.Status = domain.ProcurementNoSupplier
				result.Alerts = append(result.Alerts, fmt.Sprintf(
					"CRITICAL: Location %s, Item %s - No alternative suppliers",
					row.LocationID, row.ItemID))
			}
		} else {
			entry.Status = domain.ProcurementActiveSupplier
		}

		result.Procurement = append(result.Procurement, entry)
	}

	// One negotiation attempt per distinct outaged supplier, not per row.
	if len(outaged) > 0 && len(plan) > 0 {
		for _, supplier := range outaged {
			outcome := r.negotiate(supplier)
			if outcome.Success {
				log.Info().Str("supplier", supplier.Name).Int("qty", outcome.Qty).Msg("negotiation successful")
				result.Alerts = append(result.Alerts, fmt.Sprintf(
					"NEGOTIATION: %s - Partial supply arranged (%d units)", supplier.Name, outcome.Qty))
			} else {
				result.Escalations = append(result.Escalations, domain.EscalationRecord{
					Timestamp:      r.now(),
					SupplierID:     supplier.SupplierID,
					Supplier:       supplier.Name,
					Reason:         "Supplier outage + negotiation failed",
					Severity:       domain.SeverityHigh,
					ActionRequired: "Management review required",
				})
				result.Alerts = append(result.Alerts, fmt.Sprintf(
					"ESCALATION: %s - Negotiation failed, requires management review", supplier.Name))
			}
		}
	}

	return result
}

// NegotiationOutcome is the result of one negotiation attempt.
type NegotiationOutcome struct {
	Success        bool
	Qty            int
	CostAdjustment float64
}

// negotiate runs one attempt against a supplier. The attempt counter is
// incremented before the probability is evaluated, so repeated attempts
// get progressively less likely to succeed, floored at 10%.
func (r *Resolver) negotiate(supplier *domain.SupplierRecord) NegotiationOutcome {
	supplier.NegotiationAttempts++

	baseSuccessRate := supplier.ReliabilityScore / 100
	attemptPenalty := 0.1 * float64(supplier.NegotiationAttempts)
	successProbability := baseSuccessRate - attemptPenalty
	if successProbability < 0.1 {
		successProbability = 0.1
	}

	if r.rng.Float64() < successProbability {
		return NegotiationOutcome{
			Success:        true,
			Qty:            int(float64(supplier.Capacity) * emergencyCapacityShare),
			CostAdjustment: emergencyCostPremium,
		}
	}
	return NegotiationOutcome{CostAdjustment: 1.0}
}
