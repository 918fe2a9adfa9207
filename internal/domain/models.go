package domain

import "time"

// HistoryPoint is a single observed daily sales quantity for a
// (location, item) pair. Quantities are clamped to >= 0 at ingestion;
// negative returns or corrections are not modeled.
type HistoryPoint struct {
	LocationID string    `json:"location_id"`
	ItemID     string    `json:"item_id"`
	Date       time.Time `json:"date"`
	Quantity   float64   `json:"quantity"`
}

// FeatureRow carries the engineered features for one history point.
// Rows whose lag windows fall outside the series are dropped.
type FeatureRow struct {
	LocationID string    `json:"location_id"`
	ItemID     string    `json:"item_id"`
	Date       time.Time `json:"date"`
	Quantity   float64   `json:"quantity"`
	Lag1       float64   `json:"lag_1"`
	Lag7       float64   `json:"lag_7"`
	Rolling7   float64   `json:"rolling_7"`
	Weekday    int       `json:"weekday"`
	Month      int       `json:"month"`
}

// ForecastEntry is one forecasted day for a (location, item) pair.
type ForecastEntry struct {
	LocationID  string  `json:"location_id"`
	ItemID      string  `json:"item_id"`
	HorizonDay  int     `json:"horizon_day"`
	Forecast    float64 `json:"forecast"`
	Seasonality string  `json:"seasonality_pattern"`
}

// SeasonalityInfo classifies a historical series.
type SeasonalityInfo struct {
	Pattern        string  `json:"pattern"`
	Confidence     float64 `json:"confidence"`
	MeanDailySales float64 `json:"mean_daily_sales"`
	StdDev         float64 `json:"std_dev"`
	SurgeRatio     float64 `json:"surge_ratio"`
}

// Seasonality patterns, first match wins in the detector.
const (
	PatternInsufficientData  = "insufficient_data"
	PatternSurgeDetected     = "surge_detected"
	PatternWeeklySeasonality = "weekly_seasonality"
	PatternStableDemand      = "stable_demand"
)

// ReorderPlanRow is one line of the budget-aware reorder plan.
// ReorderPoint = MeanDailyDemand*leadTime + SafetyStock;
// SafetyStock = z95 * std * sqrt(leadTime).
type ReorderPlanRow struct {
	LocationID      string  `json:"location_id"`
	ItemID          string  `json:"item_id"`
	MeanDailyDemand float64 `json:"mean_daily_demand"`
	SafetyStock     float64 `json:"safety_stock"`
	ReorderPoint    float64 `json:"reorder_point"`
	OrderQty        float64 `json:"order_qty"`
	UnitCost        float64 `json:"unit_cost"`
	LineCost        float64 `json:"line_cost"`
	CostRatio       float64 `json:"cumulative_cost_ratio"`
	BudgetCompliant bool    `json:"budget_compliant"`
}

// BudgetSummary reports aggregate budget usage for a plan.
type BudgetSummary struct {
	Limit             float64 `json:"limit"`
	CostPerUnit       float64 `json:"cost_per_unit"`
	TotalCost         float64 `json:"total_cost"`
	BudgetUtilization float64 `json:"budget_utilization"`
	BudgetExceeded    bool    `json:"budget_exceeded"`
}

// SupplierStatus is the operational status of a supplier.
type SupplierStatus string

const (
	SupplierActive      SupplierStatus = "active"
	SupplierOutage      SupplierStatus = "outage"
	SupplierDelayed     SupplierStatus = "delayed"
	SupplierNegotiating SupplierStatus = "negotiating"
	SupplierEscalated   SupplierStatus = "escalated"
)

// SupplierRecord is a mutable registry entry. Status and
// NegotiationAttempts change during a run and persist across runs
// within the process lifetime.
type SupplierRecord struct {
	SupplierID          string         `json:"supplier_id"`
	Name                string         `json:"name"`
	Status              SupplierStatus `json:"status"`
	Location            string         `json:"location"`
	Capacity            int            `json:"capacity"`
	LeadTimeDays        int            `json:"lead_time_days"`
	CostPerUnit         float64        `json:"cost_per_unit"`
	ReliabilityScore    float64        `json:"reliability_score"`
	NegotiationAttempts int            `json:"negotiation_attempts"`
}

// ProcurementEntry records the sourcing outcome for one plan row.
type ProcurementEntry struct {
	LocationID            string  `json:"location_id"`
	ItemID                string  `json:"item_id"`
	QtyNeeded             float64 `json:"qty_needed"`
	PrimarySupplier       string  `json:"primary_supplier"`
	PrimarySupplierStatus string  `json:"primary_supplier_status"`
	AlternativeSupplier   string  `json:"alternative_supplier,omitempty"`
	AlternativeSupplierID string  `json:"alternative_supplier_id,omitempty"`
	AlternativeCost       float64 `json:"alternative_cost,omitempty"`
	SupplierCost          float64 `json:"supplier_cost"`
	TotalCost             float64 `json:"total_cost"`
	Status                string  `json:"procurement_status"`
}

// Procurement statuses.
const (
	ProcurementActiveSupplier = "active_supplier"
	ProcurementAlternative    = "sourced_from_alternative"
	ProcurementNoSupplier     = "no_supplier"
)

// EscalationRecord is routed to a human decision-maker when automated
// resolution fails. Append-only, scoped to one run.
type EscalationRecord struct {
	Timestamp      time.Time `json:"timestamp"`
	SupplierID     string    `json:"supplier_id"`
	Supplier       string    `json:"supplier"`
	Reason         string    `json:"reason"`
	Severity       string    `json:"severity"`
	ActionRequired string    `json:"action_required"`
}

// Escalation and constraint severities.
const (
	SeverityLow    = "LOW"
	SeverityMedium = "MEDIUM"
	SeverityHigh   = "HIGH"
)

// WarehouseRecord describes one warehouse in the network.
// AvailableCapacity is derived and deliberately not clamped; injected
// data where utilization exceeds capacity surfaces as an invariant
// violation downstream rather than being silently corrected.
type WarehouseRecord struct {
	WarehouseID        string `json:"warehouse_id"`
	Name               string `json:"name"`
	Location           string `json:"location"`
	TotalCapacity      int    `json:"total_capacity"`
	CurrentUtilization int    `json:"current_utilization"`
	OperatingDays      int    `json:"operating_days"`
	MaxShipmentsPerDay int    `json:"max_shipments_per_day"`
}

// AvailableCapacity returns total capacity minus current utilization.
func (w WarehouseRecord) AvailableCapacity() int {
	return w.TotalCapacity - w.CurrentUtilization
}

// UtilizationRate returns the utilization fraction, 0 when capacity is 0.
func (w WarehouseRecord) UtilizationRate() float64 {
	if w.TotalCapacity <= 0 {
		return 0
	}
	return float64(w.CurrentUtilization) / float64(w.TotalCapacity)
}

// CapacityConstraint flags a warehouse running near capacity.
type CapacityConstraint struct {
	WarehouseID       string  `json:"warehouse_id"`
	WarehouseName     string  `json:"warehouse_name"`
	UtilizationRate   float64 `json:"utilization_rate"`
	AvailableCapacity int     `json:"available_capacity"`
	Severity          string  `json:"severity"`
}

// ShipmentAllocation is one leg of a greedy shipment plan.
type ShipmentAllocation struct {
	WarehouseID      string `json:"warehouse_id"`
	WarehouseName    string `json:"warehouse_name"`
	Location         string `json:"location"`
	Quantity         int    `json:"quantity"`
	Shipments        int    `json:"shipments"`
	ShipmentCapacity int    `json:"shipment_capacity"`
	EstimatedDays    int    `json:"estimated_days"`
}

// SurgePlan evaluates a demand-surge scenario against total network capacity.
type SurgePlan struct {
	NormalDemand           int     `json:"normal_demand"`
	SurgeMultiplier        float64 `json:"surge_multiplier"`
	SurgeDemand            int     `json:"surge_demand"`
	CurrentTotalStock      int     `json:"current_total_stock"`
	TotalWarehouseCapacity int     `json:"total_warehouse_capacity"`
	SpaceNeededForSurge    int     `json:"space_needed_for_surge"`
	CanAccommodate         bool    `json:"can_accommodate"`
	PrePositioningRequired bool    `json:"pre_positioning_required"`
	Recommendation         string  `json:"recommendation"`
}

// EvaluationMetrics summarizes the forecast distribution after approval.
type EvaluationMetrics struct {
	MeanForecast         float64 `json:"mean_forecast"`
	StdForecast          float64 `json:"std_forecast"`
	TotalForecast        float64 `json:"total_forecast"`
	MinForecast          float64 `json:"min_forecast"`
	MaxForecast          float64 `json:"max_forecast"`
	MedianForecast       float64 `json:"median_forecast"`
	P90Forecast          float64 `json:"p90_forecast"`
	Skewness             float64 `json:"skewness"`
	ConfidenceAdjustment float64 `json:"confidence_adjustment"`
	AdjustedMeanForecast float64 `json:"adjusted_mean_forecast"`
	RiskComment          string  `json:"risk_comment,omitempty"`
}

// CacheStats reports forecast cache effectiveness for a run.
type CacheStats struct {
	TotalRequests int     `json:"total_requests"`
	CacheHits     int     `json:"cache_hits"`
	CacheMisses   int     `json:"cache_misses"`
	HitRate       float64 `json:"hit_rate"`
	CachedItems   int     `json:"cached_items"`
}
