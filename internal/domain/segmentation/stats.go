package segmentation

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CustomerStats is the derived spend summary of one customer
type CustomerStats struct {
	TotalSpent decimal.Decimal `json:"total_spent"`
	OrderCount int64           `json:"order_count"`
}

// SettledOrder is the slice of an order the aggregator needs
type SettledOrder struct {
	CustomerID uuid.UUID
	Total      decimal.Decimal
}

// StatsAccumulator groups settled orders by customer.
// It implements SettledOrderVisitor so a scanner can stream into it.
type StatsAccumulator struct {
	stats   map[uuid.UUID]CustomerStats
	orders  int64
	ignored int64
}

// NewStatsAccumulator creates an empty accumulator
func NewStatsAccumulator() *StatsAccumulator {
	return &StatsAccumulator{stats: make(map[uuid.UUID]CustomerStats)}
}

// Customers seeds the customer set with zero statistics.
// Only seeded customers receive order totals.
func (a *StatsAccumulator) Customers(ids []uuid.UUID) {
	for _, id := range ids {
		if _, ok := a.stats[id]; !ok {
			a.stats[id] = CustomerStats{TotalSpent: decimal.Zero}
		}
	}
}

// Orders adds a batch of settled orders
func (a *StatsAccumulator) Orders(batch []SettledOrder) error {
	for _, o := range batch {
		s, ok := a.stats[o.CustomerID]
		if !ok {
			a.ignored++
			continue
		}
		s.TotalSpent = s.TotalSpent.Add(o.Total)
		s.OrderCount++
		a.stats[o.CustomerID] = s
		a.orders++
	}
	return nil
}

// Result returns the per-customer statistics
func (a *StatsAccumulator) Result() map[uuid.UUID]CustomerStats {
	return a.stats
}

// OrdersCounted is the number of settled orders attributed to a customer
func (a *StatsAccumulator) OrdersCounted() int64 {
	return a.orders
}

// OrdersIgnored is the number of orders whose customer is not in the tenant's customer set
func (a *StatsAccumulator) OrdersIgnored() int64 {
	return a.ignored
}
