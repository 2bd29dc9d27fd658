package partner

import (
	"github.com/erp/backoffice/internal/domain/shared"
	"github.com/google/uuid"
)

// Aggregate type constant
const AggregateTypeCustomer = "Customer"

// Event type constants
const (
	EventTypeCustomerCreated     = "CustomerCreated"
	EventTypeCustomerTagsChanged = "CustomerTagsChanged"
)

// CustomerCreatedEvent is published when a new customer is created
type CustomerCreatedEvent struct {
	shared.BaseDomainEvent
	CustomerID uuid.UUID `json:"customer_id"`
	Code       string    `json:"code"`
	Name       string    `json:"name"`
}

// NewCustomerCreatedEvent creates a new CustomerCreatedEvent
func NewCustomerCreatedEvent(customer *Customer) *CustomerCreatedEvent {
	return &CustomerCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeCustomerCreated, AggregateTypeCustomer, customer.ID, customer.TenantID),
		CustomerID:      customer.ID,
		Code:            customer.Code,
		Name:            customer.Name,
	}
}

// CustomerTagsChangedEvent is published when a customer's tag set changes.
// Segment membership is not updated by it; the next recalculation picks it up.
type CustomerTagsChangedEvent struct {
	shared.BaseDomainEvent
	CustomerID uuid.UUID `json:"customer_id"`
	Tags       []string  `json:"tags"`
}

// NewCustomerTagsChangedEvent creates a new CustomerTagsChangedEvent
func NewCustomerTagsChangedEvent(customer *Customer) *CustomerTagsChangedEvent {
	return &CustomerTagsChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeCustomerTagsChanged, AggregateTypeCustomer, customer.ID, customer.TenantID),
		CustomerID:      customer.ID,
		Tags:            customer.Tags,
	}
}
