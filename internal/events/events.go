// Package events records invoice lifecycle events in a transactional
// outbox table.
package events

// Invoice lifecycle event types.
const (
	EventInvoiceCreated       = "invoice.created"
	EventInvoiceStatusChanged = "invoice.status_changed"
	EventInvoiceDeleted       = "invoice.deleted"
	EventInvoiceImported      = "invoice.imported"
)
