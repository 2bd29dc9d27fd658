package segmentation

import "github.com/erp/backoffice/internal/domain/shared"

// Error codes surfaced by the segmentation core
const (
	CodeStorageUnavailable      = "STORAGE_UNAVAILABLE"
	CodeConcurrentRecalculation = "CONCURRENT_RECALCULATION_CONFLICT"
	CodeNoSegmentsProcessed     = "NO_SEGMENTS_PROCESSED"
)

var (
	// ErrStorageUnavailable matches any error produced by StorageError
	ErrStorageUnavailable = shared.NewDomainError(CodeStorageUnavailable, "Storage unavailable")

	// ErrConcurrentRecalculation is returned when a segment lease cannot be acquired in time
	ErrConcurrentRecalculation = shared.NewDomainError(CodeConcurrentRecalculation, "Segment is being recalculated by another run")

	// ErrNoSegmentsProcessed is returned when a tenant has segments but none could be processed
	ErrNoSegmentsProcessed = shared.NewDomainError(CodeNoSegmentsProcessed, "No segment could be recalculated")
)

// StorageError wraps a store failure so callers can match ErrStorageUnavailable
// and still reach the driver error.
func StorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	return shared.WrapDomainError(CodeStorageUnavailable, op, err)
}
