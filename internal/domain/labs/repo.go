package labs

import (
	"context"

	"github.com/google/uuid"

	"github.com/ehr/labengine/internal/labengine"
)

// LabOrderRepository reads a patient's lab orders as raw records, oldest first.
type LabOrderRepository interface {
	ListLabOrders(ctx context.Context, patientID uuid.UUID) ([]labengine.RawLabRecord, error)
}
