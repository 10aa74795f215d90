package labs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ehr/labengine/internal/labengine"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
}

type labOrderRepoPG struct{ conn queryable }

func NewLabOrderRepoPG(pool *pgxpool.Pool) LabOrderRepository {
	return &labOrderRepoPG{conn: pool}
}

const labOrderQuery = `SELECT id, created_at, test_name, result_value, result_units, reference_range, order_payload
	FROM orders
	WHERE patient_id = $1 AND order_type = 'lab'
	ORDER BY created_at`

func (r *labOrderRepoPG) ListLabOrders(ctx context.Context, patientID uuid.UUID) ([]labengine.RawLabRecord, error) {
	rows, err := r.conn.Query(ctx, labOrderQuery, patientID)
	if err != nil {
		return nil, fmt.Errorf("list lab orders: %w", err)
	}
	defer rows.Close()

	var records []labengine.RawLabRecord
	for rows.Next() {
		rec, err := scanLabOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan lab order: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list lab orders: %w", err)
	}
	return records, nil
}

func scanLabOrder(row pgx.Row) (labengine.RawLabRecord, error) {
	var (
		id                                     uuid.UUID
		createdAt                              *time.Time
		testName, value, units, referenceRange *string
		payload                                []byte
	)
	if err := row.Scan(&id, &createdAt, &testName, &value, &units, &referenceRange, &payload); err != nil {
		return labengine.RawLabRecord{}, err
	}
	rec := labengine.RawLabRecord{
		ID:             id.String(),
		TestName:       deref(testName),
		ResultValue:    labengine.RawValue(deref(value)),
		ResultUnits:    deref(units),
		ReferenceRange: deref(referenceRange),
	}
	if createdAt != nil {
		rec.CreatedAt = *createdAt
	}
	if len(payload) > 0 {
		rec.OrderPayload = json.RawMessage(payload)
	}
	return rec, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
