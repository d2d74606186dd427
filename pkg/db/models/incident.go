package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/piersideeats/dispatch-backend/pkg/enums"
)

// Incident is an operational alert raised by the dispatch engine or a
// cron sweep.
type Incident struct {
	ID         uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID    *uuid.UUID           `gorm:"column:order_id;type:uuid;index"`
	Kind       enums.IncidentKind   `gorm:"column:kind;type:incident_kind_enum;not null"`
	Message    string               `gorm:"column:message;not null"`
	Status     enums.IncidentStatus `gorm:"column:status;type:incident_status_enum;not null;default:open"`
	Resolution *string              `gorm:"column:resolution"`
	ResolvedAt *time.Time           `gorm:"column:resolved_at"`
	CreatedAt  time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}
