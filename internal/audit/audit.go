// Package audit appends immutable action records. Writes come in two
// flavors: best-effort for ordinary CRUD (a failure is logged and
// counted but never fails the operation) and transactional for the
// provisioning workflow (a failure rolls the whole transaction back).
package audit

import (
	"fmt"

	"github.com/jashinspires/WorkGrid/internal/model"
	"github.com/jashinspires/WorkGrid/prometheus"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Outcome reports what happened to a best-effort write.
type Outcome struct {
	Recorded bool
	Reason   error
}

// Recorder writes audit log entries.
type Recorder struct {
	db  *gorm.DB
	log *zap.Logger
}

// NewRecorder returns a Recorder bound to the given database handle.
func NewRecorder(db *gorm.DB, log *zap.Logger) *Recorder {
	return &Recorder{db: db, log: log}
}

// Record appends an entry best-effort. The primary operation has
// already committed by the time this runs, so a failed write must not
// surface to the caller; it is logged and counted instead.
func (r *Recorder) Record(tenantID, userID *uint, action, entityType string, entityID *uint) Outcome {
	entry := model.AuditLog{
		TenantID:   tenantID,
		UserID:     userID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
	}

	if err := r.db.Create(&entry).Error; err != nil {
		prometheus.RecordAuditFailure()
		r.log.Error("audit write failed",
			zap.String("action", action),
			zap.String("entity_type", entityType),
			zap.Error(err))
		return Outcome{Recorded: false, Reason: err}
	}
	return Outcome{Recorded: true}
}

// RecordTx appends an entry inside the caller's transaction. A failure
// here must propagate so the transaction rolls back; partial state from
// an unaudited workflow must never persist.
func RecordTx(tx *gorm.DB, tenantID, userID *uint, action, entityType string, entityID *uint) error {
	entry := model.AuditLog{
		TenantID:   tenantID,
		UserID:     userID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
	}

	if err := tx.Create(&entry).Error; err != nil {
		return fmt.Errorf("audit write: %w", err)
	}
	return nil
}
