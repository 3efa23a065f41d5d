package audit

import (
	"context"

	"github.com/google/uuid"
	"github.com/nomcebo/bankauth/model"
	"gorm.io/gorm"
)

type gormRecorder struct {
	db *gorm.DB
}

func (r *gormRecorder) Record(ctx context.Context, event Event) error {
	return r.db.WithContext(ctx).Create(&model.AuditEvent{
		EventID:     uuid.NewString(),
		EventType:   event.EventType,
		Username:    event.Username,
		IP:          event.IP,
		Description: event.Description,
	}).Error
}

func NewGormRecorder(db *gorm.DB) Recorder {
	return &gormRecorder{db: db}
}
