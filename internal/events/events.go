package events

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// 事件类型
const (
	TypePatientCreated       = "patient.created"
	TypePatientStatusUpdated = "patient.status_updated"
)

// Event 转诊记录生命周期事件
type Event struct {
	EventID    string    `json:"event_id"`
	Type       string    `json:"type"`
	RefID      string    `json:"ref_id"`
	Status     string    `json:"status"`
	CreatedBy  string    `json:"created_by,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewEvent 创建事件（自动生成 event_id）
func NewEvent(eventType, refID, status, createdBy string, at time.Time) Event {
	return Event{
		EventID:    uuid.NewString(),
		Type:       eventType,
		RefID:      refID,
		Status:     status,
		CreatedBy:  createdBy,
		OccurredAt: at.UTC(),
	}
}

// Publisher 事件发布接口
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// NopPublisher discards every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }

// MultiPublisher 将事件发送给所有发布者，错误合并返回
type MultiPublisher []Publisher

func (m MultiPublisher) Publish(ctx context.Context, ev Event) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Combine returns a single Publisher for ps, dropping nils.
func Combine(ps ...Publisher) Publisher {
	var out MultiPublisher
	for _, p := range ps {
		if p != nil {
			out = append(out, p)
		}
	}
	switch len(out) {
	case 0:
		return NopPublisher{}
	case 1:
		return out[0]
	}
	return out
}
