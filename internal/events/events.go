// Package events publishes domain events (course removals, enrollments,
// completions) to a message broker. Publishing is best effort: a broker
// failure is logged and never fails the request that produced the event.
package events

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"
)

// Event types.
const (
	CourseDeleted     = "course.deleted"
	ModuleRemoved     = "module.removed"
	LectureRemoved    = "lecture.removed"
	EnrollmentCreated = "enrollment.created"
	LectureCompleted  = "lecture.completed"
)

// Event is the payload written to the broker.
type Event struct {
	Type      string    `json:"type"`
	Time      time.Time `json:"time"`
	UserID    string    `json:"userId,omitempty"`
	CourseID  string    `json:"courseId,omitempty"`
	ModuleID  string    `json:"moduleId,omitempty"`
	LectureID string    `json:"lectureId,omitempty"`
}

// Publisher accepts domain events.
type Publisher interface {
	Publish(ctx context.Context, event Event)
}

// Broker is the transport a BrokerPublisher writes to.
type Broker interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
	Close() error
}

// BrokerPublisher encodes events as JSON and writes them to one channel.
type BrokerPublisher struct {
	broker  Broker
	channel string
	logger  *zap.Logger
	now     func() time.Time
}

// NewBrokerPublisher constructs a publisher over broker.
func NewBrokerPublisher(broker Broker, channel string, logger *zap.Logger) *BrokerPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BrokerPublisher{broker: broker, channel: channel, logger: logger, now: time.Now}
}

// Publish writes event to the broker. Errors are logged.
func (p *BrokerPublisher) Publish(ctx context.Context, event Event) {
	if event.Time.IsZero() {
		event.Time = p.now().UTC()
	}
	data, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("encode event", zap.String("type", event.Type), zap.Error(err))
		return
	}
	attrs := map[string]string{"type": event.Type}
	id, err := p.broker.Publish(ctx, p.channel, data, attrs)
	if err != nil {
		p.logger.Warn("publish event",
			zap.String("type", event.Type),
			zap.String("course_id", event.CourseID),
			zap.String("user_id", event.UserID),
			zap.Error(err),
		)
		return
	}
	p.logger.Debug("event published", zap.String("type", event.Type), zap.String("message_id", id))
}

// Close closes the underlying broker.
func (p *BrokerPublisher) Close() error {
	return p.broker.Close()
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) {}
