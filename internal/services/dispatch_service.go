package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/harborcare/notify/internal/models"
	"github.com/harborcare/notify/internal/queue"
	"github.com/harborcare/notify/internal/realtime"
	apperrors "github.com/harborcare/notify/pkg/errors"
	"github.com/harborcare/notify/pkg/logger"
	"github.com/harborcare/notify/pkg/metrics"
)

// Entity categories. Photo and audio entities ride the task category since
// they are always attached to a task in the care workflow.
const (
	CategoryTask     = "task"
	CategoryAlarm    = "alarm"
	CategoryVisit    = "visit"
	CategoryMedicine = "medicine"
)

var entityCategories = map[string]string{
	"task":     CategoryTask,
	"photo":    CategoryTask,
	"audio":    CategoryTask,
	"alarm":    CategoryAlarm,
	"visit":    CategoryVisit,
	"medicine": CategoryMedicine,
}

var categoryStreams = map[string]string{
	CategoryTask:     realtime.StreamTasks,
	CategoryAlarm:    realtime.StreamAlarms,
	CategoryVisit:    realtime.StreamVisits,
	CategoryMedicine: realtime.StreamMedicine,
}

// Broadcaster fans a dispatch payload out to connected realtime clients.
type Broadcaster interface {
	Publish(ctx context.Context, stream, event string, payload any) error
}

// Queue publishes a dispatch payload to the durable processing queue.
type Queue interface {
	Publish(ctx context.Context, subject string, payload any) error
}

// DispatchInput is the generic creation request.
type DispatchInput struct {
	Type       string         `json:"type" binding:"required"`
	EntityType string         `json:"entity_type" binding:"required"`
	EntityID   string         `json:"entity_id" binding:"required"`
	Title      string         `json:"title" binding:"required"`
	Message    string         `json:"message" binding:"required"`
	Priority   string         `json:"priority"`
	Recipients []string       `json:"recipients"`
	Metadata   map[string]any `json:"metadata"`
}

// DispatchPayload is what the downstream channels receive. It is built fresh
// per dispatch and is distinct from the persisted records derived from it.
type DispatchPayload struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	EntityType string         `json:"entity_type"`
	EntityID   string         `json:"entity_id"`
	Category   string         `json:"category"`
	Title      string         `json:"title"`
	Message    string         `json:"message"`
	Priority   string         `json:"priority"`
	Recipients []string       `json:"recipients"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Status     string         `json:"status"`
	Timestamp  time.Time      `json:"timestamp"`
}

// ChannelResult reports one downstream channel's outcome.
type ChannelResult struct {
	Channel   string `json:"channel"`
	Delivered bool   `json:"delivered"`
	Error     string `json:"error,omitempty"`
}

// DispatchResult aggregates a creation outcome.
type DispatchResult struct {
	Notification DispatchPayload   `json:"notification"`
	Broadcast    ChannelResult     `json:"broadcast"`
	Queue        ChannelResult     `json:"queue"`
	Records      []NotificationDTO `json:"records,omitempty"`
}

// Dispatcher routes creation requests to the broadcast and durable channels
// and persists one record per recipient through the notification service.
type Dispatcher struct {
	store       *NotificationService
	broadcaster Broadcaster
	queue       Queue
	persist     bool
	log         *zap.Logger
}

// NewDispatcher constructs a Dispatcher. Either channel may be nil; a nil
// channel is skipped and reported as not delivered without failing the
// dispatch. Persistence is controlled separately so demo/test wiring can run
// channel-only.
func NewDispatcher(store *NotificationService, broadcaster Broadcaster, queue Queue, persist bool) (*Dispatcher, error) {
	if store == nil && persist {
		return nil, errors.New("dispatcher: store is required when persistence is enabled")
	}
	return &Dispatcher{
		store:       store,
		broadcaster: broadcaster,
		queue:       queue,
		persist:     persist,
		log:         logger.WithModule("dispatch"),
	}, nil
}

// Dispatch validates and routes a creation request, persists one record per
// recipient, then publishes the canonical payload to both channels
// concurrently. Both publishes complete before Dispatch returns. A failure on
// either channel fails the whole dispatch with the underlying cause; already
// persisted records and the surviving channel's publish are not rolled back.
func (d *Dispatcher) Dispatch(ctx context.Context, input DispatchInput) (*DispatchResult, error) {
	ctx = ensureContext(ctx)

	category, ok := entityCategories[strings.TrimSpace(input.EntityType)]
	if !ok {
		return nil, apperrors.NewRouting(input.EntityType)
	}

	payload := DispatchPayload{
		ID:         uuid.NewString(),
		Type:       strings.TrimSpace(input.Type),
		EntityType: strings.TrimSpace(input.EntityType),
		EntityID:   strings.TrimSpace(input.EntityID),
		Category:   category,
		Title:      strings.TrimSpace(input.Title),
		Message:    strings.TrimSpace(input.Message),
		Priority:   defaultIfEmpty(input.Priority, models.PriorityNormal),
		Recipients: input.Recipients,
		Metadata:   input.Metadata,
		Status:     models.StatusSent,
		Timestamp:  time.Now().UTC(),
	}

	result := &DispatchResult{Notification: payload}

	if d.persist && len(input.Recipients) > 0 {
		inputs := make([]CreateNotificationInput, 0, len(input.Recipients))
		for _, recipient := range input.Recipients {
			inputs = append(inputs, CreateNotificationInput{
				Type:        payload.Type,
				Title:       payload.Title,
				Message:     payload.Message,
				Priority:    payload.Priority,
				RecipientID: recipient,
				Metadata:    input.Metadata,
				Related:     relatedFor(category, payload.EntityID),
			})
		}
		records, err := d.store.CreateMany(ctx, inputs)
		if err != nil {
			return nil, err
		}
		result.Records = records
	}

	var wg sync.WaitGroup
	var broadcastErr, queueErr error

	if d.broadcaster != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			broadcastErr = d.broadcaster.Publish(ctx, categoryStreams[category], "notification."+payload.Type, payload)
		}()
	}
	if d.queue != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			queueErr = d.queue.Publish(ctx, queue.Subject(category), payload)
		}()
	}
	wg.Wait()

	result.Broadcast = channelResult("broadcast", d.broadcaster != nil, broadcastErr)
	result.Queue = channelResult("queue", d.queue != nil, queueErr)
	recordChannelMetrics(result)

	if err := multierr.Combine(broadcastErr, queueErr); err != nil {
		d.log.Error("dispatch failed",
			zap.String("notification_id", payload.ID),
			zap.String("category", category),
			zap.Error(err))
		return result, apperrors.NewDispatch(err)
	}

	d.log.Info("notification dispatched",
		zap.String("notification_id", payload.ID),
		zap.String("category", category),
		zap.String("type", payload.Type),
		zap.Int("recipients", len(input.Recipients)))
	return result, nil
}

func channelResult(channel string, attempted bool, err error) ChannelResult {
	result := ChannelResult{Channel: channel}
	if !attempted {
		return result
	}
	if err != nil {
		result.Error = err.Error()
		return result
	}
	result.Delivered = true
	return result
}

func recordChannelMetrics(result *DispatchResult) {
	for _, channel := range []ChannelResult{result.Broadcast, result.Queue} {
		outcome := "success"
		if channel.Error != "" {
			outcome = "failure"
		} else if !channel.Delivered {
			outcome = "skipped"
		}
		metrics.DispatchResults.WithLabelValues(channel.Channel, outcome).Inc()
	}
}

func relatedFor(category, entityID string) models.RelatedEntities {
	switch category {
	case CategoryTask:
		return models.RelatedEntities{TaskID: entityID}
	case CategoryVisit:
		return models.RelatedEntities{VisitID: entityID}
	default:
		return models.RelatedEntities{}
	}
}

// TaskNotificationInput drives the task creation template.
type TaskNotificationInput struct {
	TaskID     string `json:"task_id" binding:"required"`
	TaskTitle  string `json:"task_title" binding:"required"`
	AssignedTo string `json:"assigned_to" binding:"required"`
	AssignedBy string `json:"assigned_by"`
	DueDate    string `json:"due_date"`
	Priority   string `json:"priority"`
}

// DispatchTask publishes a task-created notification to the assignee.
func (d *Dispatcher) DispatchTask(ctx context.Context, input TaskNotificationInput) (*DispatchResult, error) {
	metadata := map[string]any{"taskTitle": input.TaskTitle}
	if input.DueDate != "" {
		metadata["dueDate"] = input.DueDate
	}
	if input.AssignedBy != "" {
		metadata["assignedBy"] = input.AssignedBy
	}
	return d.Dispatch(ctx, DispatchInput{
		Type:       models.TypeTaskCreated,
		EntityType: "task",
		EntityID:   input.TaskID,
		Title:      "New task assigned",
		Message:    fmt.Sprintf("You have been assigned: %s", input.TaskTitle),
		Priority:   defaultIfEmpty(input.Priority, models.PriorityNormal),
		Recipients: []string{input.AssignedTo},
		Metadata:   metadata,
	})
}

// AlarmNotificationInput drives the alarm creation template.
type AlarmNotificationInput struct {
	AlarmID    string   `json:"alarm_id" binding:"required"`
	AlarmType  string   `json:"alarm_type" binding:"required"`
	Location   string   `json:"location"`
	PatientID  string   `json:"patient_id"`
	Recipients []string `json:"recipients" binding:"required,min=1"`
}

// DispatchAlarm publishes an urgent alarm notification requiring action.
func (d *Dispatcher) DispatchAlarm(ctx context.Context, input AlarmNotificationInput) (*DispatchResult, error) {
	metadata := map[string]any{"alarmType": input.AlarmType}
	if input.Location != "" {
		metadata["location"] = input.Location
	}
	if input.PatientID != "" {
		metadata["patientId"] = input.PatientID
	}
	message := fmt.Sprintf("%s alarm triggered", input.AlarmType)
	if input.Location != "" {
		message = fmt.Sprintf("%s alarm triggered at %s", input.AlarmType, input.Location)
	}
	return d.Dispatch(ctx, DispatchInput{
		Type:       models.TypeAlarm,
		EntityType: "alarm",
		EntityID:   input.AlarmID,
		Title:      "Alarm",
		Message:    message,
		Priority:   models.PriorityUrgent,
		Recipients: input.Recipients,
		Metadata:   metadata,
	})
}

// VisitNotificationInput drives the visit-status creation template.
type VisitNotificationInput struct {
	VisitID    string   `json:"visit_id" binding:"required"`
	Status     string   `json:"status" binding:"required"`
	PatientID  string   `json:"patient_id"`
	Recipients []string `json:"recipients" binding:"required,min=1"`
}

// DispatchVisitStatus publishes a visit-status change notification.
func (d *Dispatcher) DispatchVisitStatus(ctx context.Context, input VisitNotificationInput) (*DispatchResult, error) {
	metadata := map[string]any{"visitStatus": input.Status}
	if input.PatientID != "" {
		metadata["patientId"] = input.PatientID
	}
	return d.Dispatch(ctx, DispatchInput{
		Type:       models.TypeVisitStatus,
		EntityType: "visit",
		EntityID:   input.VisitID,
		Title:      "Visit update",
		Message:    fmt.Sprintf("Visit status changed to %s", input.Status),
		Priority:   models.PriorityNormal,
		Recipients: input.Recipients,
		Metadata:   metadata,
	})
}

// MedicineNotificationInput drives the medicine-reminder creation template.
type MedicineNotificationInput struct {
	MedicineID string   `json:"medicine_id" binding:"required"`
	Medicine   string   `json:"medicine" binding:"required"`
	PatientID  string   `json:"patient_id"`
	Dosage     string   `json:"dosage"`
	Recipients []string `json:"recipients" binding:"required,min=1"`
}

// DispatchMedicine publishes a high-priority medicine reminder.
func (d *Dispatcher) DispatchMedicine(ctx context.Context, input MedicineNotificationInput) (*DispatchResult, error) {
	metadata := map[string]any{"medicine": input.Medicine}
	if input.Dosage != "" {
		metadata["dosage"] = input.Dosage
	}
	if input.PatientID != "" {
		metadata["patientId"] = input.PatientID
	}
	return d.Dispatch(ctx, DispatchInput{
		Type:       models.TypeMedicineReminder,
		EntityType: "medicine",
		EntityID:   input.MedicineID,
		Title:      "Medicine reminder",
		Message:    fmt.Sprintf("Time to administer %s", input.Medicine),
		Priority:   models.PriorityHigh,
		Recipients: input.Recipients,
		Metadata:   metadata,
	})
}
