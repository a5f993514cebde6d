package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/harborcare/notify/internal/models"
	"github.com/harborcare/notify/internal/realtime"
	apperrors "github.com/harborcare/notify/pkg/errors"
)

type publishCall struct {
	topic   string
	event   string
	payload DispatchPayload
}

type fakeChannel struct {
	mu    sync.Mutex
	calls []publishCall
	err   error
}

func (f *fakeChannel) Publish(_ context.Context, topic, event string, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.calls = append(f.calls, publishCall{topic: topic, event: event, payload: payload.(DispatchPayload)})
	return nil
}

type fakeQueue struct {
	mu       sync.Mutex
	subjects []string
	err      error
}

func (f *fakeQueue) Publish(_ context.Context, subject string, _ any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.subjects = append(f.subjects, subject)
	return nil
}

func newTestDispatcher(t *testing.T) (*Dispatcher, *NotificationService, *fakeChannel, *fakeQueue) {
	t.Helper()

	svc := newTestService(t)
	broadcaster := &fakeChannel{}
	queue := &fakeQueue{}
	dispatcher, err := NewDispatcher(svc, broadcaster, queue, true)
	require.NoError(t, err)
	return dispatcher, svc, broadcaster, queue
}

func TestDispatchPublishesBothChannels(t *testing.T) {
	dispatcher, svc, broadcaster, queue := newTestDispatcher(t)
	ctx := context.Background()

	result, err := dispatcher.Dispatch(ctx, DispatchInput{
		Type:       models.TypeAlarm,
		EntityType: "alarm",
		EntityID:   "alarm-7",
		Title:      "Fall alarm",
		Message:    "Sensor triggered",
		Priority:   models.PriorityUrgent,
		Recipients: []string{"nurse-1", "nurse-2"},
	})
	require.NoError(t, err)

	require.NotEmpty(t, result.Notification.ID)
	require.Equal(t, CategoryAlarm, result.Notification.Category)
	require.Equal(t, models.StatusSent, result.Notification.Status)
	require.True(t, result.Broadcast.Delivered)
	require.True(t, result.Queue.Delivered)
	require.Len(t, result.Records, 2)

	require.Len(t, broadcaster.calls, 1)
	require.Equal(t, realtime.StreamAlarms, broadcaster.calls[0].topic)
	require.Equal(t, result.Notification.ID, broadcaster.calls[0].payload.ID)

	require.Equal(t, []string{"notifications.alarm"}, queue.subjects)

	items, err := svc.ListForRecipient(ctx, ListNotificationsInput{RecipientID: "nurse-1"})
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, models.PriorityUrgent, items[0].Priority)
}

func TestDispatchRoutingError(t *testing.T) {
	dispatcher, svc, broadcaster, queue := newTestDispatcher(t)
	ctx := context.Background()

	_, err := dispatcher.Dispatch(ctx, DispatchInput{
		Type:       models.TypeOther,
		EntityType: "spaceship",
		EntityID:   "x",
		Title:      "t",
		Message:    "m",
		Recipients: []string{"nurse-1"},
	})
	require.Error(t, err)
	require.True(t, apperrors.IsRouting(err))

	// nothing persisted, nothing published
	var count int64
	require.NoError(t, svc.db.Model(&models.Notification{}).Count(&count).Error)
	require.Zero(t, count)
	require.Empty(t, broadcaster.calls)
	require.Empty(t, queue.subjects)
}

func TestDispatchPhotoAndAudioRouteAsTasks(t *testing.T) {
	dispatcher, _, broadcaster, queue := newTestDispatcher(t)
	ctx := context.Background()

	for _, entityType := range []string{"photo", "audio"} {
		result, err := dispatcher.Dispatch(ctx, DispatchInput{
			Type:       models.TypeFileUpload,
			EntityType: entityType,
			EntityID:   "file-1",
			Title:      "Upload",
			Message:    "New file attached",
			Recipients: []string{"nurse-1"},
		})
		require.NoError(t, err)
		require.Equal(t, CategoryTask, result.Notification.Category)
	}

	require.Len(t, broadcaster.calls, 2)
	require.Equal(t, realtime.StreamTasks, broadcaster.calls[0].topic)
	require.Equal(t, []string{"notifications.task", "notifications.task"}, queue.subjects)
}

func TestDispatchChannelFailure(t *testing.T) {
	svc := newTestService(t)
	broadcaster := &fakeChannel{err: errors.New("socket closed")}
	queue := &fakeQueue{}
	dispatcher, err := NewDispatcher(svc, broadcaster, queue, true)
	require.NoError(t, err)

	ctx := context.Background()
	result, err := dispatcher.Dispatch(ctx, DispatchInput{
		Type:       models.TypeVisitStatus,
		EntityType: "visit",
		EntityID:   "visit-3",
		Title:      "Visit update",
		Message:    "Visit started",
		Recipients: []string{"nurse-1"},
	})
	require.Error(t, err)
	require.True(t, apperrors.IsDispatch(err))

	// the surviving channel still completed and records persisted (no rollback)
	require.NotNil(t, result)
	require.False(t, result.Broadcast.Delivered)
	require.Contains(t, result.Broadcast.Error, "socket closed")
	require.True(t, result.Queue.Delivered)

	items, listErr := svc.ListForRecipient(ctx, ListNotificationsInput{RecipientID: "nurse-1"})
	require.NoError(t, listErr)
	require.Len(t, items, 1)
}

func TestDispatchWithoutPersistence(t *testing.T) {
	svc := newTestService(t)
	broadcaster := &fakeChannel{}
	dispatcher, err := NewDispatcher(svc, broadcaster, nil, false)
	require.NoError(t, err)

	ctx := context.Background()
	result, err := dispatcher.Dispatch(ctx, DispatchInput{
		Type:       models.TypeMedicineReminder,
		EntityType: "medicine",
		EntityID:   "med-1",
		Title:      "Medicine reminder",
		Message:    "Administer dose",
		Recipients: []string{"nurse-1"},
	})
	require.NoError(t, err)
	require.Empty(t, result.Records)
	require.True(t, result.Broadcast.Delivered)
	require.False(t, result.Queue.Delivered)
	require.Empty(t, result.Queue.Error)

	var count int64
	require.NoError(t, svc.db.Model(&models.Notification{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestDispatchTaskTemplate(t *testing.T) {
	dispatcher, svc, _, _ := newTestDispatcher(t)
	ctx := context.Background()

	result, err := dispatcher.DispatchTask(ctx, TaskNotificationInput{
		TaskID:     "task-42",
		TaskTitle:  "Prepare discharge papers",
		AssignedTo: "nurse-1",
		AssignedBy: "admin-1",
		DueDate:    "2026-09-01",
		Priority:   models.PriorityHigh,
	})
	require.NoError(t, err)
	require.Equal(t, models.TypeTaskCreated, result.Notification.Type)
	require.Equal(t, CategoryTask, result.Notification.Category)

	items, err := svc.ListForRecipient(ctx, ListNotificationsInput{RecipientID: "nurse-1"})
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, models.TypeTaskCreated, items[0].Type)
	require.Equal(t, models.PriorityHigh, items[0].Priority)
	require.Equal(t, "2026-09-01", items[0].Metadata["dueDate"])
	require.Equal(t, "task-42", items[0].Related.TaskID)
}

func TestDispatchAlarmTemplate(t *testing.T) {
	dispatcher, _, broadcaster, _ := newTestDispatcher(t)
	ctx := context.Background()

	result, err := dispatcher.DispatchAlarm(ctx, AlarmNotificationInput{
		AlarmID:    "alarm-9",
		AlarmType:  "fall",
		Location:   "room 12",
		Recipients: []string{"nurse-1", "nurse-2"},
	})
	require.NoError(t, err)
	require.Equal(t, models.PriorityUrgent, result.Notification.Priority)
	require.Len(t, result.Records, 2)

	require.Len(t, broadcaster.calls, 1)
	require.Equal(t, realtime.StreamAlarms, broadcaster.calls[0].topic)
	require.Contains(t, broadcaster.calls[0].payload.Message, "room 12")
}

func TestDispatchMedicineTemplate(t *testing.T) {
	dispatcher, svc, _, queue := newTestDispatcher(t)
	ctx := context.Background()

	_, err := dispatcher.DispatchMedicine(ctx, MedicineNotificationInput{
		MedicineID: "med-5",
		Medicine:   "Metoprolol",
		Dosage:     "50mg",
		Recipients: []string{"nurse-3"},
	})
	require.NoError(t, err)
	require.Equal(t, []string{"notifications.medicine"}, queue.subjects)

	items, err := svc.ListForRecipient(ctx, ListNotificationsInput{RecipientID: "nurse-3"})
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, models.TypeMedicineReminder, items[0].Type)
	require.Equal(t, models.PriorityHigh, items[0].Priority)
	require.Equal(t, "50mg", items[0].Metadata["dosage"])
}

func TestDispatchVisitTemplate(t *testing.T) {
	dispatcher, _, broadcaster, _ := newTestDispatcher(t)
	ctx := context.Background()

	result, err := dispatcher.DispatchVisitStatus(ctx, VisitNotificationInput{
		VisitID:    "visit-8",
		Status:     "completed",
		PatientID:  "patient-2",
		Recipients: []string{"admin-1"},
	})
	require.NoError(t, err)
	require.Equal(t, models.TypeVisitStatus, result.Notification.Type)
	require.Equal(t, realtime.StreamVisits, broadcaster.calls[0].topic)
	require.Equal(t, "visit-8", result.Records[0].Related.VisitID)
}
