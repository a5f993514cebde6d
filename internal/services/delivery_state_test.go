package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/harborcare/notify/internal/models"
	apperrors "github.com/harborcare/notify/pkg/errors"
)

func seedNotification(t *testing.T, svc *NotificationService) *NotificationDTO {
	t.Helper()

	dto, err := svc.Create(context.Background(), CreateNotificationInput{
		Type:        models.TypeTaskAssigned,
		Title:       "Restock supplies",
		Message:     "Supply cart on floor 2 is low",
		RecipientID: "nurse-1",
	})
	require.NoError(t, err)
	return dto
}

func TestMarkReadTransitions(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	dto := seedNotification(t, svc)

	read, err := svc.MarkRead(ctx, dto.ID)
	require.NoError(t, err)
	require.True(t, read.Read)
	require.NotNil(t, read.ReadAt)
	require.Equal(t, models.StatusRead, read.Status)

	// a second call leaves read_at untouched
	again, err := svc.MarkRead(ctx, dto.ID)
	require.NoError(t, err)
	require.True(t, again.Read)
	require.Equal(t, models.StatusRead, again.Status)
	require.NotNil(t, again.ReadAt)
	require.Equal(t, read.ReadAt.Unix(), again.ReadAt.Unix())

	_, err = svc.MarkRead(ctx, "missing")
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestMarkDeliveredChannels(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	dto := seedNotification(t, svc)

	delivered, err := svc.MarkDelivered(ctx, dto.ID, models.ChannelPush, "fcm-123")
	require.NoError(t, err)
	require.True(t, delivered.Push.Sent)
	require.NotNil(t, delivered.Push.SentAt)
	require.Equal(t, "fcm-123", delivered.Push.MessageID)
	// first receipt promotes pending to sent
	require.Equal(t, models.StatusSent, delivered.Status)

	delivered, err = svc.MarkDelivered(ctx, dto.ID, models.ChannelEmail, "smtp-9")
	require.NoError(t, err)
	require.True(t, delivered.Email.Sent)
	require.Equal(t, models.StatusSent, delivered.Status)

	delivered, err = svc.MarkDelivered(ctx, dto.ID, models.ChannelInApp, "")
	require.NoError(t, err)
	require.True(t, delivered.InApp.Displayed)
	require.NotNil(t, delivered.InApp.DisplayedAt)

	// persisted state matches the returned snapshot
	stored, err := svc.Get(ctx, dto.ID)
	require.NoError(t, err)
	require.True(t, stored.Push.Sent)
	require.True(t, stored.Email.Sent)
	require.True(t, stored.InApp.Displayed)
	require.False(t, stored.SMS.Sent)
}

func TestMarkDeliveredUnknownChannel(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	dto := seedNotification(t, svc)

	delivered, err := svc.MarkDelivered(ctx, dto.ID, "carrier-pigeon", "x")
	require.NoError(t, err)
	require.Equal(t, models.StatusPending, delivered.Status)
	require.False(t, delivered.Push.Sent)
	require.False(t, delivered.Email.Sent)
	require.False(t, delivered.SMS.Sent)
	require.False(t, delivered.InApp.Displayed)
}

func TestMarkFailed(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	dto := seedNotification(t, svc)

	failed, err := svc.MarkFailed(ctx, dto.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusFailed, failed.Status)

	// a read notification ignores failure signals
	other := seedNotification(t, svc)
	_, err = svc.MarkRead(ctx, other.ID)
	require.NoError(t, err)

	still, err := svc.MarkFailed(ctx, other.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusRead, still.Status)
}

func TestCompleteAction(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	dto, err := svc.Create(ctx, CreateNotificationInput{
		Type:           models.TypeAlarm,
		Title:          "Fall alarm",
		Message:        "Sensor triggered in room 4",
		RecipientID:    "nurse-1",
		Priority:       models.PriorityUrgent,
		ActionRequired: true,
		ActionLabel:    "Acknowledge",
	})
	require.NoError(t, err)
	require.False(t, dto.ActionCompleted)

	completed, err := svc.CompleteAction(ctx, dto.ID)
	require.NoError(t, err)
	require.True(t, completed.ActionCompleted)
	require.NotNil(t, completed.ActionCompletedAt)

	// read state is untouched
	require.False(t, completed.Read)
	require.Equal(t, models.StatusPending, completed.Status)
}
