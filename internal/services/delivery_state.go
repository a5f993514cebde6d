package services

import (
	"context"
	"fmt"
	"time"

	"github.com/harborcare/notify/internal/models"
	"github.com/harborcare/notify/pkg/metrics"
)

// Delivery-state transitions. The status dimension moves
// pending -> sent -> delivered -> read, with failed reachable from any
// non-read state via an external delivery-failure signal. All transitions are
// single atomic column updates; concurrent callers settle on last-writer-wins
// without corrupting the channel sub-records.

// MarkRead marks a notification read. Re-invoking on an already-read record is
// a true no-op: read_at keeps its original value.
func (s *NotificationService) MarkRead(ctx context.Context, id string) (*NotificationDTO, error) {
	ctx = ensureContext(ctx)

	record, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	if record.Read {
		dto := mapNotification(*record)
		return &dto, nil
	}

	now := time.Now().UTC()
	if err := s.db.WithContext(ctx).Model(record).
		Updates(map[string]any{
			"is_read": true,
			"read_at": now,
			"status":  models.StatusRead,
		}).Error; err != nil {
		return nil, fmt.Errorf("notification service: mark read: %w", err)
	}

	record.Read = true
	record.ReadAt = &now
	record.Status = models.StatusRead

	metrics.NotificationsRead.WithLabelValues("single").Inc()

	dto := mapNotification(*record)
	s.broadcast(record.RecipientID, "notification.read", &NotificationEventPayload{
		Notification:   &dto,
		NotificationID: record.ID,
	})
	return &dto, nil
}

// MarkDelivered records channel-delivery bookkeeping for one of push, email,
// sms or inApp. Unrecognised channels are ignored rather than rejected;
// delivery receipts from unknown sources must not fail the caller. A pending
// notification is promoted to sent on its first delivery receipt.
func (s *NotificationService) MarkDelivered(ctx context.Context, id, channel, messageID string) (*NotificationDTO, error) {
	ctx = ensureContext(ctx)

	record, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	updates := map[string]any{}

	switch channel {
	case models.ChannelPush:
		updates["push_sent"] = true
		updates["push_sent_at"] = now
		updates["push_message_id"] = messageID
		record.Push = models.ChannelState{Sent: true, SentAt: &now, MessageID: messageID}
	case models.ChannelEmail:
		updates["email_sent"] = true
		updates["email_sent_at"] = now
		updates["email_message_id"] = messageID
		record.Email = models.ChannelState{Sent: true, SentAt: &now, MessageID: messageID}
	case models.ChannelSMS:
		updates["sms_sent"] = true
		updates["sms_sent_at"] = now
		updates["sms_message_id"] = messageID
		record.SMS = models.ChannelState{Sent: true, SentAt: &now, MessageID: messageID}
	case models.ChannelInApp:
		updates["inapp_displayed"] = true
		updates["inapp_displayed_at"] = now
		record.InApp = models.InAppState{Displayed: true, DisplayedAt: &now}
	default:
		dto := mapNotification(*record)
		return &dto, nil
	}

	if record.Status == models.StatusPending {
		updates["status"] = models.StatusSent
		record.Status = models.StatusSent
	}

	if err := s.db.WithContext(ctx).Model(record).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("notification service: mark delivered: %w", err)
	}

	dto := mapNotification(*record)
	return &dto, nil
}

// MarkFailed records an external delivery-failure signal. Once a notification
// has been read the failure signal is ignored.
func (s *NotificationService) MarkFailed(ctx context.Context, id string) (*NotificationDTO, error) {
	ctx = ensureContext(ctx)

	record, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	if record.Status == models.StatusRead {
		dto := mapNotification(*record)
		return &dto, nil
	}

	if err := s.db.WithContext(ctx).Model(record).
		Update("status", models.StatusFailed).Error; err != nil {
		return nil, fmt.Errorf("notification service: mark failed: %w", err)
	}
	record.Status = models.StatusFailed

	dto := mapNotification(*record)
	return &dto, nil
}

// CompleteAction marks the call-to-action complete, independent of the
// read/delivery dimensions.
func (s *NotificationService) CompleteAction(ctx context.Context, id string) (*NotificationDTO, error) {
	ctx = ensureContext(ctx)

	record, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if err := s.db.WithContext(ctx).Model(record).
		Updates(map[string]any{
			"action_completed":    true,
			"action_completed_at": now,
		}).Error; err != nil {
		return nil, fmt.Errorf("notification service: complete action: %w", err)
	}

	record.ActionCompleted = true
	record.ActionCompletedAt = &now

	dto := mapNotification(*record)
	return &dto, nil
}
