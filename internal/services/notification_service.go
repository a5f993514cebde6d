package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/harborcare/notify/internal/models"
	"github.com/harborcare/notify/internal/realtime"
	apperrors "github.com/harborcare/notify/pkg/errors"
	"github.com/harborcare/notify/pkg/logger"
	"github.com/harborcare/notify/pkg/metrics"
)

// DefaultListLimit bounds list queries when callers omit or mangle the limit.
const DefaultListLimit = 50

// MaxListLimit is the hard ceiling; callers may not request unbounded results.
const MaxListLimit = 200

// DefaultRetentionDays is the age cutoff for read-notification cleanup.
const DefaultRetentionDays = 90

// NotificationDTO represents the API-friendly notification payload.
type NotificationDTO struct {
	ID            string                 `json:"id"`
	Type          string                 `json:"type"`
	Title         string                 `json:"title"`
	Message       string                 `json:"message"`
	Priority      string                 `json:"priority"`
	RecipientID   string                 `json:"recipient_id"`
	RecipientType string                 `json:"recipient_type"`
	Status        string                 `json:"status"`
	Read          bool                   `json:"read"`
	ReadAt        *time.Time             `json:"read_at,omitempty"`
	Push          models.ChannelState    `json:"push"`
	Email         models.ChannelState    `json:"email"`
	SMS           models.ChannelState    `json:"sms"`
	InApp         models.InAppState      `json:"in_app"`
	Metadata      map[string]any         `json:"metadata,omitempty"`
	Related       models.RelatedEntities `json:"related_entities"`
	ActionRequired    bool       `json:"action_required"`
	ActionURL         string     `json:"action_url,omitempty"`
	ActionLabel       string     `json:"action_label,omitempty"`
	ActionCompleted   bool       `json:"action_completed"`
	ActionCompletedAt *time.Time `json:"action_completed_at,omitempty"`
	ExpiresAt         *time.Time `json:"expires_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// CreateNotificationInput defines attributes required to persist a notification.
type CreateNotificationInput struct {
	Type          string
	Title         string
	Message       string
	Priority      string
	RecipientID   string
	RecipientType string
	Metadata      map[string]any
	Related       models.RelatedEntities
	ActionRequired bool
	ActionURL      string
	ActionLabel    string
	ExpiresAt      *time.Time
}

// ListNotificationsInput defines filters for querying recipient notifications.
// Filters compose with AND semantics; nil/empty values are ignored.
type ListNotificationsInput struct {
	RecipientID string
	Type        string
	Read        *bool
	Priority    string
	Limit       int
}

// NotificationStats aggregates per-recipient counters.
type NotificationStats struct {
	Total      int64            `json:"total"`
	Unread     int64            `json:"unread"`
	ByType     map[string]int64 `json:"by_type"`
	ByPriority map[string]int64 `json:"by_priority"`
}

// NotificationEventPayload represents data sent to realtime consumers.
type NotificationEventPayload struct {
	Notification   *NotificationDTO `json:"notification,omitempty"`
	NotificationID string           `json:"notification_id,omitempty"`
	ModifiedCount  int64            `json:"modified_count,omitempty"`
}

// NotificationService owns the canonical notification record: its schema
// constraints, lifecycle queries, and the delivery-state transitions.
// All mutation of a notification goes through this service.
type NotificationService struct {
	db  *gorm.DB
	hub *realtime.Hub
	log *zap.Logger
}

// NewNotificationService constructs a NotificationService. The hub is
// optional; a nil hub disables realtime events.
func NewNotificationService(db *gorm.DB, hub *realtime.Hub) (*NotificationService, error) {
	if db == nil {
		return nil, errors.New("notification service: db is required")
	}
	return &NotificationService{
		db:  db,
		hub: hub,
		log: logger.WithModule("notifications"),
	}, nil
}

// Create validates, defaults and persists a single notification record.
func (s *NotificationService) Create(ctx context.Context, input CreateNotificationInput) (*NotificationDTO, error) {
	ctx = ensureContext(ctx)

	record, err := buildNotification(input)
	if err != nil {
		return nil, err
	}

	if err := s.db.WithContext(ctx).Create(record).Error; err != nil {
		return nil, fmt.Errorf("notification service: create notification: %w", err)
	}

	metrics.NotificationsCreated.WithLabelValues(record.Type).Inc()

	dto := mapNotification(*record)
	s.broadcast(record.RecipientID, "notification.created", &NotificationEventPayload{Notification: &dto})
	return &dto, nil
}

// CreateMany validates every input before persisting any of them, then writes
// all records in one transaction. Either all records exist afterwards or none.
func (s *NotificationService) CreateMany(ctx context.Context, inputs []CreateNotificationInput) ([]NotificationDTO, error) {
	ctx = ensureContext(ctx)
	if len(inputs) == 0 {
		return nil, nil
	}

	records := make([]*models.Notification, 0, len(inputs))
	for _, input := range inputs {
		record, err := buildNotification(input)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	if err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, record := range records {
			if err := tx.Create(record).Error; err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		return nil, fmt.Errorf("notification service: create notifications: %w", err)
	}

	dtos := make([]NotificationDTO, 0, len(records))
	for _, record := range records {
		metrics.NotificationsCreated.WithLabelValues(record.Type).Inc()
		dto := mapNotification(*record)
		s.broadcast(record.RecipientID, "notification.created", &NotificationEventPayload{Notification: &dto})
		dtos = append(dtos, dto)
	}
	return dtos, nil
}

// ListForRecipient returns notifications for the supplied recipient ordered by
// recency, honouring the optional type/read/priority filters.
func (s *NotificationService) ListForRecipient(ctx context.Context, input ListNotificationsInput) ([]NotificationDTO, error) {
	ctx = ensureContext(ctx)
	recipientID := strings.TrimSpace(input.RecipientID)
	if recipientID == "" {
		return nil, apperrors.NewValidation("recipientId is required")
	}

	limit := input.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}

	query := s.db.WithContext(ctx).Where("recipient_id = ?", recipientID)
	if input.Type != "" {
		query = query.Where("type = ?", input.Type)
	}
	if input.Read != nil {
		query = query.Where("is_read = ?", *input.Read)
	}
	if input.Priority != "" {
		query = query.Where("priority = ?", input.Priority)
	}

	var rows []models.Notification
	if err := query.Order("created_at DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("notification service: list notifications: %w", err)
	}

	return mapNotificationRows(rows), nil
}

// FindUnread returns unread, unexpired notifications ordered by priority then
// recency.
func (s *NotificationService) FindUnread(ctx context.Context, recipientID string) ([]NotificationDTO, error) {
	ctx = ensureContext(ctx)

	var rows []models.Notification
	if err := s.unreadQuery(ctx, recipientID).
		Order(models.PrioritySQLOrder + ", created_at DESC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("notification service: find unread: %w", err)
	}

	return mapNotificationRows(rows), nil
}

// UnreadCount counts the notifications FindUnread would return.
func (s *NotificationService) UnreadCount(ctx context.Context, recipientID string) (int64, error) {
	ctx = ensureContext(ctx)

	var count int64
	if err := s.unreadQuery(ctx, recipientID).
		Model(&models.Notification{}).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("notification service: unread count: %w", err)
	}
	return count, nil
}

func (s *NotificationService) unreadQuery(ctx context.Context, recipientID string) *gorm.DB {
	return s.db.WithContext(ctx).
		Where("recipient_id = ? AND is_read = ?", recipientID, false).
		Where("expires_at IS NULL OR expires_at > ?", time.Now().UTC())
}

// MarkAllRead marks every currently-unread notification of the recipient as
// read in one bulk update. Calling it again immediately reports zero rows.
func (s *NotificationService) MarkAllRead(ctx context.Context, recipientID string) (int64, error) {
	ctx = ensureContext(ctx)
	now := time.Now().UTC()

	result := s.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("recipient_id = ? AND is_read = ?", recipientID, false).
		Updates(map[string]any{
			"is_read": true,
			"read_at": now,
			"status":  models.StatusRead,
		})
	if result.Error != nil {
		return 0, fmt.Errorf("notification service: mark all read: %w", result.Error)
	}

	if result.RowsAffected > 0 {
		metrics.NotificationsRead.WithLabelValues("bulk").Add(float64(result.RowsAffected))
	}

	s.broadcast(recipientID, "notification.read_all", &NotificationEventPayload{ModifiedCount: result.RowsAffected})
	return result.RowsAffected, nil
}

// DeleteOld removes read notifications older than daysOld days. Unread
// notifications are never removed regardless of age; unseen notifications
// outlive storage reclamation.
func (s *NotificationService) DeleteOld(ctx context.Context, daysOld int) (int64, error) {
	ctx = ensureContext(ctx)
	if daysOld <= 0 {
		daysOld = DefaultRetentionDays
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -daysOld)
	result := s.db.WithContext(ctx).
		Where("created_at < ? AND is_read = ?", cutoff, true).
		Delete(&models.Notification{})
	if result.Error != nil {
		return 0, fmt.Errorf("notification service: delete old: %w", result.Error)
	}

	if result.RowsAffected > 0 {
		s.log.Info("purged read notifications",
			zap.Int64("deleted", result.RowsAffected),
			zap.Int("days_old", daysOld),
		)
	}
	return result.RowsAffected, nil
}

// DeleteExpired physically removes notifications whose expiry elapsed. The
// unread queries already exclude them; this reclaims the rows.
func (s *NotificationService) DeleteExpired(ctx context.Context) (int64, error) {
	ctx = ensureContext(ctx)

	result := s.db.WithContext(ctx).
		Where("expires_at IS NOT NULL AND expires_at <= ?", time.Now().UTC()).
		Delete(&models.Notification{})
	if result.Error != nil {
		return 0, fmt.Errorf("notification service: delete expired: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// Stats aggregates per-recipient notification counters.
func (s *NotificationService) Stats(ctx context.Context, recipientID string) (*NotificationStats, error) {
	ctx = ensureContext(ctx)

	stats := &NotificationStats{
		ByType:     make(map[string]int64),
		ByPriority: make(map[string]int64),
	}

	if err := s.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("recipient_id = ?", recipientID).
		Count(&stats.Total).Error; err != nil {
		return nil, fmt.Errorf("notification service: stats total: %w", err)
	}

	unread, err := s.UnreadCount(ctx, recipientID)
	if err != nil {
		return nil, err
	}
	stats.Unread = unread

	type bucket struct {
		Label string
		Total int64
	}

	var byType []bucket
	if err := s.db.WithContext(ctx).
		Model(&models.Notification{}).
		Select("type AS label, COUNT(*) AS total").
		Where("recipient_id = ?", recipientID).
		Group("type").
		Scan(&byType).Error; err != nil {
		return nil, fmt.Errorf("notification service: stats by type: %w", err)
	}
	for _, b := range byType {
		stats.ByType[b.Label] = b.Total
	}

	var byPriority []bucket
	if err := s.db.WithContext(ctx).
		Model(&models.Notification{}).
		Select("priority AS label, COUNT(*) AS total").
		Where("recipient_id = ?", recipientID).
		Group("priority").
		Scan(&byPriority).Error; err != nil {
		return nil, fmt.Errorf("notification service: stats by priority: %w", err)
	}
	for _, b := range byPriority {
		stats.ByPriority[b.Label] = b.Total
	}

	return stats, nil
}

// Delete removes a notification by identifier, returning the removed record.
func (s *NotificationService) Delete(ctx context.Context, id string) (*NotificationDTO, error) {
	ctx = ensureContext(ctx)

	record, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	result := s.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Notification{})
	if result.Error != nil {
		return nil, fmt.Errorf("notification service: delete notification: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, apperrors.ErrNotFound
	}

	dto := mapNotification(*record)
	s.broadcast(record.RecipientID, "notification.deleted", &NotificationEventPayload{NotificationID: id})
	return &dto, nil
}

// Get loads a notification by identifier.
func (s *NotificationService) Get(ctx context.Context, id string) (*NotificationDTO, error) {
	record, err := s.load(ensureContext(ctx), id)
	if err != nil {
		return nil, err
	}
	dto := mapNotification(*record)
	return &dto, nil
}

func (s *NotificationService) load(ctx context.Context, id string) (*models.Notification, error) {
	var record models.Notification
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("notification service: load notification: %w", err)
	}
	return &record, nil
}

func (s *NotificationService) broadcast(recipientID, event string, payload *NotificationEventPayload) {
	if s.hub == nil {
		return
	}
	message := realtime.Message{Event: event}
	if payload != nil {
		message.Data = payload
	}
	s.hub.BroadcastToUser(realtime.StreamNotifications, recipientID, message)
}

// buildNotification applies trimming, defaults and the schema constraints from
// the notification contract. Violations are reported per field.
func buildNotification(input CreateNotificationInput) (*models.Notification, error) {
	var violations []string

	notificationType := strings.TrimSpace(input.Type)
	title := strings.TrimSpace(input.Title)
	message := strings.TrimSpace(input.Message)
	recipientID := strings.TrimSpace(input.RecipientID)

	switch {
	case notificationType == "":
		violations = append(violations, "type is required")
	case !models.ValidType(notificationType):
		violations = append(violations, fmt.Sprintf("type %q is not recognised", notificationType))
	}

	switch {
	case title == "":
		violations = append(violations, "title is required")
	case utf8.RuneCountInString(title) > models.MaxTitleLength:
		violations = append(violations, fmt.Sprintf("title exceeds %d characters", models.MaxTitleLength))
	}

	switch {
	case message == "":
		violations = append(violations, "message is required")
	case utf8.RuneCountInString(message) > models.MaxMessageLength:
		violations = append(violations, fmt.Sprintf("message exceeds %d characters", models.MaxMessageLength))
	}

	if recipientID == "" {
		violations = append(violations, "recipientId is required")
	}

	priority := defaultIfEmpty(strings.TrimSpace(input.Priority), models.PriorityNormal)
	if !models.ValidPriority(priority) {
		violations = append(violations, fmt.Sprintf("priority %q is not recognised", priority))
	}

	recipientType := defaultIfEmpty(strings.TrimSpace(input.RecipientType), models.RecipientStaff)
	if !models.ValidRecipientType(recipientType) {
		violations = append(violations, fmt.Sprintf("recipientType %q is not recognised", recipientType))
	}

	if len(violations) > 0 {
		return nil, apperrors.NewValidation(violations...)
	}

	record := &models.Notification{
		Type:           notificationType,
		Title:          title,
		Message:        message,
		Priority:       priority,
		RecipientID:    recipientID,
		RecipientType:  recipientType,
		Status:         models.StatusPending,
		Related:        input.Related,
		ActionRequired: input.ActionRequired,
		ActionURL:      strings.TrimSpace(input.ActionURL),
		ActionLabel:    strings.TrimSpace(input.ActionLabel),
		ExpiresAt:      input.ExpiresAt,
	}

	if input.Metadata != nil {
		data, err := json.Marshal(input.Metadata)
		if err != nil {
			return nil, fmt.Errorf("notification service: marshal metadata: %w", err)
		}
		record.Metadata = datatypes.JSON(data)
	}

	return record, nil
}

func mapNotificationRows(rows []models.Notification) []NotificationDTO {
	items := make([]NotificationDTO, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapNotification(row))
	}
	return items
}

func mapNotification(row models.Notification) NotificationDTO {
	return NotificationDTO{
		ID:            row.ID,
		Type:          row.Type,
		Title:         row.Title,
		Message:       row.Message,
		Priority:      row.Priority,
		RecipientID:   row.RecipientID,
		RecipientType: row.RecipientType,
		Status:        row.Status,
		Read:          row.Read,
		ReadAt:        row.ReadAt,
		Push:          row.Push,
		Email:         row.Email,
		SMS:           row.SMS,
		InApp:         row.InApp,
		Metadata:      decodeJSON(row.Metadata),
		Related:       row.Related,
		ActionRequired:    row.ActionRequired,
		ActionURL:         row.ActionURL,
		ActionLabel:       row.ActionLabel,
		ActionCompleted:   row.ActionCompleted,
		ActionCompletedAt: row.ActionCompletedAt,
		ExpiresAt:         row.ExpiresAt,
		CreatedAt:         row.CreatedAt,
		UpdatedAt:         row.UpdatedAt,
	}
}

func decodeJSON(data datatypes.JSON) map[string]any {
	if len(data) == 0 {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil
	}
	return out
}
