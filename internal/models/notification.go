package models

import (
	"time"

	"gorm.io/datatypes"
)

// Notification types understood by the platform.
const (
	TypeFileUpload       = "file_upload"
	TypeTaskCreated      = "task_created"
	TypeTaskAssigned     = "task_assigned"
	TypeTaskDue          = "task_due"
	TypeTaskOverdue      = "task_overdue"
	TypeAlarm            = "alarm"
	TypeVisitStatus      = "visit_status"
	TypeMedicineReminder = "medicine_reminder"
	TypeCarePlanUpdate   = "care_plan_update"
	TypeSystemAlert      = "system_alert"
	TypeOther            = "other"
)

// Priority levels, lowest to highest.
const (
	PriorityLow    = "low"
	PriorityNormal = "normal"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

// Recipient categories.
const (
	RecipientStaff   = "staff"
	RecipientPatient = "patient"
	RecipientAdmin   = "admin"
	RecipientSystem  = "system"
)

// Delivery statuses.
const (
	StatusPending   = "pending"
	StatusSent      = "sent"
	StatusDelivered = "delivered"
	StatusRead      = "read"
	StatusFailed    = "failed"
)

// Delivery channel keys.
const (
	ChannelPush  = "push"
	ChannelEmail = "email"
	ChannelSMS   = "sms"
	ChannelInApp = "inApp"
)

// Field length bounds enforced at creation.
const (
	MaxTitleLength   = 200
	MaxMessageLength = 1000
)

// ChannelState tracks delivery bookkeeping for one outbound channel.
type ChannelState struct {
	Sent      bool       `json:"sent"`
	SentAt    *time.Time `json:"sent_at,omitempty"`
	MessageID string     `gorm:"type:varchar(128)" json:"message_id,omitempty"`
}

// InAppState tracks whether the notification was surfaced inside the app.
type InAppState struct {
	Displayed   bool       `json:"displayed"`
	DisplayedAt *time.Time `json:"displayed_at,omitempty"`
}

// RelatedEntities holds weak back-references for lookup and filtering.
// No ownership is implied; deleting the referenced entity does not cascade.
type RelatedEntities struct {
	VisitID    string `gorm:"type:varchar(64)" json:"visit_id,omitempty"`
	PatientID  string `gorm:"type:varchar(64)" json:"patient_id,omitempty"`
	TaskID     string `gorm:"type:varchar(64)" json:"task_id,omitempty"`
	CarePlanID string `gorm:"type:varchar(64)" json:"care_plan_id,omitempty"`
	FileID     string `gorm:"type:varchar(64)" json:"file_id,omitempty"`
}

// Notification is the canonical persisted notification record.
type Notification struct {
	BaseModel

	Type    string `gorm:"type:varchar(64);not null;index:idx_notifications_recipient_type,priority:2" json:"type"`
	Title   string `gorm:"type:varchar(200);not null" json:"title"`
	Message string `gorm:"type:varchar(1000);not null" json:"message"`

	Priority      string `gorm:"type:varchar(16);not null;default:'normal';index:idx_notifications_recipient_priority,priority:2" json:"priority"`
	RecipientID   string `gorm:"type:varchar(64);not null;index;index:idx_notifications_recipient_read,priority:1;index:idx_notifications_recipient_type,priority:1;index:idx_notifications_recipient_priority,priority:1" json:"recipient_id"`
	RecipientType string `gorm:"type:varchar(16);not null;default:'staff'" json:"recipient_type"`

	Status string     `gorm:"type:varchar(16);not null;default:'pending';index" json:"status"`
	Read   bool       `gorm:"column:is_read;not null;default:false;index:idx_notifications_recipient_read,priority:2" json:"read"`
	ReadAt *time.Time `json:"read_at,omitempty"`

	Push  ChannelState `gorm:"embedded;embeddedPrefix:push_" json:"push"`
	Email ChannelState `gorm:"embedded;embeddedPrefix:email_" json:"email"`
	SMS   ChannelState `gorm:"embedded;embeddedPrefix:sms_" json:"sms"`
	InApp InAppState   `gorm:"embedded;embeddedPrefix:inapp_" json:"in_app"`

	// Metadata is a schema-free bag; notification types proliferate and each
	// template decides its own shape.
	Metadata datatypes.JSON  `json:"metadata,omitempty"`
	Related  RelatedEntities `gorm:"embedded;embeddedPrefix:related_" json:"related_entities"`

	ActionRequired    bool       `gorm:"not null;default:false" json:"action_required"`
	ActionURL         string     `gorm:"type:text" json:"action_url,omitempty"`
	ActionLabel       string     `gorm:"type:varchar(64)" json:"action_label,omitempty"`
	ActionCompleted   bool       `gorm:"not null;default:false" json:"action_completed"`
	ActionCompletedAt *time.Time `json:"action_completed_at,omitempty"`

	// ExpiresAt marks passive expiry: once elapsed the record is excluded
	// from unread queries even before physical deletion.
	ExpiresAt *time.Time `gorm:"index" json:"expires_at,omitempty"`
}

// Expired reports whether the notification passed its expiry timestamp.
func (n *Notification) Expired(now time.Time) bool {
	return n.ExpiresAt != nil && !n.ExpiresAt.After(now)
}

var validTypes = map[string]struct{}{
	TypeFileUpload:       {},
	TypeTaskCreated:      {},
	TypeTaskAssigned:     {},
	TypeTaskDue:          {},
	TypeTaskOverdue:      {},
	TypeAlarm:            {},
	TypeVisitStatus:      {},
	TypeMedicineReminder: {},
	TypeCarePlanUpdate:   {},
	TypeSystemAlert:      {},
	TypeOther:            {},
}

var validPriorities = map[string]struct{}{
	PriorityLow:    {},
	PriorityNormal: {},
	PriorityHigh:   {},
	PriorityUrgent: {},
}

var validRecipientTypes = map[string]struct{}{
	RecipientStaff:   {},
	RecipientPatient: {},
	RecipientAdmin:   {},
	RecipientSystem:  {},
}

var validStatuses = map[string]struct{}{
	StatusPending:   {},
	StatusSent:      {},
	StatusDelivered: {},
	StatusRead:      {},
	StatusFailed:    {},
}

// ValidType reports whether value belongs to the closed notification type set.
func ValidType(value string) bool {
	_, ok := validTypes[value]
	return ok
}

// ValidPriority reports whether value is a known priority level.
func ValidPriority(value string) bool {
	_, ok := validPriorities[value]
	return ok
}

// ValidRecipientType reports whether value is a known recipient category.
func ValidRecipientType(value string) bool {
	_, ok := validRecipientTypes[value]
	return ok
}

// ValidStatus reports whether value is a known delivery status.
func ValidStatus(value string) bool {
	_, ok := validStatuses[value]
	return ok
}

// PrioritySQLOrder yields a CASE expression ranking priorities from urgent
// down to low, for use in ORDER BY clauses.
const PrioritySQLOrder = "CASE priority WHEN 'urgent' THEN 0 WHEN 'high' THEN 1 WHEN 'normal' THEN 2 ELSE 3 END"
