package realtime

// Named realtime streams used across the platform. The per-recipient
// notifications stream carries lifecycle events; the category streams carry
// dispatch payloads fanned out by entity category.
const (
	StreamNotifications = "notifications"
	StreamTasks         = "tasks"
	StreamAlarms        = "alarms"
	StreamVisits        = "visits"
	StreamMedicine      = "medicine"
)
