package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestValidType(t *testing.T) {
	for _, valid := range []string{
		TypeFileUpload, TypeTaskCreated, TypeTaskAssigned, TypeTaskDue,
		TypeTaskOverdue, TypeAlarm, TypeVisitStatus, TypeMedicineReminder,
		TypeCarePlanUpdate, TypeSystemAlert, TypeOther,
	} {
		require.True(t, ValidType(valid), valid)
	}

	require.False(t, ValidType(""))
	require.False(t, ValidType("carrier_pigeon"))
}

func TestValidEnums(t *testing.T) {
	require.True(t, ValidPriority(PriorityUrgent))
	require.False(t, ValidPriority("extreme"))

	require.True(t, ValidRecipientType(RecipientPatient))
	require.False(t, ValidRecipientType("visitor"))

	require.True(t, ValidStatus(StatusDelivered))
	require.False(t, ValidStatus("lost"))
}

func TestExpired(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	n := Notification{}
	require.False(t, n.Expired(now))

	past := now.Add(-time.Minute)
	n.ExpiresAt = &past
	require.True(t, n.Expired(now))

	future := now.Add(time.Minute)
	n.ExpiresAt = &future
	require.False(t, n.Expired(now))
}
