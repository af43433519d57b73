package models

import "time"

// NotificationKind labels the event that produced a notification.
type NotificationKind string

const (
	NotificationDemandeApproved NotificationKind = "DEMANDE_APPROVED"
	NotificationDemandeRejected NotificationKind = "DEMANDE_REJECTED"
	NotificationDemandeAdvanced NotificationKind = "DEMANDE_STEP_ADVANCED"
	NotificationTuteurAssigned  NotificationKind = "TUTEUR_ASSIGNED"
)

// Notification is a best-effort, fire-and-forget message for a user.
type Notification struct {
	ID        string           `db:"id" json:"id"`
	UserID    string           `db:"user_id" json:"user_id"`
	Kind      NotificationKind `db:"kind" json:"kind"`
	Payload   []byte           `db:"payload" json:"payload,omitempty"`
	Read      bool             `db:"read" json:"read"`
	CreatedAt time.Time        `db:"created_at" json:"created_at"`
}
