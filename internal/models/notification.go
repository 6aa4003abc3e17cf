package models

import "time"

// Notification in-app message for a user
type Notification struct {
	BaseModel
	UserID  uint       `json:"user_id" gorm:"not null;index"`
	Type    string     `json:"type" gorm:"not null;size:50"`
	Title   string     `json:"title" gorm:"not null;size:200"`
	Message string     `json:"message" gorm:"size:1000"`
	Link    string     `json:"link,omitempty" gorm:"size:255"`
	ReadAt  *time.Time `json:"read_at,omitempty" gorm:"index"`
}

func (n *Notification) TableName() string {
	return "notifications"
}

// Notification types
const (
	NotificationAccountPending   = "ACCOUNT_PENDING_APPROVAL"
	NotificationAccountApproved  = "ACCOUNT_APPROVED"
	NotificationAccountRejected  = "ACCOUNT_REJECTED"
	NotificationAccountSuspended = "ACCOUNT_SUSPENDED"
	NotificationDocumentReady    = "DOCUMENT_GENERATED"
	NotificationSocieteShared    = "SOCIETE_SHARED"
)

func (n *Notification) IsRead() bool {
	return n.ReadAt != nil
}
