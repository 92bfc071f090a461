package model

import "time"

// PushSubscription holds the information for a browser push subscription.
// Notifications for a vehicle owner go to every subscription registered by
// the identity matching the owner's university id.
type PushSubscription struct {
	Endpoint   string    `gorm:"primaryKey" json:"endpoint"`
	P256DH     string    `gorm:"column:p256dh;not null" json:"p256dh"`
	Auth       string    `gorm:"not null" json:"auth"`
	IdentityID string    `gorm:"size:64;not null;index" json:"identityId"`
	CreatedAt  time.Time `gorm:"not null" json:"createdAt"`
}
