package models

import "time"

// Player is a local snapshot of user data needed to attribute match results.
// Owned solely by the match engine service; populated by the player sync
// worker from the Profile Service. Guest/ephemeral display names used in
// local matches never appear here, which is what makes result persistence
// best-effort: an unresolved name simply skips the write.
type Player struct {
	ID             string  `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	ExternalUserID string  `gorm:"uniqueIndex;not null" json:"external_user_id"` // profile service UUID
	Username       string  `gorm:"uniqueIndex;not null" json:"username"`
	AvatarURL      *string `json:"avatar_url,omitempty"`

	// Optional: caching for presence displays
	LastSeen *time.Time `json:"last_seen,omitempty"`
	IsBanned bool       `json:"is_banned" gorm:"default:false"`

	Timestamps
}
