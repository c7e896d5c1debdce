package models

import "time"

// MatchRecord is one finished match. Participant rows carry the per-player
// outcome; the record itself only pins the session metadata.
type MatchRecord struct {
	ID         string `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	Difficulty string `gorm:"type:varchar(16)" json:"difficulty"`
	ScoreLimit int    `json:"score_limit"`

	PlayedAt time.Time `gorm:"index" json:"played_at"`

	Participants []MatchParticipant `gorm:"foreignKey:MatchID" json:"participants"`

	Timestamps
}

// MatchParticipant is one player's side of a MatchRecord. Slot mirrors the
// paddle index the player held for the whole session (0 = left, 1 = right).
type MatchParticipant struct {
	ID       string `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	MatchID  string `gorm:"index;not null" json:"match_id"`
	PlayerID string `gorm:"index;not null" json:"player_id"`

	Slot   int    `json:"slot"`
	Score  int    `json:"score"`
	Result string `json:"result" gorm:"type:varchar(8);check:result IN ('win','loss')"`

	Player Player `gorm:"foreignKey:PlayerID" json:"player,omitempty"`

	Timestamps
}
