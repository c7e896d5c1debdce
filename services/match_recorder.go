package services

import (
	"errors"
	"log"
	"time"

	"gorm.io/gorm"

	"pong-arena/game"
	"pong-arena/models"
)

// dedupWindow bounds the recent-row duplicate check. Two terminal triggers
// racing on the same session land well inside it; genuinely identical
// rematch scorelines outside it persist as separate matches.
const dedupWindow = 60 * time.Second

// MatchRecorderService writes finished matches to the store. Everything here
// is best-effort: unresolved display names and detected duplicates skip the
// write with a log line, and no failure ever reaches a session.
type MatchRecorderService struct {
	DB *gorm.DB
}

func NewMatchRecorderService(db *gorm.DB) *MatchRecorderService {
	return &MatchRecorderService{DB: db}
}

// RecordResult implements game.ResultRecorder. Runs on its own goroutine
// relative to session teardown.
func (s *MatchRecorderService) RecordResult(config game.MatchConfig, names [2]string, scores [2]int) {
	p0, err := s.resolvePlayer(names[0])
	if err != nil {
		log.Printf("[Recorder] skipping persist: cannot resolve %q: %v", names[0], err)
		return
	}
	p1, err := s.resolvePlayer(names[1])
	if err != nil {
		log.Printf("[Recorder] skipping persist: cannot resolve %q: %v", names[1], err)
		return
	}

	dup, err := s.findRecentMatch(p0.ID, scores[0], p1.ID, scores[1])
	if err != nil {
		log.Printf("[Recorder] dedup check failed, persisting anyway: %v", err)
	} else if dup {
		log.Printf("[Recorder] duplicate result for %s vs %s (%d-%d), skipping insert",
			names[0], names[1], scores[0], scores[1])
		return
	}

	record := models.MatchRecord{
		Difficulty: string(config.Difficulty),
		ScoreLimit: config.ScoreLimit,
		PlayedAt:   time.Now(),
	}

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&record).Error; err != nil {
			return err
		}
		participants := []models.MatchParticipant{
			{MatchID: record.ID, PlayerID: p0.ID, Slot: 0, Score: scores[0], Result: resultFor(scores[0], scores[1])},
			{MatchID: record.ID, PlayerID: p1.ID, Slot: 1, Score: scores[1], Result: resultFor(scores[1], scores[0])},
		}
		return tx.Create(&participants).Error
	})
	if err != nil {
		log.Printf("[Recorder] failed to persist match %s vs %s: %v", names[0], names[1], err)
		return
	}

	log.Printf("[Recorder] persisted match %s: %s %d - %d %s",
		record.ID, names[0], scores[0], scores[1], names[1])
}

// resolvePlayer maps a display name to a durable player record. Guest names
// from local matches have no row and fail here, which is expected.
func (s *MatchRecorderService) resolvePlayer(name string) (*models.Player, error) {
	var player models.Player
	if err := s.DB.First(&player, "username = ?", name).Error; err != nil {
		return nil, err
	}
	return &player, nil
}

// findRecentMatch checks for an already-persisted match between the same two
// players with the same two scores inside the dedup window. A heuristic, not
// an idempotency key; see DESIGN.md.
func (s *MatchRecorderService) findRecentMatch(aID string, aScore int, bID string, bScore int) (bool, error) {
	var count int64
	err := s.DB.Model(&models.MatchRecord{}).
		Joins("JOIN match_participants pa ON pa.match_id = match_records.id AND pa.player_id = ? AND pa.score = ?", aID, aScore).
		Joins("JOIN match_participants pb ON pb.match_id = match_records.id AND pb.player_id = ? AND pb.score = ?", bID, bScore).
		Where("match_records.created_at >= ?", time.Now().Add(-dedupWindow)).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// ListRecent returns the newest persisted matches with their participants.
func (s *MatchRecorderService) ListRecent(limit int) ([]models.MatchRecord, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var records []models.MatchRecord
	err := s.DB.
		Preload("Participants").
		Preload("Participants.Player").
		Order("played_at DESC").
		Limit(limit).
		Find(&records).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	return records, nil
}

func resultFor(own, other int) string {
	if own > other {
		return "win"
	}
	return "loss"
}
