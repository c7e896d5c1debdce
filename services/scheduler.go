// services/scheduler.go
package services

import (
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// Rooms stuck with a single occupant are reaped after this long.
const roomTTL = 10 * time.Minute

// StartRoomSweeper runs the periodic cleanup of pending rooms. Without it a
// half-filled room lingers as long as its owner stays connected.
func (m *MatchmakerService) StartRoomSweeper() {
	sched, _ := gocron.NewScheduler()
	sched.Start()

	// Every minute: expire rooms whose opponent never arrived
	_, _ = sched.NewJob(
		gocron.DurationJob(1*time.Minute),
		gocron.NewTask(func() {
			before := m.RoomCount()
			m.SweepExpiredRooms(roomTTL)
			if dropped := before - m.RoomCount(); dropped > 0 {
				log.Printf("[Sweeper] reaped %d stale room(s)", dropped)
			}
		}),
	)
}
