package game

import (
	"math"
	"math/rand"
	"sync"
	"time"
)

// Direction is the latest movement intent for a paddle slot.
type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
	DirectionNone Direction = "none"
)

const (
	countdownDuration = 3 * time.Second

	ballRadius   = 10.0
	paddleWidth  = 10.0
	paddleHeight = 100.0
	paddleInset  = 10.0 // gap between canvas edge and paddle face

	// Vertical speed after a paddle hit scales with how far from the
	// paddle center the ball connected, up to this factor.
	bounceVerticalFactor = 5.0
)

// Ball is the ball's kinematic state at one tick.
type Ball struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	VX     float64 `json:"vx"`
	VY     float64 `json:"vy"`
	Radius float64 `json:"radius"`
}

// Paddle is one slot's paddle. Slot 0 defends the left edge, slot 1 the right.
type Paddle struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// State is an immutable snapshot of a simulation, safe to hand to the
// broadcast path. It never aliases the simulation's internal fields.
type State struct {
	Ball           Ball      `json:"ball"`
	Paddles        [2]Paddle `json:"paddles"`
	Scores         [2]int    `json:"scores"`
	IsCountingDown bool      `json:"is_counting_down"`
	CountdownValue int       `json:"countdown_value"`
	IsPaused       bool      `json:"is_paused"`
	PausedBySlot   int       `json:"paused_by_slot"` // -1 when not paused
	HasEnded       bool      `json:"has_ended"`
}

// Simulation is the authoritative state machine for one match. It owns no
// timers; the session drives Tick at a fixed cadence. All methods are safe
// for concurrent use because input routing and the tick loop run on
// different goroutines.
type Simulation struct {
	mu     sync.Mutex
	config MatchConfig
	params difficultyParams

	ball    Ball
	paddles [2]Paddle
	scores  [2]int
	intents [2]Direction

	countingDown       bool
	countdownStartedAt time.Time

	paused   bool
	pausedBy int

	ended bool
}

// NewSimulation builds a match in its initial countdown: ball centered with a
// random serve direction, paddles vertically centered, scores zeroed.
func NewSimulation(config MatchConfig) *Simulation {
	s := &Simulation{
		config:   config,
		params:   config.params(),
		intents:  [2]Direction{DirectionNone, DirectionNone},
		pausedBy: -1,
	}

	paddleY := (config.CanvasHeight - paddleHeight) / 2
	s.paddles[0] = Paddle{X: paddleInset, Y: paddleY, Width: paddleWidth, Height: paddleHeight}
	s.paddles[1] = Paddle{X: config.CanvasWidth - paddleInset - paddleWidth, Y: paddleY, Width: paddleWidth, Height: paddleHeight}

	dir := 1.0
	if rand.Intn(2) == 0 {
		dir = -1.0
	}
	s.resetBall(dir)
	s.startCountdown()

	return s
}

// resetBall centers the ball and serves it horizontally in the given
// direction with a small random vertical component.
func (s *Simulation) resetBall(horizontalDir float64) {
	s.ball = Ball{
		X:      s.config.CanvasWidth / 2,
		Y:      s.config.CanvasHeight / 2,
		VX:     horizontalDir * s.params.BallSpeed,
		VY:     (rand.Float64()*2 - 1) * s.params.BallSpeed / 2,
		Radius: ballRadius,
	}
}

func (s *Simulation) startCountdown() {
	s.countingDown = true
	s.countdownStartedAt = time.Now()
}

// SetIntent records the latest directional intent for a slot. Last write
// wins; the caller is responsible for slot/sender validation.
func (s *Simulation) SetIntent(slot int, dir Direction) {
	if slot < 0 || slot > 1 {
		return
	}
	switch dir {
	case DirectionUp, DirectionDown, DirectionNone:
	default:
		return
	}
	s.mu.Lock()
	s.intents[slot] = dir
	s.mu.Unlock()
}

// Tick advances the match by one fixed step. Calling Tick on a paused or
// ended match is a no-op; during countdown only the countdown clock advances.
func (s *Simulation) Tick() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ended || s.paused {
		return
	}

	if s.countingDown {
		// Wall-clock based so tick jitter never stretches the countdown.
		if time.Since(s.countdownStartedAt) >= countdownDuration {
			s.countingDown = false
		}
		return
	}

	s.ball.X += s.ball.VX
	s.ball.Y += s.ball.VY

	// Top/bottom wall reflection, clamped in-bounds.
	if s.ball.Y-ballRadius < 0 {
		s.ball.Y = ballRadius
		s.ball.VY = -s.ball.VY
	} else if s.ball.Y+ballRadius > s.config.CanvasHeight {
		s.ball.Y = s.config.CanvasHeight - ballRadius
		s.ball.VY = -s.ball.VY
	}

	s.movePaddles()

	// Only test the paddle the ball is travelling toward.
	if s.ball.VX < 0 {
		s.collidePaddle(0)
	} else if s.ball.VX > 0 {
		s.collidePaddle(1)
	}

	// Score when the ball exits past an edge. The fresh serve travels away
	// from the scorer's side, toward the player who conceded.
	if s.ball.X+ballRadius < 0 {
		s.awardPoint(1)
	} else if s.ball.X-ballRadius > s.config.CanvasWidth {
		s.awardPoint(0)
	}
}

func (s *Simulation) movePaddles() {
	for i := 0; i < 2; i++ {
		switch s.intents[i] {
		case DirectionUp:
			s.paddles[i].Y -= s.params.PaddleSpeed
		case DirectionDown:
			s.paddles[i].Y += s.params.PaddleSpeed
		}
		if s.paddles[i].Y < 0 {
			s.paddles[i].Y = 0
		}
		if max := s.config.CanvasHeight - paddleHeight; s.paddles[i].Y > max {
			s.paddles[i].Y = max
		}
	}
}

// collidePaddle resolves an axis-aligned overlap between the ball and one
// paddle: reposition to the paddle face, invert the horizontal velocity,
// derive the vertical velocity from the contact offset and grow the
// horizontal speed by the difficulty's increment.
func (s *Simulation) collidePaddle(slot int) {
	p := s.paddles[slot]

	if s.ball.X+ballRadius < p.X || s.ball.X-ballRadius > p.X+p.Width {
		return
	}
	if s.ball.Y+ballRadius < p.Y || s.ball.Y-ballRadius > p.Y+p.Height {
		return
	}

	if slot == 0 {
		s.ball.X = p.X + p.Width + ballRadius
	} else {
		s.ball.X = p.X - ballRadius
	}

	offset := s.ball.Y - (p.Y + p.Height/2)
	s.ball.VX = -s.ball.VX
	s.ball.VY = offset / (p.Height / 2) * bounceVerticalFactor
	s.ball.VX += math.Copysign(s.params.SpeedIncrement, s.ball.VX)
}

func (s *Simulation) awardPoint(slot int) {
	s.scores[slot]++
	if s.scores[slot] >= s.config.ScoreLimit {
		// Terminal and latched: nothing mutates scores past this point.
		s.ended = true
		return
	}

	serveDir := 1.0 // away from the left scorer
	if slot == 1 {
		serveDir = -1.0
	}
	s.resetBall(serveDir)
	s.startCountdown()
}

// Pause suspends physics. Rejected while ended, counting down or already
// paused; the countdown cannot be paused because it is the re-sync window.
func (s *Simulation) Pause(slot int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ended {
		return ErrAlreadyEnded
	}
	if s.countingDown || s.paused {
		return ErrCannotPause
	}
	s.paused = true
	s.pausedBy = slot
	return nil
}

// Resume clears a pause held by exactly this slot and re-enters a fresh
// countdown so both clients re-synchronize before play continues.
func (s *Simulation) Resume(slot int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.paused || s.pausedBy != slot {
		return ErrCannotResume
	}
	s.paused = false
	s.pausedBy = -1
	s.startCountdown()
	return nil
}

// ForceForfeit latches a terminal scoreline where the leaver takes zero and
// the opponent wins at the score limit. Used on mid-match disconnects.
func (s *Simulation) ForceForfeit(leaverSlot int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ended || leaverSlot < 0 || leaverSlot > 1 {
		return
	}
	s.scores[leaverSlot] = 0
	s.scores[1-leaverSlot] = s.config.ScoreLimit
	s.ended = true
}

// Snapshot returns a copy of the current state for broadcast.
func (s *Simulation) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	countdown := 0
	if s.countingDown {
		remaining := countdownDuration - time.Since(s.countdownStartedAt)
		if remaining > 0 {
			countdown = int(math.Ceil(remaining.Seconds()))
		}
	}

	return State{
		Ball:           s.ball,
		Paddles:        s.paddles,
		Scores:         s.scores,
		IsCountingDown: s.countingDown,
		CountdownValue: countdown,
		IsPaused:       s.paused,
		PausedBySlot:   s.pausedBy,
		HasEnded:       s.ended,
	}
}

// Config returns the immutable match configuration.
func (s *Simulation) Config() MatchConfig {
	return s.config
}
