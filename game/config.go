package game

// Difficulty selects the fixed physics tuning for a match. The three levels
// map to constants below; nothing else about the physics is configurable.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

const (
	DefaultScoreLimit = 5
	MinScoreLimit     = 1
	MaxScoreLimit     = 21

	DefaultCanvasWidth  = 800.0
	DefaultCanvasHeight = 600.0
)

// difficultyParams is the per-level physics tuning.
type difficultyParams struct {
	BallSpeed      float64 // initial horizontal ball speed, px per tick
	PaddleSpeed    float64 // paddle travel per tick
	SpeedIncrement float64 // added to |vx| on every paddle hit
}

var difficultyTable = map[Difficulty]difficultyParams{
	DifficultyEasy:   {BallSpeed: 3, PaddleSpeed: 6, SpeedIncrement: 0.2},
	DifficultyMedium: {BallSpeed: 5, PaddleSpeed: 6, SpeedIncrement: 0.3},
	DifficultyHard:   {BallSpeed: 7, PaddleSpeed: 7, SpeedIncrement: 0.5},
}

// MatchConfig is immutable for the lifetime of a session. Resetting a session
// reuses the same config with a fresh simulation.
type MatchConfig struct {
	Difficulty   Difficulty `json:"difficulty"`
	ScoreLimit   int        `json:"score_limit"`
	CanvasWidth  float64    `json:"canvas_width"`
	CanvasHeight float64    `json:"canvas_height"`
}

// NewMatchConfig normalizes client-supplied settings: unknown difficulties
// fall back to medium, the score limit is clamped to [1,21], zero canvas
// dimensions get the defaults.
func NewMatchConfig(difficulty Difficulty, scoreLimit int) MatchConfig {
	if _, ok := difficultyTable[difficulty]; !ok {
		difficulty = DifficultyMedium
	}
	if scoreLimit == 0 {
		scoreLimit = DefaultScoreLimit
	}
	if scoreLimit < MinScoreLimit {
		scoreLimit = MinScoreLimit
	}
	if scoreLimit > MaxScoreLimit {
		scoreLimit = MaxScoreLimit
	}
	return MatchConfig{
		Difficulty:   difficulty,
		ScoreLimit:   scoreLimit,
		CanvasWidth:  DefaultCanvasWidth,
		CanvasHeight: DefaultCanvasHeight,
	}
}

func (c MatchConfig) params() difficultyParams {
	p, ok := difficultyTable[c.Difficulty]
	if !ok {
		p = difficultyTable[DifficultyMedium]
	}
	return p
}
