package risk

// Level is the bucket a score falls into.
type Level string

const (
	LevelLow      Level = "low"
	LevelMedium   Level = "medium"
	LevelHigh     Level = "high"
	LevelCritical Level = "critical"
)

// Thresholds are the lower bounds of the medium, high and critical levels.
type Thresholds struct {
	Medium   int
	High     int
	Critical int
}

// DefaultThresholds: low <25, medium <50, high <75, critical >=75.
var DefaultThresholds = Thresholds{Medium: 25, High: 50, Critical: 75}

// Classify returns the level of score.
func (t Thresholds) Classify(score int) Level {
	switch {
	case score >= t.Critical:
		return LevelCritical
	case score >= t.High:
		return LevelHigh
	case score >= t.Medium:
		return LevelMedium
	default:
		return LevelLow
	}
}

// Classify buckets score using DefaultThresholds.
func Classify(score int) Level {
	return DefaultThresholds.Classify(score)
}
