package risk

import "strings"

// MaxScore is the upper bound of every risk score.
const MaxScore = 100

// Severity of a security event.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Increment returns the number of points an event of this severity adds.
// Unknown severities add nothing.
func (s Severity) Increment() int {
	switch s {
	case SeverityLow:
		return 5
	case SeverityMedium:
		return 15
	case SeverityHigh:
		return 30
	case SeverityCritical:
		return 50
	default:
		return 0
	}
}

// Valid reports whether s is one of the known severities.
func (s Severity) Valid() bool {
	return s.Increment() > 0
}

// Scorer computes session risk scores.
// Implementations must keep every result within [0, MaxScore].
type Scorer interface {
	// Initial returns the score assigned to a freshly created session.
	Initial(role, ip string) int
	// Recalculate folds the severities of newly observed events into current.
	Recalculate(current int, severities ...Severity) int
}

// AdditiveScorer only ever adds to a score. It never decays.
type AdditiveScorer struct {
	// AdminRoles receive the administrative bonus. Defaults to "admin" and "administrator".
	AdminRoles []string
}

// Default is the scorer used when none is configured.
var Default Scorer = AdditiveScorer{}

const (
	adminBonus    = 10
	externalBonus = 15
)

// Initial adds 10 for administrative roles and 15 for clients outside private networks.
func (a AdditiveScorer) Initial(role, ip string) int {
	score := 0
	if a.isAdmin(role) {
		score += adminBonus
	}
	if !IsInternalIP(ip) {
		score += externalBonus
	}
	return Clamp(score)
}

// Recalculate adds the increment of every severity to current.
func (AdditiveScorer) Recalculate(current int, severities ...Severity) int {
	score := Clamp(current)
	for _, s := range severities {
		score += s.Increment()
	}
	return Clamp(score)
}

func (a AdditiveScorer) isAdmin(role string) bool {
	roles := a.AdminRoles
	if len(roles) == 0 {
		roles = []string{"admin", "administrator"}
	}
	for _, r := range roles {
		if strings.EqualFold(role, r) {
			return true
		}
	}
	return false
}

// Clamp bounds score to [0, MaxScore].
func Clamp(score int) int {
	return max(0, min(score, MaxScore))
}

// IsInternalIP reports whether ip starts with an RFC 1918 prefix
// (10., 172.16. through 172.31., 192.168.).
// Anything else, including loopback and unparsable input, counts as external.
func IsInternalIP(ip string) bool {
	switch {
	case strings.HasPrefix(ip, "10."), strings.HasPrefix(ip, "192.168."):
		return true
	case strings.HasPrefix(ip, "172."):
		rest := strings.TrimPrefix(ip, "172.")
		octet, _, ok := strings.Cut(rest, ".")
		if !ok || len(octet) == 0 || len(octet) > 2 {
			return false
		}
		n := 0
		for _, c := range octet {
			if c < '0' || c > '9' {
				return false
			}
			n = n*10 + int(c-'0')
		}
		return n >= 16 && n <= 31
	default:
		return false
	}
}
