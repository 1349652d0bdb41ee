// Package risk scores sessions on a 0..100 scale.
//
// A session starts with Scorer.Initial and every batch of security events is
// folded in with Scorer.Recalculate. The default AdditiveScorer only adds:
//
//	low +5, medium +15, high +30, critical +50
//
// Scores are clamped to MaxScore. Replace the Scorer to change the policy,
// for example to add decay.
//
// Thresholds buckets scores into levels for reporting.
package risk
