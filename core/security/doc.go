// Package security detects identity drift between the signals recorded at login
// and the signals of the current request.
//
//	engine := security.NewEngine()
//	report := engine.Check(
//		security.Signals{IP: "10.0.0.5", UserAgent: "Firefox"},
//		security.Signals{IP: "203.0.113.9", UserAgent: "Firefox"},
//	)
//	// report.Events: one ip_change event with medium severity
//
// An IP change is a medium severity event, a user agent change is low.
// Additional heuristics can be plugged in with WithDetectors; they report
// anomalies, which do not affect the risk score. FingerprintDrift is the
// bundled one:
//
//	engine := security.NewEngine(security.WithDetectors(security.FingerprintDrift))
package security
