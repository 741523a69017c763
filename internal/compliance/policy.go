package compliance

// ShouldRemediate reports whether the destructive remediation pass must run.
//
// It is true only when the measured maximum TAC is strictly above the
// profile's hard ceiling. Warn-band documents are never remediated:
// remediation rasterizes every page and drops embedded fonts and vector
// precision, which is worse than a compliant page that carries a warning.
// Callers must not remediate warn-band pages on their own.
//
// A nil report means the measurement is unknown and never triggers
// remediation.
func ShouldRemediate(report *InkCoverageReport, p Profile) bool {
	if report == nil {
		return false
	}
	return report.MaxTAC > p.TACFail
}
