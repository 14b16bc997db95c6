package domain

// Verdict is the result of checking an answer against its evidence.
type Verdict struct {
	// Valid is true when every claim in the answer is supported.
	Valid bool `json:"is_valid"`

	// Reason explains the decision.
	Reason string `json:"reason"`

	// Correction is an optional corrected answer for invalid verdicts.
	Correction *string `json:"correction"`
}

// FailSafeVerdict is returned whenever verification cannot complete.
// An unverifiable answer is reported as valid with the failure as reason,
// so the user still sees the answer while the reason records the gap.
func FailSafeVerdict(cause error) Verdict {
	reason := "verification could not be completed"
	if cause != nil {
		reason += ": " + cause.Error()
	}
	return Verdict{Valid: true, Reason: reason}
}

// NoEvidenceVerdict accompanies the no-information event.
func NoEvidenceVerdict() Verdict {
	return Verdict{Valid: true, Reason: "No context available."}
}
