package onboarding

// Stage is the driver's readiness state. The dispatch connection is only
// opened at Ready; earlier stages gate on explicit conditions instead of
// nested boolean checks.
type Stage string

const (
	StageUnauthenticated     Stage = "unauthenticated"
	StageDocumentsPending    Stage = "documents_pending"
	StageVerificationPending Stage = "verification_pending"
	StageReady               Stage = "ready"
)

// next is the single allowed forward edge per stage
var next = map[Stage]Stage{
	StageUnauthenticated:     StageDocumentsPending,
	StageDocumentsPending:    StageVerificationPending,
	StageVerificationPending: StageReady,
}

// Next returns the stage following s, or s itself when already Ready
func Next(s Stage) Stage {
	if n, ok := next[s]; ok {
		return n
	}
	return s
}

// Conditions are the account facts a stage is derived from
type Conditions struct {
	Authenticated     bool
	DocumentsUploaded bool
	DocumentsVerified bool
}

// StageFor derives the readiness stage from account conditions. Each
// stage requires every preceding condition, so a revoked document drops
// the driver back to the matching earlier stage.
func StageFor(c Conditions) Stage {
	switch {
	case !c.Authenticated:
		return StageUnauthenticated
	case !c.DocumentsUploaded:
		return StageDocumentsPending
	case !c.DocumentsVerified:
		return StageVerificationPending
	default:
		return StageReady
	}
}
