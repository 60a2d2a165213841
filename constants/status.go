package constants

// JobStatus is the lifecycle state of a verification job.
type JobStatus string

// Stable values (exposed over the API and stored in snapshots).
const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Terminal reports whether no further transitions can happen.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// VerificationStatus is the verdict bucket derived from a confidence score.
type VerificationStatus string

const (
	StatusValid         VerificationStatus = "valid"
	StatusProbablyValid VerificationStatus = "probably_valid"
	StatusSuspicious    VerificationStatus = "suspicious"
	StatusInvalid       VerificationStatus = "invalid"
)

// Confidence thresholds for the verdict buckets.
const (
	ThresholdValid         = 85
	ThresholdProbablyValid = 70
	ThresholdSuspicious    = 50

	// AuthenticThreshold gates isAuthentic and issue reporting.
	AuthenticThreshold = ThresholdProbablyValid
)

// InspectionResult values recognized on certificates.
const (
	InspectionApproved = "APROBADO"
	InspectionRejected = "RECHAZADO"
)
