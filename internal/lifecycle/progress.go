package lifecycle

import (
	"math"
	"time"

	"github.com/nikhilbhutani/resumeflow/internal/models"
)

// AssumedStageDuration is the nominal length of one background stage. The
// progress figures derived from it are estimates, not measurements.
const AssumedStageDuration = 60 * time.Second

const maxInFlightPercent = 95

type Progress struct {
	Percentage             int    `json:"percentage"`
	EstimatedTimeRemaining int    `json:"estimatedTimeRemaining"`
	Description            string `json:"description"`
}

var descriptions = map[models.ResumeStatus]string{
	models.StatusUploaded:           "Uploaded and waiting to be processed",
	models.StatusParsing:            "Extracting text from your resume",
	models.StatusParsed:             "Text extracted successfully",
	models.StatusParsedWithWarnings: "Text extracted with quality warnings",
	models.StatusFailed:             "Processing failed",
	models.StatusAnalyzing:          "Analyzing your resume",
	models.StatusAnalyzed:           "Analysis complete, finding job matches",
	models.StatusAnalysisFailed:     "Analysis failed",
	models.StatusCompleted:          "Processing complete",
	models.StatusReprocessing:       "Preparing to process your resume again",
}

func Describe(s models.ResumeStatus) string {
	if d, ok := descriptions[s]; ok {
		return d
	}
	return "Unknown status"
}

// Estimate derives percent complete and seconds remaining for r at now.
// In-flight stages never report more than 95%.
func Estimate(r *models.Resume, now time.Time) Progress {
	p := Progress{Description: Describe(r.Status)}

	switch {
	case r.Status.InFlight():
		start := r.CreatedAt
		if r.LastProcessedAt != nil {
			start = *r.LastProcessedAt
		}
		elapsed := now.Sub(start)
		if elapsed < 0 {
			elapsed = 0
		}
		pct := int(math.Round(float64(elapsed) / float64(AssumedStageDuration) * 100))
		p.Percentage = min(pct, maxInFlightPercent)
		p.EstimatedTimeRemaining = int(max(AssumedStageDuration-elapsed, 0).Seconds())
	case r.Status == models.StatusParsed, r.Status == models.StatusParsedWithWarnings,
		r.Status == models.StatusAnalyzed, r.Status == models.StatusCompleted:
		p.Percentage = 100
	}
	return p
}
