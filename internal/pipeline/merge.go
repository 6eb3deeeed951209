package pipeline

import (
	"github.com/MeKo-Tech/bubblegrade/internal/fields"
	"github.com/MeKo-Tech/bubblegrade/internal/scan"
)

// applyReviewFlags marks extractions that cannot be trusted: low
// confidence on either field, or a CURP that does not match the
// 18-character format. Low confidence is never an error.
func (c *Controller) applyReviewFlags(result *scan.Result) {
	if result.Nombre != nil {
		result.Nombre.NeedsReview = result.Nombre.Confidence < c.config.Review.NombreThreshold
	}
	if result.CURP != nil {
		result.CURP.NeedsReview = result.CURP.Confidence < c.config.Review.CURPThreshold ||
			!fields.ValidCURP(result.CURP.Text)
	}
}

// mergeOutcome decides the terminal status of a successfully processed
// scan: any review flag or a zero bubble score sends it to a human,
// otherwise it completes.
func (c *Controller) mergeOutcome(result *scan.Result) scan.Status {
	c.applyReviewFlags(result)

	if result.Nombre != nil && result.Nombre.NeedsReview {
		return scan.StatusNeedsReview
	}
	if result.CURP != nil && result.CURP.NeedsReview {
		return scan.StatusNeedsReview
	}
	if result.OMR != nil && result.OMR.Score == 0 {
		return scan.StatusNeedsReview
	}
	return scan.StatusCompleted
}
