package pipeline

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/MeKo-Tech/bubblegrade/internal/notify"
	"github.com/MeKo-Tech/bubblegrade/internal/scan"
)

// GetScan fetches a scan record by id.
func (c *Controller) GetScan(ctx context.Context, id uuid.UUID) (*scan.Result, error) {
	return c.store.Get(ctx, id)
}

// ApplyCorrection overwrites an extracted field with a human-provided
// value. Once no field is left needing review the scan completes and
// subscribers are notified.
func (c *Controller) ApplyCorrection(ctx context.Context, id uuid.UUID, field scan.Field, value, correctedBy string) (*scan.Result, error) {
	result, err := c.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := result.ApplyCorrection(field, value, correctedBy); err != nil {
		return nil, err
	}
	if err := c.store.Update(ctx, result); err != nil {
		return nil, fmt.Errorf("persist scan %s: %w", id, err)
	}

	c.log.Info().
		Stringer("scan_id", id).
		Str("field", string(field)).
		Str("corrected_by", correctedBy).
		Str("status", string(result.Status)).
		Msg("correction applied")

	if result.Status == scan.StatusCompleted {
		c.notifier.Publish(notify.StatusEvent(result))
	}
	return result, nil
}
