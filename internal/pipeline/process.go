package pipeline

import (
	"context"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/MeKo-Tech/bubblegrade/internal/enhance"
	"github.com/MeKo-Tech/bubblegrade/internal/notify"
	"github.com/MeKo-Tech/bubblegrade/internal/pdf"
	"github.com/MeKo-Tech/bubblegrade/internal/scan"
)

// Process runs the full grading workflow for one uploaded sheet and
// returns the persisted record. Processing failures are recorded on the
// scan itself (ERROR status, partial results preserved) and returned
// alongside it; only persistence failures before a record exists return
// a nil record.
func (c *Controller) Process(ctx context.Context, data []byte, filename string) (*scan.Result, error) {
	result := scan.NewResult(filename)
	if err := c.store.Create(ctx, result); err != nil {
		return nil, fmt.Errorf("create scan record: %w", err)
	}
	c.notifier.Publish(notify.StatusEvent(result))

	c.log.Info().
		Stringer("scan_id", result.ID).
		Str("filename", filename).
		Int("bytes", len(data)).
		Msg("processing scan")
	totalStart := time.Now()

	if err := c.advance(ctx, result, scan.StatusProcessing); err != nil {
		return result, err
	}

	enhanced, err := c.enhanceUpload(ctx, data)
	if err != nil {
		return c.fail(ctx, result, err)
	}

	result.Quality = enhance.AnalyzeQuality(enhanced)

	regions, err := c.detectLayout(ctx, enhanced)
	if err != nil {
		return c.fail(ctx, result, err)
	}
	result.Regions = regions

	if err := c.gradeConcurrently(ctx, result, enhanced); err != nil {
		return c.fail(ctx, result, err)
	}

	status := c.mergeOutcome(result)
	if err := result.Finish(status); err != nil {
		return c.fail(ctx, result, err)
	}

	c.metrics.scansTotal.WithLabelValues(string(result.Status)).Inc()
	c.metrics.stageDuration.WithLabelValues("total").Observe(time.Since(totalStart).Seconds())

	if err := c.store.Update(ctx, result); err != nil {
		return result, fmt.Errorf("persist scan %s: %w", result.ID, err)
	}
	c.notifier.Publish(notify.StatusEvent(result))

	c.log.Info().
		Stringer("scan_id", result.ID).
		Str("status", string(result.Status)).
		Dur("duration", time.Since(totalStart)).
		Msg("scan processed")
	return result, nil
}

// advance moves the scan to a new status, persists it and notifies
// subscribers.
func (c *Controller) advance(ctx context.Context, result *scan.Result, to scan.Status) error {
	if err := result.Transition(to); err != nil {
		return err
	}
	if err := c.store.Update(ctx, result); err != nil {
		return fmt.Errorf("persist scan %s: %w", result.ID, err)
	}
	c.notifier.Publish(notify.StatusEvent(result))
	return nil
}

// fail records a fatal failure on the scan, keeping any partial
// results, and returns the record together with the failure. The
// failed record is persisted even when the context is already done.
func (c *Controller) fail(ctx context.Context, result *scan.Result, err error) (*scan.Result, error) {
	c.log.Error().Err(err).Stringer("scan_id", result.ID).Msg("scan failed")
	result.Fail(err.Error())
	c.metrics.scansTotal.WithLabelValues(string(scan.StatusError)).Inc()

	persistCtx := context.WithoutCancel(ctx)
	if updateErr := c.store.Update(persistCtx, result); updateErr != nil {
		c.log.Error().Err(updateErr).Stringer("scan_id", result.ID).Msg("persist failed scan")
	}
	c.notifier.Publish(notify.StatusEvent(result))
	return result, err
}

// enhanceUpload decodes the upload and normalizes the photograph. PDF
// uploads are unwrapped to the sheet image embedded on the first page.
func (c *Controller) enhanceUpload(ctx context.Context, data []byte) (*image.NRGBA, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	defer func() {
		c.metrics.stageDuration.WithLabelValues("enhance").Observe(time.Since(start).Seconds())
	}()

	if pdf.IsPDF(data) {
		img, err := pdf.ExtractScanImage(data)
		if err != nil {
			return nil, err
		}
		return c.enhancer.EnhanceImage(img), nil
	}
	return c.enhancer.Enhance(data)
}

// detectLayout locates the three template regions on the enhanced
// sheet. Boundary detection failures are non-fatal and come back as a
// flagged full-frame fallback.
func (c *Controller) detectLayout(ctx context.Context, enhanced *image.NRGBA) (*scan.RegionSet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	regions, err := c.layout.Detect(enhanced)
	c.metrics.stageDuration.WithLabelValues("layout").Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}
	if regions.Fallback {
		c.log.Warn().Msg("sheet boundary not found, using full-frame layout")
	}
	return regions, nil
}

// gradeConcurrently runs bubble grading and both field extractions
// against the shared enhanced buffer. All three tasks only read the
// buffer. Partial results are attached to the record even when a
// sibling task fails, so the ERROR path keeps them for diagnostics.
func (c *Controller) gradeConcurrently(ctx context.Context, result *scan.Result, enhanced *image.NRGBA) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var (
		wg        sync.WaitGroup
		omrRes    *scan.OMRResult
		nombreRes *scan.FieldResult
		curpRes   *scan.FieldResult
		omrErr    error
		nombreErr error
		curpErr   error
	)

	wg.Add(3)
	go func() {
		defer wg.Done()
		start := time.Now()
		omrRes, omrErr = c.backend.GradeOMR(ctx, enhanced, result.Regions.OMR)
		c.metrics.stageDuration.WithLabelValues("omr").Observe(time.Since(start).Seconds())
	}()
	go func() {
		defer wg.Done()
		start := time.Now()
		nombreRes, nombreErr = c.backend.ExtractField(ctx, enhanced, result.Regions.Nombre, scan.FieldNombre)
		c.metrics.stageDuration.WithLabelValues("nombre").Observe(time.Since(start).Seconds())
	}()
	go func() {
		defer wg.Done()
		start := time.Now()
		curpRes, curpErr = c.backend.ExtractField(ctx, enhanced, result.Regions.CURP, scan.FieldCURP)
		c.metrics.stageDuration.WithLabelValues("curp").Observe(time.Since(start).Seconds())
	}()
	wg.Wait()

	result.OMR = omrRes
	result.Nombre = nombreRes
	result.CURP = curpRes

	if omrErr != nil {
		return fmt.Errorf("omr grading: %w", omrErr)
	}
	if nombreErr != nil {
		return fmt.Errorf("nombre extraction: %w", nombreErr)
	}
	if curpErr != nil {
		return fmt.Errorf("curp extraction: %w", curpErr)
	}

	c.metrics.bubblesDetected.Observe(float64(result.OMR.Total))
	c.metrics.fieldConfidence.WithLabelValues("nombre").Observe(result.Nombre.Confidence)
	c.metrics.fieldConfidence.WithLabelValues("curp").Observe(result.CURP.Confidence)
	return nil
}
