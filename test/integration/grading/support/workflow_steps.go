package support

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cucumber/godog"

	"github.com/MeKo-Tech/bubblegrade/internal/scan"
)

// RegisterWorkflowSteps wires the processing, assertion and correction
// steps.
func (testCtx *TestContext) RegisterWorkflowSteps(sc *godog.ScenarioContext) {
	sc.Step(`^the sheet is processed$`, testCtx.theSheetIsProcessed)
	sc.Step(`^processing fails$`, testCtx.processingFails)
	sc.Step(`^the scan status is "([^"]*)"$`, testCtx.theScanStatusIs)
	sc.Step(`^the reported score is (\d+) of (\d+)$`, testCtx.theReportedScoreIs)
	sc.Step(`^the nombre field is "([^"]*)"$`, testCtx.theNombreFieldIs)
	sc.Step(`^the CURP field is "([^"]*)"$`, testCtx.theCURPFieldIs)
	sc.Step(`^the (nombre|CURP) field needs review$`, testCtx.theFieldNeedsReview)
	sc.Step(`^the (nombre|CURP) field does not need review$`, testCtx.theFieldDoesNotNeedReview)
	sc.Step(`^no field needs review$`, testCtx.noFieldNeedsReview)
	sc.Step(`^the status events are "([^"]*)"$`, testCtx.theStatusEventsAre)
	sc.Step(`^the (nombre|CURP) field is corrected to "([^"]*)" by "([^"]*)"$`, testCtx.theFieldIsCorrected)
	sc.Step(`^the correction is rejected$`, testCtx.theCorrectionIsRejected)
	sc.Step(`^the stored record matches the returned one$`, testCtx.theStoredRecordMatches)
}

func (testCtx *TestContext) theSheetIsProcessed() error {
	if err := testCtx.buildController(); err != nil {
		return err
	}
	data, err := testCtx.uploadBytes()
	if err != nil {
		return fmt.Errorf("encode sheet: %w", err)
	}

	testCtx.Result, testCtx.ProcessErr = testCtx.Controller.Process(context.Background(), data, "sheet.png")
	if testCtx.Result == nil && testCtx.ProcessErr == nil {
		return errors.New("processing returned neither a record nor an error")
	}
	return nil
}

func (testCtx *TestContext) processingFails() error {
	if testCtx.ProcessErr == nil {
		return errors.New("expected processing to fail")
	}
	return nil
}

func (testCtx *TestContext) theScanStatusIs(status string) error {
	if testCtx.Result == nil {
		return errors.New("no scan record")
	}
	if string(testCtx.Result.Status) != status {
		return fmt.Errorf("expected status %s, got %s", status, testCtx.Result.Status)
	}
	return nil
}

func (testCtx *TestContext) theReportedScoreIs(score, total int) error {
	if testCtx.Result == nil || testCtx.Result.OMR == nil {
		return errors.New("no bubble-grading result")
	}
	got := testCtx.Result.OMR
	if got.Score != score || got.Total != total {
		return fmt.Errorf("expected score %d/%d, got %d/%d", score, total, got.Score, got.Total)
	}
	return nil
}

func (testCtx *TestContext) fieldResult(name string) (*scan.FieldResult, error) {
	if testCtx.Result == nil {
		return nil, errors.New("no scan record")
	}
	switch name {
	case "nombre":
		if testCtx.Result.Nombre == nil {
			return nil, errors.New("no nombre result")
		}
		return testCtx.Result.Nombre, nil
	case "CURP":
		if testCtx.Result.CURP == nil {
			return nil, errors.New("no CURP result")
		}
		return testCtx.Result.CURP, nil
	default:
		return nil, fmt.Errorf("unknown field %q", name)
	}
}

func (testCtx *TestContext) theNombreFieldIs(text string) error {
	field, err := testCtx.fieldResult("nombre")
	if err != nil {
		return err
	}
	if field.Text != text {
		return fmt.Errorf("expected nombre %q, got %q", text, field.Text)
	}
	return nil
}

func (testCtx *TestContext) theCURPFieldIs(text string) error {
	field, err := testCtx.fieldResult("CURP")
	if err != nil {
		return err
	}
	if field.Text != text {
		return fmt.Errorf("expected CURP %q, got %q", text, field.Text)
	}
	return nil
}

func (testCtx *TestContext) theFieldNeedsReview(name string) error {
	field, err := testCtx.fieldResult(name)
	if err != nil {
		return err
	}
	if !field.NeedsReview {
		return fmt.Errorf("expected %s to need review (confidence %.2f)", name, field.Confidence)
	}
	return nil
}

func (testCtx *TestContext) theFieldDoesNotNeedReview(name string) error {
	field, err := testCtx.fieldResult(name)
	if err != nil {
		return err
	}
	if field.NeedsReview {
		return fmt.Errorf("expected %s not to need review (confidence %.2f)", name, field.Confidence)
	}
	return nil
}

func (testCtx *TestContext) noFieldNeedsReview() error {
	if err := testCtx.theFieldDoesNotNeedReview("nombre"); err != nil {
		return err
	}
	return testCtx.theFieldDoesNotNeedReview("CURP")
}

func (testCtx *TestContext) theStatusEventsAre(expected string) error {
	var want []string
	for _, part := range strings.Split(expected, ",") {
		want = append(want, strings.TrimSpace(part))
	}

	got := testCtx.Recorder.Statuses()
	if len(got) != len(want) {
		return fmt.Errorf("expected %d events %v, got %d %v", len(want), want, len(got), got)
	}
	for i := range want {
		if string(got[i]) != want[i] {
			return fmt.Errorf("event %d: expected %s, got %s", i, want[i], got[i])
		}
	}
	return nil
}

func (testCtx *TestContext) theFieldIsCorrected(name, value, correctedBy string) error {
	if testCtx.Result == nil {
		return errors.New("no scan record")
	}
	field := scan.FieldNombre
	if name == "CURP" {
		field = scan.FieldCURP
	}

	result, err := testCtx.Controller.ApplyCorrection(context.Background(), testCtx.Result.ID, field, value, correctedBy)
	testCtx.CorrectErr = err
	if err == nil {
		testCtx.Result = result
	}
	return nil
}

func (testCtx *TestContext) theCorrectionIsRejected() error {
	if testCtx.CorrectErr == nil {
		return errors.New("expected the correction to be rejected")
	}
	var corrErr *scan.CorrectionError
	if !errors.As(testCtx.CorrectErr, &corrErr) {
		return fmt.Errorf("expected a correction error, got %v", testCtx.CorrectErr)
	}
	return nil
}

func (testCtx *TestContext) theStoredRecordMatches() error {
	if testCtx.Result == nil {
		return errors.New("no scan record")
	}
	stored, err := testCtx.Controller.GetScan(context.Background(), testCtx.Result.ID)
	if err != nil {
		return fmt.Errorf("fetch stored scan: %w", err)
	}
	if stored.ID != testCtx.Result.ID || stored.Status != testCtx.Result.Status {
		return fmt.Errorf("stored scan %s in %s does not match returned %s in %s",
			stored.ID, stored.Status, testCtx.Result.ID, testCtx.Result.Status)
	}
	return nil
}
