package support

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/cucumber/godog"
)

// RegisterSheetSteps wires the steps describing the uploaded sheet and
// the scripted recognition replies.
func (testCtx *TestContext) RegisterSheetSteps(sc *godog.ScenarioContext) {
	sc.Step(`^a sheet with (\d+) bubbles all marked$`, testCtx.aSheetWithBubblesAllMarked)
	sc.Step(`^a sheet with (\d+) bubbles in rows of (\d+) with marks at positions "([^"]*)"$`, testCtx.aSheetWithBubbleRows)
	sc.Step(`^the answer key is "([^"]*)"$`, testCtx.theAnswerKeyIs)
	sc.Step(`^the text engine reads the nombre as "([^"]*)" with confidence (\d+)$`, testCtx.theEngineReadsNombre)
	sc.Step(`^the text engine reads the CURP as "([^"]*)" with confidence (\d+)$`, testCtx.theEngineReadsCURP)
	sc.Step(`^the text engine fails with "([^"]*)"$`, testCtx.theEngineFails)
	sc.Step(`^the upload is not a decodable image$`, testCtx.theUploadIsGarbage)
}

func (testCtx *TestContext) aSheetWithBubblesAllMarked(count int) error {
	if count <= 0 {
		return fmt.Errorf("bubble count must be positive, got %d", count)
	}
	testCtx.Sheet.Bubbles = count
	testCtx.Sheet.PerRow = 0
	marked := make([]int, count)
	for i := range marked {
		marked[i] = i
	}
	testCtx.Sheet.Marked = marked
	return nil
}

func (testCtx *TestContext) aSheetWithBubbleRows(count, perRow int, positions string) error {
	if count <= 0 || perRow <= 0 {
		return fmt.Errorf("bubble count and row size must be positive, got %d and %d", count, perRow)
	}
	marked, err := parsePositions(positions)
	if err != nil {
		return err
	}
	testCtx.Sheet.Bubbles = count
	testCtx.Sheet.PerRow = perRow
	testCtx.Sheet.Marked = marked
	return nil
}

func parsePositions(s string) ([]int, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]int, 0, len(parts))
	for _, part := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("invalid mark position %q: %w", part, err)
		}
		out = append(out, n)
	}
	return out, nil
}

func (testCtx *TestContext) theAnswerKeyIs(key string) error {
	parts := strings.Split(key, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		out = append(out, strings.TrimSpace(part))
	}
	testCtx.AnswerKey = out
	return nil
}

func (testCtx *TestContext) theEngineReadsNombre(text string, confidence int) error {
	testCtx.Engine.Nombre = StubReply{Text: text, Confidence: float64(confidence)}
	return nil
}

func (testCtx *TestContext) theEngineReadsCURP(text string, confidence int) error {
	testCtx.Engine.CURP = StubReply{Text: text, Confidence: float64(confidence)}
	return nil
}

func (testCtx *TestContext) theEngineFails(message string) error {
	failure := errors.New(message)
	testCtx.Engine.Nombre = StubReply{Err: failure}
	testCtx.Engine.CURP = StubReply{Err: failure}
	return nil
}

func (testCtx *TestContext) theUploadIsGarbage() error {
	testCtx.Upload = []byte("definitely not an image")
	return nil
}
