// Command generate-test-data renders synthetic exam sheet photographs.
// Real scans stay out of the repository; anything that needs a sheet
// draws one.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"image"
	"math/rand"
	"os"
	"path/filepath"
	"strings"

	"github.com/MeKo-Tech/bubblegrade/internal/logging"
	"github.com/MeKo-Tech/bubblegrade/internal/testutil"
)

// students pairs plausible nombre and CURP values for the field rows.
var students = []struct {
	Nombre string
	CURP   string
}{
	{"ANA TORRES", "PEGJ850315HJCRRN09"},
	{"LUIS MEZA", "MEML900101HDFZSS04"},
	{"MARTA OCHOA", "TOMA920704MDFRRS08"},
	{"CARLOS RUIZ", "RUGC881123HNLZRA11"},
	{"ELENA SALAS", "SAHE950612MDFLRN02"},
	{"JORGE LOPEZ", "LOPJ010228HJCPRS07"},
}

// sheetFixture records what a generated sheet contains, so grading
// output can be checked against it.
type sheetFixture struct {
	File    string   `json:"file"`
	Nombre  string   `json:"nombre"`
	CURP    string   `json:"curp"`
	Bubbles int      `json:"bubbles"`
	PerRow  int      `json:"per_row"`
	Marked  []int    `json:"marked"`
	Answers []string `json:"answers"`
}

func main() {
	var (
		outDir   = flag.String("out", "testdata/sheets", "Output directory for generated sheets")
		count    = flag.Int("count", 6, "Number of sheets to generate")
		bubbles  = flag.Int("bubbles", 20, "Bubbles per sheet")
		perRow   = flag.Int("per-row", 5, "Bubbles per row")
		seed     = flag.Int64("seed", 42, "Random seed for mark placement")
		fixtures = flag.Bool("fixtures", true, "Write a JSON fixture next to each sheet")
		verbose  = flag.Bool("v", false, "Verbose output")
		help     = flag.Bool("h", false, "Show help")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Generate synthetic exam sheet photographs for testing.\n\n")
		fmt.Fprintf(os.Stderr, "OPTIONS:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEXAMPLES:\n")
		fmt.Fprintf(os.Stderr, "  %s                          # Six sheets under testdata/sheets\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -count 20 -out /tmp/sheets\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -bubbles 40 -per-row 4 -seed 7\n", os.Args[0])
	}

	flag.Parse()

	if *help {
		flag.Usage()
		return
	}

	logCfg := logging.DefaultConfig()
	if *verbose {
		logCfg.Level = "debug"
	}
	if err := logging.Setup(logCfg); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to set up logging: %v\n", err)
		os.Exit(1)
	}
	logger := logging.WithComponent("generate-test-data")

	logger.Info().
		Int("count", *count).
		Int("bubbles", *bubbles).
		Int("per_row", *perRow).
		Str("out", *outDir).
		Msg("Generating sheets")

	if err := generateSheets(*outDir, *count, *bubbles, *perRow, *seed, *fixtures); err != nil {
		logger.Error().Err(err).Msg("Generation failed")
		os.Exit(1)
	}

	logger.Info().Msg("Done")
}

// generateSheets renders count sheets with one mark per bubble row,
// leaving the occasional row blank the way a student skips a question.
func generateSheets(dir string, count, bubbles, perRow int, seed int64, writeFixtures bool) error {
	if perRow < 1 {
		perRow = 1
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	rng := rand.New(rand.NewSource(seed)) //nolint:gosec // reproducible placement, not cryptography

	for i := range count {
		student := students[i%len(students)]
		marked, answers := pickMarks(rng, bubbles, perRow)

		config := testutil.DefaultSheetConfig()
		config.Nombre = student.Nombre
		config.CURP = student.CURP
		config.Bubbles = bubbles
		config.PerRow = perRow
		config.Marked = marked

		name := fmt.Sprintf("sheet_%02d.png", i+1)
		path := filepath.Join(dir, name)
		if err := savePNG(testutil.GenerateSheet(config), path); err != nil {
			return fmt.Errorf("failed to save %s: %w", name, err)
		}

		if writeFixtures {
			fixture := sheetFixture{
				File:    name,
				Nombre:  student.Nombre,
				CURP:    student.CURP,
				Bubbles: bubbles,
				PerRow:  perRow,
				Marked:  marked,
				Answers: answers,
			}
			if err := saveFixture(fixture, strings.TrimSuffix(path, ".png")+".json"); err != nil {
				return fmt.Errorf("failed to save fixture for %s: %w", name, err)
			}
		}
	}
	return nil
}

// pickMarks chooses one filled bubble per row. A blank now and then
// stands in for an unanswered question; the answers slice carries the
// chosen option letter per row, empty for a skipped row.
func pickMarks(rng *rand.Rand, bubbles, perRow int) (marked []int, answers []string) {
	for start := 0; start < bubbles; start += perRow {
		width := perRow
		if start+width > bubbles {
			width = bubbles - start
		}
		if rng.Intn(6) == 0 {
			answers = append(answers, "")
			continue
		}
		pick := rng.Intn(width)
		marked = append(marked, start+pick)
		answers = append(answers, string(rune('A'+pick)))
	}
	return marked, answers
}

func savePNG(img image.Image, path string) error {
	data, err := testutil.EncodePNG(img)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func saveFixture(fixture sheetFixture, path string) error {
	data, err := json.MarshalIndent(fixture, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
