package fields

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/MeKo-Tech/bubblegrade/internal/ocr"
)

// genLetters generates a string of n uppercase letters.
func genLetters(n int) gopter.Gen {
	return gen.SliceOfN(n, gen.RuneRange('A', 'Z')).Map(func(rs []rune) string {
		return string(rs)
	})
}

// genDigits generates a string of n digits.
func genDigits(n int) gopter.Gen {
	return gen.SliceOfN(n, gen.RuneRange('0', '9')).Map(func(rs []rune) string {
		return string(rs)
	})
}

// genCURP generates a structurally valid CURP.
func genCURP() gopter.Gen {
	return gopter.CombineGens(
		genLetters(4),
		genDigits(6),
		gen.OneConstOf("H", "M"),
		genLetters(5),
		genDigits(2),
	).Map(func(vals []interface{}) string {
		return vals[0].(string) + vals[1].(string) + vals[2].(string) + vals[3].(string) + vals[4].(string)
	})
}

// TestValidCURP_AcceptsWellFormed verifies every structurally valid CURP passes.
func TestValidCURP_AcceptsWellFormed(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("well-formed CURPs validate", prop.ForAll(
		func(curp string) bool {
			return ValidCURP(curp)
		},
		genCURP(),
	))

	properties.TestingRun(t)
}

// TestValidCURP_RejectsCorruptedSexMarker verifies position 10 only admits H or M.
func TestValidCURP_RejectsCorruptedSexMarker(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("corrupting the sex marker invalidates", prop.ForAll(
		func(curp string, marker rune) bool {
			if marker == 'H' || marker == 'M' {
				return true
			}
			corrupted := curp[:10] + string(marker) + curp[11:]
			return !ValidCURP(corrupted)
		},
		genCURP(),
		gen.RuneRange('A', 'Z'),
	))

	properties.TestingRun(t)
}

// TestValidCURP_RejectsWrongLength verifies truncation or extension invalidates.
func TestValidCURP_RejectsWrongLength(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("wrong lengths never validate", prop.ForAll(
		func(curp string) bool {
			return !ValidCURP(curp[:17]) && !ValidCURP(curp+"0")
		},
		genCURP(),
	))

	properties.TestingRun(t)
}

// TestMeanConfidence_Bounded verifies the mean stays in [0, 1] for any
// mix of scored and unscored words.
func TestMeanConfidence_Bounded(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("mean confidence stays in [0, 1]", prop.ForAll(
		func(confs []float64) bool {
			words := make([]ocr.Word, len(confs))
			for i, c := range confs {
				words[i] = ocr.Word{Text: "w", Confidence: c}
			}
			mean := meanConfidence(words)
			return mean >= 0 && mean <= 1
		},
		gen.SliceOf(gen.Float64Range(-100, 100)),
	))

	properties.TestingRun(t)
}

// TestMeanConfidence_IgnoresUnscored verifies negative confidences do
// not drag the mean down.
func TestMeanConfidence_IgnoresUnscored(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("unscored words do not change the mean", prop.ForAll(
		func(scored []float64, unscoredCount int) bool {
			words := make([]ocr.Word, 0, len(scored)+unscoredCount)
			for _, c := range scored {
				words = append(words, ocr.Word{Text: "w", Confidence: c})
			}
			withUnscored := append([]ocr.Word(nil), words...)
			for range unscoredCount {
				withUnscored = append(withUnscored, ocr.Word{Text: "?", Confidence: -1})
			}
			return meanConfidence(words) == meanConfidence(withUnscored)
		},
		gen.SliceOf(gen.Float64Range(0, 100)),
		gen.IntRange(0, 5),
	))

	properties.TestingRun(t)
}
