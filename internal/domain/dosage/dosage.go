// Package dosage implements dosage parsing and range comparison.  It is the
// one enrichment stage with no external calls: every function here is pure,
// so the same inputs always produce the same verdict.
package dosage

import (
	"regexp"
	"strconv"
	"strings"
)

// Verdict is the categorical outcome of comparing a document's stated dosage
// against a reference range.
type Verdict string

const (
	// VerdictWithinRange means the parsed quantity falls inside the
	// reference range, boundaries included.
	VerdictWithinRange Verdict = "within_range"

	// VerdictBelowRange means the parsed quantity is under the reference
	// minimum.
	VerdictBelowRange Verdict = "below_range"

	// VerdictAboveRange means the parsed quantity is over the reference
	// maximum.
	VerdictAboveRange Verdict = "above_range"

	// VerdictMismatch covers unit-incompatible or unparsable comparisons.
	VerdictMismatch Verdict = "mismatch"

	// VerdictUndetermined covers missing reference data.
	VerdictUndetermined Verdict = "undetermined"
)

// Unit is a normalized dosage unit.  All mass units are converted to
// milligrams during parsing so that "0.5 g" and "500 mg" compare equal.
type Unit string

const (
	UnitMilligram     Unit = "mg"
	UnitMilliliter    Unit = "ml"
	UnitInternational Unit = "IU"
	UnitUnknown       Unit = ""
)

// Quantity is a parsed dosage amount in a normalized unit.
type Quantity struct {
	Value float64 `json:"value"`
	Unit  Unit    `json:"unit"`
}

// Range is a reference dosage interval, typically sourced from a regulatory
// label.  Min and Max are in the same normalized unit.
type Range struct {
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	Unit Unit    `json:"unit"`
}

// unitFactors maps recognised unit spellings to a normalized unit and the
// multiplier that converts the stated value into that unit.
var unitFactors = map[string]struct {
	unit   Unit
	factor float64
}{
	"mg":         {UnitMilligram, 1},
	"milligram":  {UnitMilligram, 1},
	"milligrams": {UnitMilligram, 1},
	"g":          {UnitMilligram, 1000},
	"gram":       {UnitMilligram, 1000},
	"grams":      {UnitMilligram, 1000},
	"mcg":        {UnitMilligram, 0.001},
	"ug":         {UnitMilligram, 0.001},
	"µg":         {UnitMilligram, 0.001},
	"microgram":  {UnitMilligram, 0.001},
	"micrograms": {UnitMilligram, 0.001},
	"ml":         {UnitMilliliter, 1},
	"milliliter": {UnitMilliliter, 1},
	"l":          {UnitMilliliter, 1000},
	"iu":         {UnitInternational, 1},
	"units":      {UnitInternational, 1},
	"unit":       {UnitInternational, 1},
}

// quantityPattern matches "500mg", "500 mg", "0.5 g", "12,5 mg" (decimal
// comma appears in European protocols).
var quantityPattern = regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)?)\s*([a-zµ]+)`)

// rangePattern matches "300-600 mg", "300 – 600 mg", "300 to 600 mg".
var rangePattern = regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)?)\s*(?:-|–|to)\s*(\d+(?:[.,]\d+)?)\s*([a-zµ]+)`)

func parseDecimal(raw string) (float64, error) {
	return strconv.ParseFloat(strings.ReplaceAll(raw, ",", "."), 64)
}

// Parse extracts the first quantity+unit pair from free dosage text and
// normalizes it.  The second return value is false when no parsable
// quantity with a recognised unit is present.
func Parse(text string) (Quantity, bool) {
	matches := quantityPattern.FindAllStringSubmatch(text, -1)
	for _, m := range matches {
		value, err := parseDecimal(m[1])
		if err != nil {
			continue
		}
		uf, ok := unitFactors[strings.ToLower(m[2])]
		if !ok {
			continue
		}
		return Quantity{Value: value * uf.factor, Unit: uf.unit}, true
	}
	return Quantity{}, false
}

// ParseRange extracts the first "min-max unit" interval from reference text,
// as found in regulatory dosing sections.  A bare single quantity degrades
// to a point range (Min == Max).
func ParseRange(text string) (Range, bool) {
	if m := rangePattern.FindStringSubmatch(text); m != nil {
		lo, errLo := parseDecimal(m[1])
		hi, errHi := parseDecimal(m[2])
		if uf, ok := unitFactors[strings.ToLower(m[3])]; ok && errLo == nil && errHi == nil && lo <= hi {
			return Range{Min: lo * uf.factor, Max: hi * uf.factor, Unit: uf.unit}, true
		}
	}
	if q, ok := Parse(text); ok {
		return Range{Min: q.Value, Max: q.Value, Unit: q.Unit}, true
	}
	return Range{}, false
}

// Compare classifies the document's stated dosage against a reference range.
//
//   - ref == nil → VerdictUndetermined (no reference data available).
//   - unparsable source text → VerdictMismatch.
//   - unit differs from the reference unit → VerdictMismatch.
//   - boundary values classify as VerdictWithinRange.
func Compare(sourceText string, ref *Range) Verdict {
	if ref == nil {
		return VerdictUndetermined
	}
	q, ok := Parse(sourceText)
	if !ok {
		return VerdictMismatch
	}
	if q.Unit != ref.Unit {
		return VerdictMismatch
	}
	switch {
	case q.Value < ref.Min:
		return VerdictBelowRange
	case q.Value > ref.Max:
		return VerdictAboveRange
	default:
		return VerdictWithinRange
	}
}
