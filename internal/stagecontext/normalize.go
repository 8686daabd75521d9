package stagecontext

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
)

// Season is the closed set of campaign seasons.
type Season string

const (
	SeasonSpring Season = "spring"
	SeasonSummer Season = "summer"
	SeasonAutumn Season = "autumn"
	SeasonWinter Season = "winter"
	// SeasonAllYear is the fallback when no keyword matches.
	SeasonAllYear Season = "all_year"
)

// seasonKeywords is checked in order; the first season with a matching
// keyword wins.
var seasonKeywords = []struct {
	season   Season
	keywords []string
}{
	{SeasonWinter, []string{"winter", "christmas", "xmas", "holiday", "holidays", "snow", "december", "january", "february", "new year", "hanukkah"}},
	{SeasonSpring, []string{"spring", "easter", "bloom", "blossom", "march", "april", "may", "mother's day"}},
	{SeasonSummer, []string{"summer", "beach", "vacation", "june", "july", "august", "sunshine", "pool"}},
	{SeasonAutumn, []string{"autumn", "fall", "harvest", "halloween", "thanksgiving", "september", "october", "november", "back to school"}},
}

// NormalizeSeason maps a free-text descriptor onto a Season. Matching is
// case-folded and whole-word.
func NormalizeSeason(text string) Season {
	folded := cases.Fold().String(text)
	words := strings.FieldsFunc(folded, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
	if len(words) == 0 {
		return SeasonAllYear
	}
	joined := " " + strings.Join(words, " ") + " "
	for _, entry := range seasonKeywords {
		for _, keyword := range entry.keywords {
			if strings.Contains(joined, " "+keyword+" ") {
				return entry.season
			}
		}
	}
	return SeasonAllYear
}

// ParsePrice converts a price-like value to float64. Currency symbols, codes,
// and thousands separators are ignored; anything unparsable yields 0.
func ParsePrice(value any) float64 {
	switch v := value.(type) {
	case nil:
		return 0
	case float64:
		return finiteOrZero(v)
	case float32:
		return finiteOrZero(float64(v))
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case string:
		return parsePriceString(v)
	case fmt.Stringer:
		return parsePriceString(v.String())
	default:
		return 0
	}
}

func parsePriceString(raw string) float64 {
	var b strings.Builder
	for _, r := range raw {
		if unicode.IsDigit(r) || r == '.' || r == ',' || r == '-' {
			b.WriteRune(r)
		}
	}
	cleaned := strings.Trim(b.String(), ".,")
	if cleaned == "" {
		return 0
	}
	lastDot := strings.LastIndex(cleaned, ".")
	lastComma := strings.LastIndex(cleaned, ",")
	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastComma > lastDot {
			// 1.299,00
			cleaned = strings.ReplaceAll(cleaned, ".", "")
			cleaned = strings.Replace(cleaned, ",", ".", 1)
		} else {
			cleaned = strings.ReplaceAll(cleaned, ",", "")
		}
	case lastComma >= 0:
		if strings.Count(cleaned, ",") == 1 && len(cleaned)-lastComma-1 == 2 {
			cleaned = strings.Replace(cleaned, ",", ".", 1)
		} else {
			cleaned = strings.ReplaceAll(cleaned, ",", "")
		}
	}
	parsed, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0
	}
	return finiteOrZero(parsed)
}

func finiteOrZero(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// CoerceString returns value as a trimmed string, or fallback when absent or empty.
func CoerceString(value any, fallback string) string {
	var s string
	switch v := value.(type) {
	case nil:
		return fallback
	case string:
		s = v
	case fmt.Stringer:
		s = v.String()
	case float64:
		s = strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		s = strconv.Itoa(v)
	case bool:
		s = strconv.FormatBool(v)
	default:
		return fallback
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return fallback
	}
	return s
}

// CoerceStrings returns value as a non-nil string slice. Strings are split on
// commas; arrays keep their non-empty string-like elements. fallback is
// returned (copied) when nothing usable remains.
func CoerceStrings(value any, fallback []string) []string {
	var out []string
	switch v := value.(type) {
	case string:
		for _, part := range strings.Split(v, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				out = append(out, trimmed)
			}
		}
	case []string:
		for _, item := range v {
			if trimmed := strings.TrimSpace(item); trimmed != "" {
				out = append(out, trimmed)
			}
		}
	case []any:
		for _, item := range v {
			if s := CoerceString(item, ""); s != "" {
				out = append(out, s)
			}
		}
	}
	if len(out) == 0 {
		return append([]string{}, fallback...)
	}
	return out
}

// CoerceInt returns value as an int64, or fallback when absent or unparsable.
func CoerceInt(value any, fallback int64) int64 {
	switch v := value.(type) {
	case float64:
		return int64(v)
	case int:
		return int64(v)
	case int64:
		return v
	case string:
		if parsed, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

// lookup returns the first present value among keys.
func lookup(raw map[string]any, keys ...string) any {
	for _, key := range keys {
		if v, ok := raw[key]; ok && v != nil {
			return v
		}
	}
	return nil
}
