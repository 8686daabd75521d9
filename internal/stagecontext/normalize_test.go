package stagecontext

import (
	"reflect"
	"testing"
)

func TestNormalizeSeason(t *testing.T) {
	tests := []struct {
		in   string
		want Season
	}{
		{"Spring Sale", SeasonSpring},
		{"SUMMER beach getaway", SeasonSummer},
		{"Fall harvest", SeasonAutumn},
		{"Holiday gift guide", SeasonWinter},
		{"Mother's Day brunch", SeasonSpring},
		{"Back to School deals", SeasonAutumn},
		{"Fallback", SeasonAllYear},
		{"", SeasonAllYear},
		{"Evergreen brand awareness", SeasonAllYear},
	}
	for _, tc := range tests {
		if got := NormalizeSeason(tc.in); got != tc.want {
			t.Errorf("NormalizeSeason(%q) = %s, want %s", tc.in, got, tc.want)
		}
	}
}

func TestParsePrice(t *testing.T) {
	tests := []struct {
		in   any
		want float64
	}{
		{19.99, 19.99},
		{42, 42},
		{"$19.99", 19.99},
		{"USD 1,299.00", 1299},
		{"1.299,50 €", 1299.5},
		{"12,50", 12.5},
		{"1,000", 1000},
		{"call for price", 0},
		{nil, 0},
		{[]string{"9"}, 0},
	}
	for _, tc := range tests {
		if got := ParsePrice(tc.in); got != tc.want {
			t.Errorf("ParsePrice(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestCoerceHelpers(t *testing.T) {
	if got := CoerceString(nil, "fallback"); got != "fallback" {
		t.Errorf("nil string = %q", got)
	}
	if got := CoerceString("  ", "fallback"); got != "fallback" {
		t.Errorf("blank string = %q", got)
	}
	if got := CoerceString(3.5, ""); got != "3.5" {
		t.Errorf("number string = %q", got)
	}

	tests := []struct {
		in       any
		fallback []string
		want     []string
	}{
		{"a, b ,,c", nil, []string{"a", "b", "c"}},
		{[]any{"x", 2.0, nil, ""}, nil, []string{"x", "2"}},
		{nil, []string{"hero"}, []string{"hero"}},
		{map[string]any{}, nil, []string{}},
	}
	for _, tc := range tests {
		if got := CoerceStrings(tc.in, tc.fallback); !reflect.DeepEqual(got, tc.want) {
			t.Errorf("CoerceStrings(%v) = %#v, want %#v", tc.in, got, tc.want)
		}
	}

	if got := CoerceInt("2048", 1); got != 2048 {
		t.Errorf("CoerceInt string = %d", got)
	}
	if got := CoerceInt("many", 7); got != 7 {
		t.Errorf("CoerceInt fallback = %d", got)
	}
}
