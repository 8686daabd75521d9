package stage

import (
	"fmt"
	"strings"
)

// Pair is one legal stage-to-stage handoff.
type Pair int

const (
	PairContentDesign Pair = iota + 1
	PairDesignQuality
	PairQualityDelivery
)

// Pairs returns every legal handoff in execution order.
func Pairs() []Pair {
	return []Pair{PairContentDesign, PairDesignQuality, PairQualityDelivery}
}

// Source is the stage handing off.
func (p Pair) Source() ID {
	switch p {
	case PairContentDesign:
		return Content
	case PairDesignQuality:
		return Design
	case PairQualityDelivery:
		return Quality
	}
	panic(fmt.Sprintf("stage: unknown pair %d", int(p)))
}

// Target is the stage receiving the handoff.
func (p Pair) Target() ID {
	return p.Source() + 1
}

// Valid reports whether p is a known pair.
func (p Pair) Valid() bool {
	return p >= PairContentDesign && p <= PairQualityDelivery
}

// Predecessor returns the pair that must precede p in a handoff chain.
func (p Pair) Predecessor() (Pair, bool) {
	if p == PairContentDesign {
		return 0, false
	}
	return p - 1, true
}

// Label renders the chain label, e.g. "content->design".
func (p Pair) Label() string {
	if !p.Valid() {
		return fmt.Sprintf("pair(%d)", int(p))
	}
	return Label(p.Source(), p.Target())
}

func (p Pair) String() string {
	return p.Label()
}

// Label renders a handoff chain label for any two stages.
func Label(from, to ID) string {
	return from.String() + "->" + to.String()
}

// PairFor resolves the pair crossing from -> to.
func PairFor(from, to ID) (Pair, error) {
	for _, p := range Pairs() {
		if p.Source() == from && p.Target() == to {
			return p, nil
		}
	}
	return 0, fmt.Errorf("no handoff contract for %s", Label(from, to))
}

// ParsePair resolves a "source->target" label. The arrow may also be "→".
func ParsePair(label string) (Pair, error) {
	normalized := strings.ReplaceAll(label, "→", "->")
	from, to, ok := strings.Cut(normalized, "->")
	if !ok {
		return 0, fmt.Errorf("malformed stage pair %q", label)
	}
	src, err := Parse(from)
	if err != nil {
		return 0, err
	}
	dst, err := Parse(to)
	if err != nil {
		return 0, err
	}
	return PairFor(src, dst)
}
