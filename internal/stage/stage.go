package stage

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ID identifies a pipeline stage. Its integer value is the phase index.
type ID int

const (
	Orchestration ID = iota
	Content
	Design
	Quality
	Delivery
)

// TotalPhases is the number of stages in a run.
const TotalPhases = int(Delivery) + 1

var names = [...]string{
	Orchestration: "orchestration",
	Content:       "content",
	Design:        "design",
	Quality:       "quality",
	Delivery:      "delivery",
}

// All returns every stage in execution order.
func All() []ID {
	return []ID{Orchestration, Content, Design, Quality, Delivery}
}

func (id ID) String() string {
	if !id.Valid() {
		return fmt.Sprintf("stage(%d)", int(id))
	}
	return names[id]
}

// Title returns the display label, e.g. "Content".
func (id ID) Title() string {
	return cases.Title(language.English).String(id.String())
}

// Valid reports whether id is a known stage.
func (id ID) Valid() bool {
	return id >= Orchestration && id <= Delivery
}

// Index returns the phase index.
func (id ID) Index() int {
	return int(id)
}

// PayloadKey is the top-level envelope key carrying the stage's context.
func (id ID) PayloadKey() string {
	return id.String() + "_context"
}

// Next returns the stage that follows id.
func (id ID) Next() (ID, bool) {
	if !id.Valid() || id == Delivery {
		return id, false
	}
	return id + 1, true
}

func (id ID) MarshalText() ([]byte, error) {
	if !id.Valid() {
		return nil, fmt.Errorf("invalid stage %d", int(id))
	}
	return []byte(id.String()), nil
}

func (id *ID) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// Parse resolves a stage name. Matching ignores case and surrounding space;
// the specialist-style names ("content-specialist") are accepted too.
func Parse(name string) (ID, error) {
	normalized := strings.ToLower(strings.TrimSpace(name))
	normalized = strings.TrimSuffix(normalized, "-specialist")
	normalized = strings.TrimSuffix(normalized, "_context")
	for i, candidate := range names {
		if candidate == normalized {
			return ID(i), nil
		}
	}
	return 0, fmt.Errorf("unknown stage %q", name)
}
