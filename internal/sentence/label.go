package sentence

import (
	"fmt"
	"strings"
)

// Label is the closed vocabulary of entity labels.
// LabelNone is the "clear" choice and never appears on a stored entity.
type Label int

const (
	LabelNone Label = iota
	LabelDeparture
	LabelArrival
)

// Labels lists the assignable labels in menu order.
var Labels = []Label{LabelDeparture, LabelArrival}

var labelNames = map[Label]string{
	LabelDeparture: "DEPARTURE",
	LabelArrival:   "ARRIVAL",
}

// String returns the wire name ("DEPARTURE", "ARRIVAL") or "NONE".
func (l Label) String() string {
	if name, ok := labelNames[l]; ok {
		return name
	}
	return "NONE"
}

// Valid reports whether l can be attached to an entity.
func (l Label) Valid() bool {
	_, ok := labelNames[l]
	return ok
}

// ParseLabel parses a wire name case-insensitively.
// "", "none" and "clear" parse to LabelNone.
func ParseLabel(s string) (Label, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEPARTURE":
		return LabelDeparture, nil
	case "ARRIVAL":
		return LabelArrival, nil
	case "", "NONE", "CLEAR":
		return LabelNone, nil
	}
	return LabelNone, fmt.Errorf("unknown label %q (want one of %s, none)", s, labelList())
}

// MarshalText encodes the wire name. LabelNone encodes as "".
func (l Label) MarshalText() ([]byte, error) {
	if !l.Valid() {
		return []byte{}, nil
	}
	return []byte(l.String()), nil
}

// UnmarshalText decodes a wire name. Unknown names decode to LabelNone
// without error so a record with one bad label still loads; validation
// downstream drops or rejects such entities.
func (l *Label) UnmarshalText(b []byte) error {
	parsed, err := ParseLabel(string(b))
	if err != nil {
		*l = LabelNone
		return nil
	}
	*l = parsed
	return nil
}

func labelList() string {
	names := make([]string, 0, len(Labels))
	for _, l := range Labels {
		names = append(names, l.String())
	}
	return strings.Join(names, ", ")
}
