// Package naming decomposes PV names according to a facility naming
// convention so they can be grouped and sorted for display.
package naming

import (
	"fmt"
	"strings"
)

// Convention identifiers accepted by New.
const (
	None     = "None"
	SARAF    = "SARAF"
	ESS      = "ESS"
	RDS81346 = "RDS-81346"
)

// Identifiers lists the conventions New knows about.
var Identifiers = []string{None, SARAF, ESS, RDS81346}

// Error reports a PV name that does not fit a convention.
type Error struct {
	PV     string
	Naming string
	Msg    string
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.PV != "" {
		b.WriteString(e.PV + " ")
	}
	if e.Naming != "" {
		b.WriteString("incompatible with " + e.Naming + " naming.")
	}
	b.WriteString(e.Msg)
	return b.String()
}

// Naming splits PV names into path segments.
type Naming interface {
	// Name is the display name of the convention.
	Name() string
	// Split returns the decomposition used to draw a tree.
	Split(pv string) ([]string, error)
	// SortKey never fails.
	SortKey(pv string) []string
}

// New returns the convention matching id, case insensitively.
func New(id string) (Naming, error) {
	switch strings.ToUpper(id) {
	case "", "NONE":
		return noNaming{}, nil
	case SARAF:
		return colonNaming{name: SARAF}, nil
	case ESS:
		return colonNaming{name: ESS}, nil
	case RDS81346:
		return rdsNaming{}, nil
	}
	return nil, fmt.Errorf("unknown naming %q, expected one of %s", id, strings.Join(Identifiers, ", "))
}

// noNaming keeps every PV name whole.
type noNaming struct{}

func (noNaming) Name() string                      { return "Undefined" }
func (noNaming) Split(pv string) ([]string, error) { return []string{pv}, nil }
func (noNaming) SortKey(pv string) []string        { return []string{pv} }

// colonNaming expects Sec-Sub:Dis-Dev-Idx:Signal.
type colonNaming struct{ name string }

func (n colonNaming) Name() string { return n.name }

func (n colonNaming) Split(pv string) ([]string, error) {
	parts := strings.Split(pv, ":")
	if len(parts) != 3 {
		return nil, &Error{PV: pv, Naming: n.name}
	}
	return parts, nil
}

func (colonNaming) SortKey(pv string) []string { return strings.Split(pv, ":") }

// rdsNaming expects A1-B1-C1:EpicsPart. A lone "SL" section is joined to
// the one that follows it.
type rdsNaming struct{}

func (rdsNaming) Name() string { return RDS81346 }

func (n rdsNaming) Split(pv string) ([]string, error) {
	device, epics, ok := strings.Cut(pv, ":")
	if !ok || strings.Contains(epics, ":") {
		return nil, &Error{PV: pv, Naming: n.Name()}
	}
	var sections []string
	prepend := ""
	for _, sec := range strings.Split(device, "-") {
		switch {
		case sec == "":
		case sec == "SL":
			prepend = "SL-"
		case prepend != "":
			sections = append(sections, prepend+sec)
			prepend = ""
		default:
			sections = append(sections, sec)
		}
	}
	return append(sections, epics), nil
}

func (rdsNaming) SortKey(pv string) []string { return strings.Split(pv, ":") }
