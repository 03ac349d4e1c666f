package compiler

// Layers is a stack of settings queried most specific first: a command,
// its test block, then the scenario config.
type Layers []map[string]any

// Lookup returns the first non-null value of field.
func (l Layers) Lookup(field string) (any, bool) {
	for _, m := range l {
		if m == nil {
			continue
		}
		if v, ok := m[field]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

// Get is Lookup without the presence flag.
func (l Layers) Get(field string) any {
	v, _ := l.Lookup(field)
	return v
}
