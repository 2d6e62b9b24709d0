package parse

// Params is an ordered mapping of parameter name to raw string value.
// Names are case-sensitive. The zero value is an empty, usable mapping.
type Params struct {
	names  []string
	values map[string]string
}

// NewParams builds Params from alternating name/value pairs.
func NewParams(pairs ...string) *Params {
	p := &Params{}
	for i := 0; i+1 < len(pairs); i += 2 {
		p.Set(pairs[i], pairs[i+1])
	}
	return p
}

// Set assigns a value. A new name is appended; an existing name keeps its position.
func (p *Params) Set(name, value string) {
	if p.values == nil {
		p.values = make(map[string]string)
	}
	if _, ok := p.values[name]; !ok {
		p.names = append(p.names, name)
	}
	p.values[name] = value
}

// Get returns the value for name and whether it was present.
func (p *Params) Get(name string) (string, bool) {
	if p == nil || p.values == nil {
		return "", false
	}
	v, ok := p.values[name]
	return v, ok
}

// Value returns the value for name, or "" when absent.
func (p *Params) Value(name string) string {
	v, _ := p.Get(name)
	return v
}

// Has reports whether name is present.
func (p *Params) Has(name string) bool {
	_, ok := p.Get(name)
	return ok
}

// Delete removes name.
func (p *Params) Delete(name string) {
	if p == nil || p.values == nil {
		return
	}
	if _, ok := p.values[name]; !ok {
		return
	}
	delete(p.values, name)
	for i, n := range p.names {
		if n == name {
			p.names = append(p.names[:i], p.names[i+1:]...)
			break
		}
	}
}

// Names returns parameter names in insertion order.
func (p *Params) Names() []string {
	if p == nil {
		return nil
	}
	out := make([]string, len(p.names))
	copy(out, p.names)
	return out
}

// Len returns the number of parameters.
func (p *Params) Len() int {
	if p == nil {
		return 0
	}
	return len(p.names)
}

// Clone returns an independent copy.
func (p *Params) Clone() *Params {
	out := &Params{}
	if p == nil {
		return out
	}
	for _, n := range p.names {
		out.Set(n, p.values[n])
	}
	return out
}

// Map returns the parameters as a plain map.
func (p *Params) Map() map[string]string {
	out := make(map[string]string, p.Len())
	if p == nil {
		return out
	}
	for _, n := range p.names {
		out[n] = p.values[n]
	}
	return out
}
