// SPDX-License-Identifier: MPL-2.0

package pack

// Overrides hold user-supplied values that win over detected or persisted
// ones, field by field. The zero value overrides nothing.
type Overrides struct {
	Name        string `json:"name,omitempty"`
	Interpreter string `json:"interpreter,omitempty"`
	Entrypoint  string `json:"entrypoint,omitempty"`
	Type        Type   `json:"type,omitempty"`
}

// Empty reports whether no field is overridden.
func (o Overrides) Empty() bool {
	return o == Overrides{}
}

// Apply copies the set fields onto p.
func (o Overrides) Apply(p *Package) {
	if o.Name != "" {
		p.Name = o.Name
	}
	if o.Interpreter != "" {
		p.Interpreter = o.Interpreter
	}
	if o.Entrypoint != "" {
		p.Entrypoint = o.Entrypoint
	}
	if o.Type != "" {
		p.Type = o.Type
	}
}
