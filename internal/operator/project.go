package operator

// Project narrows each child row down to the requested output columns.
// Each spec may be a bare column name, a dotted qualified name
// ("table.col"), or either form suffixed with " AS alias". Lookup tries,
// in order: the expression's base leaf name (the part after the last
// dot), then the expression as written, then the alias as a bare key —
// so a qualified request ("t.col") is served from a row that only
// carries the unqualified key "col". A bare request on a row that only
// carries qualified keys is not resolved and projects nil.
type Project struct {
	child Operator
	specs []string
}

// NewProject wraps child, projecting down to specs.
func NewProject(child Operator, specs []string) *Project {
	return &Project{child: child, specs: specs}
}

func (p *Project) Open() error { return p.child.Open() }

func (p *Project) Next() (Row, bool, error) {
	row, ok, err := p.child.Next()
	if err != nil || !ok {
		return nil, ok, err
	}
	if len(p.specs) == 0 || (len(p.specs) == 1 && p.specs[0] == "*") {
		return row, true, nil
	}
	out := make(Row, len(p.specs))
	for _, spec := range p.specs {
		expr, alias := splitAlias(spec)
		name := alias
		if name == "" {
			name = expr
		}
		if v, found := row[baseLeaf(expr)]; found {
			out[name] = v
			continue
		}
		if v, found := row[expr]; found {
			out[name] = v
			continue
		}
		out[name] = row[alias]
	}
	return out, true, nil
}

func (p *Project) Close() error { return p.child.Close() }
