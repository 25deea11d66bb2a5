package logic

import "sort"

// Program is an immutable collection of clauses indexed by head signature.
// Clause order within a signature follows declaration order, which is the
// tie-break for clause selection during resolution. A Program is built once
// by the parser and never mutated afterwards; concurrent reads are safe.
type Program struct {
	clauses map[Signature][]Clause
	order   []Clause
}

// NewProgram builds a program from clauses in declaration order.
func NewProgram(clauses []Clause) *Program {
	p := &Program{clauses: make(map[Signature][]Clause)}
	for _, c := range clauses {
		sig := c.Head.Signature()
		p.clauses[sig] = append(p.clauses[sig], c)
		p.order = append(p.order, c)
	}
	return p
}

// ClausesFor returns the clauses whose head matches the signature, in
// declaration order. The returned slice must not be modified.
func (p *Program) ClausesFor(sig Signature) []Clause {
	return p.clauses[sig]
}

// Defines reports whether any clause defines the signature.
func (p *Program) Defines(sig Signature) bool {
	return len(p.clauses[sig]) > 0
}

// Clauses returns all clauses in declaration order. The returned slice must
// not be modified.
func (p *Program) Clauses() []Clause {
	return p.order
}

// Signatures returns every defined signature, sorted for deterministic
// iteration.
func (p *Program) Signatures() []Signature {
	sigs := make([]Signature, 0, len(p.clauses))
	for s := range p.clauses {
		sigs = append(sigs, s)
	}
	sort.Slice(sigs, func(i, j int) bool {
		if sigs[i].Name != sigs[j].Name {
			return sigs[i].Name < sigs[j].Name
		}
		return sigs[i].Arity < sigs[j].Arity
	})
	return sigs
}

// Len returns the number of clauses in the program.
func (p *Program) Len() int {
	return len(p.order)
}
