package logic

// Unify computes a most-general unifier of two literals under an existing
// substitution, returning the extended substitution. Unification never
// mutates its input; on failure the input substitution remains valid for the
// caller's branch.
//
// Format strings unify only after resolving to constants: a non-ground format
// string does not unify with anything except an unbound variable (which is
// bound to it, deferring evaluation until the embedded terms become ground).
func Unify(a, b Literal, s Substitution) (Substitution, bool) {
	if a.Predicate != b.Predicate || len(a.Args) != len(b.Args) {
		return s, false
	}
	out := s
	for i := range a.Args {
		var ok bool
		out, ok = UnifyTerms(a.Args[i], b.Args[i], out)
		if !ok {
			return s, false
		}
	}
	return out, true
}

// UnifyTerms unifies two terms under s.
func UnifyTerms(a, b Term, s Substitution) (Substitution, bool) {
	a = s.Apply(a)
	b = s.Apply(b)

	// Ground format strings collapse to constants before comparison.
	if a.Kind == KindFormatString && a.IsGround() {
		v, _ := a.Resolve()
		a = Constant(v)
	}
	if b.Kind == KindFormatString && b.IsGround() {
		v, _ := b.Resolve()
		b = Constant(v)
	}

	switch {
	case a.Kind == KindConstant && b.Kind == KindConstant:
		return s, a.Value == b.Value
	case a.Kind == KindVariable:
		return bindVar(a.Name, b, s)
	case b.Kind == KindVariable:
		return bindVar(b.Name, a, s)
	default:
		// At least one side is a non-ground format string; its shape is not
		// decidable until the embedded variables are bound, so reject.
		return s, false
	}
}

// bindVar binds name to t, with an occurs check so a variable is never bound
// to a term containing itself (possible via format-string nesting).
func bindVar(name string, t Term, s Substitution) (Substitution, bool) {
	if t.Kind == KindVariable && t.Name == name {
		return s, true
	}
	if occursIn(name, t) {
		return s, false
	}
	return s.Extend(name, t), true
}

func occursIn(name string, t Term) bool {
	switch t.Kind {
	case KindVariable:
		return t.Name == name
	case KindFormatString:
		for _, f := range t.Fragments {
			if f.Term != nil && occursIn(name, *f.Term) {
				return true
			}
		}
	}
	return false
}
