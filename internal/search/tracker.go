package search

// Role is the part a feature plays in the current partial pattern.
type Role int

const (
	// RoleSkip leaves the feature out of the pattern.
	RoleSkip Role = iota
	// RoleBase fixes the feature as context.
	RoleBase
	// RoleSensitive fixes the feature as part of the protected condition.
	RoleSensitive
)

// String returns a string representation of the role.
func (r Role) String() string {
	switch r {
	case RoleSkip:
		return "skip"
	case RoleBase:
		return "base"
	case RoleSensitive:
		return "sensitive"
	default:
		return "unknown"
	}
}

// action is what a tracked subset does with a member feature on assignment.
type action int

const (
	keep action = iota
	fix
	drop
)

// subset is one extension aggregate together with the rules deciding how
// each assignment role changes it. Skipped members are always dropped.
type subset struct {
	ext           extension
	sensitiveOnly bool
	onSensitive   action
	onBase        action
}

func (s *subset) member(l *leaf) bool {
	return !s.sensitiveOnly || l.sensitive
}

func (s *subset) actionFor(r Role) action {
	switch r {
	case RoleSensitive:
		return s.onSensitive
	case RoleBase:
		return s.onBase
	default:
		return drop
	}
}

func (s *subset) apply(l *leaf, r Role, value int) {
	if !s.member(l) {
		return
	}
	switch s.actionFor(r) {
	case fix:
		s.ext.fix(l, value)
	case drop:
		s.ext.exclude(l)
	}
}

func (s *subset) revert(l *leaf, r Role, value int) {
	if !s.member(l) {
		return
	}
	switch s.actionFor(r) {
	case fix:
		s.ext.unfix(l, value)
	case drop:
		s.ext.include(l)
	}
}

// Tracker maintains the four extension aggregates over the features that
// are still free in the current partial pattern.
type Tracker struct {
	// all extends every free feature with both base and sensitive assignments fixed.
	all subset
	// base extends everything outside the base assignment, sensitive assignments included.
	base subset
	// baseOnly is base with sensitive assignments marginalized out.
	baseOnly subset
	// sens covers sensitive features only: fixed in sens, free, or dropped.
	sens subset
}

func newTracker(prior likelihood, leaves []leaf) *Tracker {
	t := &Tracker{
		all:      subset{onSensitive: fix, onBase: fix},
		base:     subset{onSensitive: keep, onBase: fix},
		baseOnly: subset{onSensitive: drop, onBase: fix},
		sens:     subset{sensitiveOnly: true, onSensitive: fix, onBase: drop},
	}
	for _, s := range t.subsets() {
		s.ext = newExtension(prior)
		for i := range leaves {
			if s.member(&leaves[i]) {
				s.ext.include(&leaves[i])
			}
		}
	}
	return t
}

func (t *Tracker) subsets() [4]*subset {
	return [4]*subset{&t.all, &t.base, &t.baseOnly, &t.sens}
}

// Apply records that feature l takes role r with value (ignored for RoleSkip)
// and returns the function that undoes it.
func (t *Tracker) Apply(l *leaf, r Role, value int) (undo func()) {
	for _, s := range t.subsets() {
		s.apply(l, r, value)
	}
	return func() {
		for _, s := range t.subsets() {
			s.revert(l, r, value)
		}
	}
}

// Aggregates is a snapshot of all four extensions plus the decision prior
// of the target (PriorD) and other (PriorNotD) decision.
type Aggregates struct {
	All, Base, BaseOnly, Sens ExtensionValues
	PriorD, PriorNotD         float64
}

func (t *Tracker) snapshot(prior likelihood) Aggregates {
	return Aggregates{
		All:       t.all.ext.values(),
		Base:      t.base.ext.values(),
		BaseOnly:  t.baseOnly.ext.values(),
		Sens:      t.sens.ext.values(),
		PriorD:    prior.d,
		PriorNotD: prior.notD,
	}
}
