package search

// product is a running product of probabilities that counts zero factors
// apart from the nonzero ones, so dividing a zero back out is exact.
type product struct {
	value float64
	zeros int
}

func newProduct(v float64) product {
	p := product{value: 1}
	p.mul(v)
	return p
}

func (p *product) mul(f float64) {
	if f == 0 {
		p.zeros++
		return
	}
	p.value *= f
}

func (p *product) div(f float64) {
	if f == 0 {
		p.zeros--
		return
	}
	p.value /= f
}

func (p product) float() float64 {
	if p.zeros > 0 {
		return 0
	}
	return p.value
}

// likelihood is a pair of per-feature factors P(x|target), P(x|other).
type likelihood struct {
	d, notD float64
}

// leaf holds the precomputed factors of one feature for a search run.
type leaf struct {
	index     int
	sensitive bool
	// maxValue is the value with the larger target/other likelihood ratio.
	maxValue int
	max, min likelihood
	// values indexes the factors by feature value.
	values [2]likelihood
}

// ExtensionValues is a read-only snapshot of one extension aggregate: the
// joint probability of the target (D) and other (NotD) decision when every
// tracked free feature takes its ratio-maximizing (Max) or minimizing (Min) value.
type ExtensionValues struct {
	DMax, NotDMax, DMin, NotDMin float64
}

// extension is the mutable form of ExtensionValues.
type extension struct {
	dMax, notDMax, dMin, notDMin product
}

func newExtension(prior likelihood) extension {
	return extension{
		dMax:    newProduct(prior.d),
		notDMax: newProduct(prior.notD),
		dMin:    newProduct(prior.d),
		notDMin: newProduct(prior.notD),
	}
}

// include extends the aggregate over a free feature.
func (e *extension) include(l *leaf) {
	e.dMax.mul(l.max.d)
	e.notDMax.mul(l.max.notD)
	e.dMin.mul(l.min.d)
	e.notDMin.mul(l.min.notD)
}

// exclude marginalizes a feature out of the aggregate.
func (e *extension) exclude(l *leaf) {
	e.dMax.div(l.max.d)
	e.notDMax.div(l.max.notD)
	e.dMin.div(l.min.d)
	e.notDMin.div(l.min.notD)
}

// fix pins a free feature to value. Only the side whose factor differs
// from the chosen one changes.
func (e *extension) fix(l *leaf, value int) {
	if value == l.maxValue {
		e.dMin.mul(l.max.d)
		e.dMin.div(l.min.d)
		e.notDMin.mul(l.max.notD)
		e.notDMin.div(l.min.notD)
		return
	}
	e.dMax.mul(l.min.d)
	e.dMax.div(l.max.d)
	e.notDMax.mul(l.min.notD)
	e.notDMax.div(l.max.notD)
}

// unfix is the exact inverse of fix.
func (e *extension) unfix(l *leaf, value int) {
	if value == l.maxValue {
		e.dMin.mul(l.min.d)
		e.dMin.div(l.max.d)
		e.notDMin.mul(l.min.notD)
		e.notDMin.div(l.max.notD)
		return
	}
	e.dMax.mul(l.max.d)
	e.dMax.div(l.min.d)
	e.notDMax.mul(l.max.notD)
	e.notDMax.div(l.min.notD)
}

func (e *extension) values() ExtensionValues {
	return ExtensionValues{
		DMax:    e.dMax.float(),
		NotDMax: e.notDMax.float(),
		DMin:    e.dMin.float(),
		NotDMin: e.notDMin.float(),
	}
}
