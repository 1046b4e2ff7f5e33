package graph

// Loop emits a do/while loop over an iterator variable.
//
//	l := g.NewLoop(start, end, step, 16)
//	it := l.Open()
//	... body using it ...
//	l.Close()
//
// The body is a block of weight multiplier weight. The iterator is a copy
// of start that the loop updates in place; Open and Close rebind it so the
// body and the increment see the value of the current iteration.
type Loop struct {
	g      *Graph
	weight float64
	iter   Value
	end    Value
	step   Value
}

// NewLoop creates a loop running from start while the iterator is below end
func (g *Graph) NewLoop(start, end, step Value, weight float64) *Loop {
	return &Loop{
		g:      g,
		weight: weight,
		iter:   g.Sep(start),
		end:    end,
		step:   step,
	}
}

// Iter returns the iterator variable
func (l *Loop) Iter() Value { return l.iter }

// Open starts the loop body and returns the iterator as seen by the body
func (l *Loop) Open() Value {
	l.g.OpenScope(l.weight)
	l.g.StationaryCode("do {{")
	return l.g.Rebind(l.iter)
}

// Close emits the increment and the loop condition and ends the body
func (l *Loop) Close() {
	g := l.g
	it := g.Rebind(l.iter)
	g.StationaryCode("{} = {};", it, g.Add(it, l.step))
	g.StationaryCode("}} while ({} < {});", it, l.end)
	g.CloseScope()
}

// Do runs body between Open and Close
func (l *Loop) Do(body func(it Value) error) error {
	it := l.Open()
	defer l.Close()
	if err := body(it); err != nil {
		return err
	}
	return l.g.Err()
}
