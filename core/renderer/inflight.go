// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package renderer

// inFlight holds the one future representing the last submission.
// The future is moved out for every submission and a replacement is
// put back, so at most one submission is ever being chained.
type inFlight struct {
	future       Future
	replacements uint64
}

func (s *inFlight) take() (Future, error) {
	if s.future == nil {
		return nil, ErrNoFuture
	}
	f := s.future
	s.future = nil
	return f, nil
}

func (s *inFlight) put(f Future) {
	s.future = f
	s.replacements++
}

func (s *inFlight) peek() Future {
	return s.future
}

type retiree struct {
	res   Destroyer
	after Future
}

// graveyard keeps resources replaced by a rebuild alive until the
// work submitted before the rebuild has finished.
type graveyard []retiree

func (g *graveyard) bury(res Destroyer, after Future) {
	*g = append(*g, retiree{res: res, after: after})
}

// reap destroys everything whose work has finished.
func (g *graveyard) reap() {
	kept := (*g)[:0]
	for _, r := range *g {
		if r.after == nil || r.after.Finished() {
			r.res.Destroy()
			continue
		}
		kept = append(kept, r)
	}
	for idx := len(kept); idx < len(*g); idx++ {
		(*g)[idx] = retiree{}
	}
	*g = kept
}

func (g *graveyard) destroyAll() {
	for _, r := range *g {
		r.res.Destroy()
	}
	*g = nil
}
