package mr

import "fmt"

// Walk visits r and its upstream chain depth-first, calling fn for each
// resource until fn returns false. Resources exposing several upstreams
// (binning) implement Children. A resource reached twice along one path
// means the graph has a cycle and Walk returns ErrConfiguration.
func Walk(r Resource, fn func(Resource) bool) error {
	_, err := walk(r, fn, nil)
	return err
}

// Children is implemented by resources with more than one upstream.
type Children interface {
	Children() []Resource
}

func walk(r Resource, fn func(Resource) bool, path []Resource) (bool, error) {
	if r == nil {
		return true, nil
	}
	for _, p := range path {
		if Same(p, r) {
			return false, fmt.Errorf("%w: resource graph has a cycle through %T", ErrConfiguration, r)
		}
	}
	if !fn(r) {
		return false, nil
	}
	path = append(path, r)

	var next []Resource
	if c, ok := r.(Children); ok {
		next = c.Children()
	} else if u, ok := r.(Upstreamer); ok {
		next = []Resource{u.Upstream()}
	}
	for _, n := range next {
		cont, err := walk(n, fn, path)
		if err != nil || !cont {
			return cont, err
		}
	}
	return true, nil
}

// Reaches reports whether target is r or reachable from r.
func Reaches(r, target Resource) (bool, error) {
	found := false
	err := Walk(r, func(n Resource) bool {
		if Same(n, target) {
			found = true
			return false
		}
		return true
	})
	return found, err
}
