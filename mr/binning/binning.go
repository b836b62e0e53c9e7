// Package binning implements a resource that routes each request to the
// smallest bin that fits it, falling back to an overflow resource.
//
// Bins are (maxSize, resource) pairs kept in ascending maxSize order.
// Deallocate routes by the block size exactly as Allocate routed the request,
// so the binning resource itself keeps no per-block metadata.
package binning

import (
	"fmt"
	"sort"

	"go.uber.org/multierr"

	"github.com/joshuapare/rmmkit/internal/sizeclass"
	"github.com/joshuapare/rmmkit/mr"
	"github.com/joshuapare/rmmkit/mr/fixedsize"
	"github.com/joshuapare/rmmkit/stream"
)

// Resource routes requests to size bins.
//
// Bins are set up at construction and through AddBin, which are
// configuration-time operations. Allocation is as safe for concurrent use as
// the bin and overflow resources are.
type Resource struct {
	upstream mr.Resource
	bins     []bin
	binOpts  *fixedsize.Options
}

type bin struct {
	maxSize int
	r       mr.Resource
	owned   bool // Created by AddBin(maxSize, nil)
}

// Option configures a binning resource at construction.
type Option func(*Resource) error

// WithBinOptions sets the options used for fixed-size bins created on
// demand. It must precede the options that create bins.
func WithBinOptions(opts *fixedsize.Options) Option {
	return func(r *Resource) error {
		r.binOpts = opts
		return nil
	}
}

// WithPowerOfTwoBins adds a fixed-size bin for every power of two from
// 2^minExp to 2^maxExp inclusive.
func WithPowerOfTwoBins(minExp, maxExp int) Option {
	return func(r *Resource) error {
		if minExp < 0 || maxExp < minExp || maxExp > 40 {
			return fmt.Errorf("%w: invalid power-of-two bin range [%d, %d]", mr.ErrConfiguration, minExp, maxExp)
		}
		for e := minExp; e <= maxExp; e++ {
			if err := r.AddBin(1<<e, nil); err != nil {
				return err
			}
		}
		return nil
	}
}

// WithSizeClasses adds a fixed-size bin for every class of cfg whose
// boundary, aligned to mr.Alignment, does not exceed maxSize.
func WithSizeClasses(cfg sizeclass.Config, maxSize int) Option {
	return func(r *Resource) error {
		for _, boundary := range sizeclass.NewTable(cfg).Boundaries() {
			size := mr.AlignSize(boundary)
			if size > maxSize {
				break
			}
			if err := r.AddBin(size, nil); err != nil {
				return err
			}
		}
		return nil
	}
}

// New returns a binning resource with upstream as its overflow resource.
func New(upstream mr.Resource, opts ...Option) (*Resource, error) {
	if upstream == nil {
		return nil, fmt.Errorf("%w: binning requires an overflow resource", mr.ErrConfiguration)
	}
	r := &Resource{upstream: upstream}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// AddBin adds a bin serving requests up to maxSize bytes. A nil binResource
// creates a fixed-size resource of maxSize over the overflow resource. A bin
// with the same maxSize is replaced. A binResource whose graph reaches r is
// rejected with mr.ErrConfiguration.
func (r *Resource) AddBin(maxSize int, binResource mr.Resource) error {
	if maxSize <= 0 {
		return fmt.Errorf("%w: bin size %d must be positive", mr.ErrConfiguration, maxSize)
	}
	owned := false
	if binResource == nil {
		fs, err := fixedsize.New(r.upstream, maxSize, r.binOpts)
		if err != nil {
			return err
		}
		binResource, owned = fs, true
	} else {
		cyclic, err := mr.Reaches(binResource, r)
		if err != nil {
			return err
		}
		if cyclic {
			return fmt.Errorf("%w: bin resource %T reaches the binning resource", mr.ErrConfiguration, binResource)
		}
	}

	b := bin{maxSize: maxSize, r: binResource, owned: owned}
	i := sort.Search(len(r.bins), func(i int) bool { return r.bins[i].maxSize >= maxSize })
	if i < len(r.bins) && r.bins[i].maxSize == maxSize {
		r.bins[i] = b
		return nil
	}
	r.bins = append(r.bins, bin{})
	copy(r.bins[i+1:], r.bins[i:])
	r.bins[i] = b
	return nil
}

// Bins returns the bin boundaries in ascending order.
func (r *Resource) Bins() []int {
	out := make([]int, len(r.bins))
	for i, b := range r.bins {
		out[i] = b.maxSize
	}
	return out
}

// BinFor returns the resource a request of size bytes is routed to.
func (r *Resource) BinFor(size int) mr.Resource {
	i := sort.Search(len(r.bins), func(i int) bool { return r.bins[i].maxSize >= size })
	if i == len(r.bins) {
		return r.upstream
	}
	return r.bins[i].r
}

// Allocate implements mr.Resource.
func (r *Resource) Allocate(size int, s stream.Stream) (mr.Block, error) {
	if size == 0 {
		return mr.Block{}, nil
	}
	return r.BinFor(size).Allocate(size, s)
}

// Deallocate implements mr.Resource.
func (r *Resource) Deallocate(b mr.Block, s stream.Stream) error {
	if b.IsEmpty() {
		return nil
	}
	return r.BinFor(b.Size).Deallocate(b, s)
}

// IsEqual implements mr.Resource.
func (r *Resource) IsEqual(other mr.Resource) bool {
	o, ok := other.(*Resource)
	return ok && o == r
}

// Upstream implements mr.Upstreamer. It returns the overflow resource.
func (r *Resource) Upstream() mr.Resource {
	return r.upstream
}

// Children implements mr.Children: every bin resource, then the overflow.
func (r *Resource) Children() []mr.Resource {
	out := make([]mr.Resource, 0, len(r.bins)+1)
	for _, b := range r.bins {
		out = append(out, b.r)
	}
	return append(out, r.upstream)
}

// Release releases the fixed-size bins created by AddBin.
func (r *Resource) Release() error {
	var err error
	for _, b := range r.bins {
		if !b.owned {
			continue
		}
		if rel, ok := b.r.(mr.Releaser); ok {
			err = multierr.Append(err, rel.Release())
		}
	}
	return err
}
