package wpca

import (
	"fmt"
	"sort"
)

// Genotype calls are the number of alternate alleles carried by a
// diploid sample: 0, 1, or 2. missingCall marks an uncalled genotype.
const missingCall = int8(-1)

// variantBlock holds every polymorphic variant of the target region in
// ascending position order. Windows are index ranges into it, so the
// map phase shares the block read-only.
type variantBlock struct {
	chrom   string
	samples []string
	pos     []int
	gt      [][]int8 // gt[i][j] = variant i, sample j
}

func (vb *variantBlock) add(pos int, calls []int8) error {
	if n := len(vb.pos); n > 0 && pos < vb.pos[n-1] {
		return fmt.Errorf("variant at %s:%d out of order (previous %d)", vb.chrom, pos, vb.pos[n-1])
	}
	vb.pos = append(vb.pos, pos)
	vb.gt = append(vb.gt, calls)
	return nil
}

// monomorphic reports whether all called genotypes are identical (or
// nothing is called at all). Such variants carry no information and
// are excluded from the block.
func monomorphic(calls []int8) bool {
	first := missingCall
	for _, c := range calls {
		if c < 0 {
			continue
		}
		if first < 0 {
			first = c
		} else if c != first {
			return false
		}
	}
	return true
}

// window is one sliding-window view into a variantBlock: the variants
// whose position falls in [start, start+size-1].
type window struct {
	start, size int
	gt          [][]int8
}

// mid is the window midpoint position, the window's identity in all
// output tables.
func (w window) mid() int {
	return w.start + w.size/2 - 1
}

// slide cuts [start, stop] into windows of the given size, advanced by
// step. Windows are returned in ascending midpoint order.
func (vb *variantBlock) slide(start, stop, size, step int) []window {
	var windows []window
	for ws := start; ws+size-1 <= stop; ws += step {
		lo := sort.SearchInts(vb.pos, ws)
		hi := sort.SearchInts(vb.pos, ws+size)
		windows = append(windows, window{start: ws, size: size, gt: vb.gt[lo:hi]})
	}
	return windows
}
