package wpca

import (
	"flag"
	"math"

	log "github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"
)

// WindowResult is the outcome of PCA on a single window. For windows
// with fewer variants than the configured minimum, both coordinate
// vectors are all-NaN and both percentages are NaN; NVariants is the
// true count either way.
type WindowResult struct {
	Mid       int
	PC1       []float64
	PC2       []float64
	PctPC1    float64
	PctPC2    float64
	NVariants int
}

// Skipped reports whether the window was too sparse for PCA.
func (r *WindowResult) Skipped() bool {
	return math.IsNaN(r.PctPC1)
}

// PC returns the coordinate vector for component 1 or 2.
func (r *WindowResult) PC(component int) []float64 {
	if component == 2 {
		return r.PC2
	}
	return r.PC1
}

type pcaEngine struct {
	MinVariants int
}

func (e *pcaEngine) Flags(flags *flag.FlagSet) {
	flags.IntVar(&e.MinVariants, "min-variants", 50, "skip windows with fewer than `N` polymorphic variants")
}

// Window runs PCA on one window. The returned coordinate signs are
// whatever the decomposition produced; orientation across windows is
// the polarizer's job.
func (e *pcaEngine) Window(w window, nsamples int) WindowResult {
	res := WindowResult{
		Mid:       w.mid(),
		NVariants: len(w.gt),
		PctPC1:    math.NaN(),
		PctPC2:    math.NaN(),
	}
	if res.NVariants < e.MinVariants {
		log.Infof("skipped window %d-%d with %d variants (threshold is %d variants per window)",
			w.start, w.start+w.size-1, res.NVariants, e.MinVariants)
		res.PC1, res.PC2 = nanVector(nsamples), nanVector(nsamples)
		return res
	}

	// Samples with no called genotype anywhere in the window cannot
	// be projected; they keep NaN coordinates.
	called := make([]bool, nsamples)
	for _, calls := range w.gt {
		for j, c := range calls {
			if c >= 0 {
				called[j] = true
			}
		}
	}
	var keep []int
	for j := 0; j < nsamples; j++ {
		if called[j] {
			keep = append(keep, j)
		}
	}
	if len(keep) < 2 {
		log.Warnf("window %d: only %d samples with any genotype calls, treating as missing", res.Mid, len(keep))
		res.PC1, res.PC2 = nanVector(nsamples), nanVector(nsamples)
		return res
	}

	x := pattersonScale(w.gt, keep)

	var svd mat.SVD
	if !svd.Factorize(x, mat.SVDThin) {
		log.Warnf("window %d: singular value decomposition failed, treating as missing", res.Mid)
		res.PC1, res.PC2 = nanVector(nsamples), nanVector(nsamples)
		return res
	}
	sv := svd.Values(nil)
	if len(sv) < 2 {
		log.Warnf("window %d: matrix rank too low for two components, treating as missing", res.Mid)
		res.PC1, res.PC2 = nanVector(nsamples), nanVector(nsamples)
		return res
	}
	sumsq := 0.0
	for _, s := range sv {
		sumsq += s * s
	}
	if sumsq == 0 || math.IsNaN(sumsq) {
		log.Warnf("window %d: degenerate covariance, treating as missing", res.Mid)
		res.PC1, res.PC2 = nanVector(nsamples), nanVector(nsamples)
		return res
	}
	var u mat.Dense
	svd.UTo(&u)

	res.PC1, res.PC2 = nanVector(nsamples), nanVector(nsamples)
	for r, j := range keep {
		res.PC1[j] = u.At(r, 0) * sv[0]
		res.PC2[j] = u.At(r, 1) * sv[1]
	}
	res.PctPC1 = sv[0] * sv[0] / sumsq * 100
	res.PctPC2 = sv[1] * sv[1] / sumsq * 100
	return res
}

// pattersonScale builds the samples-by-variants matrix for the rows in
// keep: each variant column is centered by its mean genotype and
// divided by sqrt(p*(1-p)), p being the in-window allele frequency.
// Missing calls become 0 after centering, i.e. the column mean.
// Columns that are constant within the kept samples contribute zeros.
func pattersonScale(gt [][]int8, keep []int) *mat.Dense {
	x := mat.NewDense(len(keep), len(gt), nil)
	for i, calls := range gt {
		sum, n := 0.0, 0
		for _, j := range keep {
			if c := calls[j]; c >= 0 {
				sum += float64(c)
				n++
			}
		}
		if n == 0 {
			continue
		}
		mean := sum / float64(n)
		p := mean / 2
		denom := math.Sqrt(p * (1 - p))
		if denom == 0 {
			continue
		}
		for r, j := range keep {
			if c := calls[j]; c >= 0 {
				x.Set(r, i, (float64(c)-mean)/denom)
			}
		}
	}
	return x
}

// Run executes the map phase: PCA over every window, up to threads at
// a time. Results come back in window order regardless of completion
// order.
func (e *pcaEngine) Run(vb *variantBlock, windows []window, threads int) []WindowResult {
	results := make([]WindowResult, len(windows))
	throttle := throttle{Max: threads}
	for i, w := range windows {
		i, w := i, w
		throttle.Go(func() error {
			results[i] = e.Window(w, len(vb.samples))
			return nil
		})
	}
	throttle.Wait()
	return results
}

func nanVector(n int) []float64 {
	v := make([]float64, n)
	for i := range v {
		v[i] = math.NaN()
	}
	return v
}
