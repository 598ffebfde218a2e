package wpca

import (
	"flag"
	"fmt"
	"io"
	"math"
	"sort"
	"strings"

	log "github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// polarizer rewrites the per-window sign of a coordinate track so the
// assembled genome-wide signal is continuous. PCA orients each window
// arbitrarily; a handful of trusted guide samples vote, window by
// window, on whether the current window agrees with a running
// reference, and windows are flipped according to the summed votes.
type polarizer struct {
	GuideSamples  string
	VarCandidates int
	GuideCount    int
}

func (p *polarizer) Flags(flags *flag.FlagSet) {
	flags.StringVar(&p.GuideSamples, "guide-samples", "", "comma-separated sample `ids` used to orient windows (default: automatic selection)")
	flags.IntVar(&p.VarCandidates, "var-candidates", 9, "automatic guide selection: number of most-stable samples to shortlist")
	flags.IntVar(&p.GuideCount, "guide-count", 3, "automatic guide selection: number of guide samples kept from the shortlist")
}

// Polarize runs the full pass in place: guide selection, per-window
// voting, sign flips, and the final global orientation check.
func (p *polarizer) Polarize(t *CoordinateTrack) error {
	guides, err := p.selectGuides(t)
	if err != nil {
		return err
	}
	names := make([]string, len(guides))
	for i, g := range guides {
		names[i] = t.Samples[g]
	}
	log.Infof("polarizing %d windows with guide samples %s", len(t.Mids), strings.Join(names, ", "))

	votes := make([]int, len(t.Mids))
	voters := make([]int, len(t.Mids))
	for _, g := range guides {
		for j, v := range guideVotes(t.Values[g]) {
			votes[j] += int(v)
			if v != 0 {
				voters[j]++
			}
		}
	}

	flipped := 0
	for j := range t.Mids {
		if j > 0 && voters[j] == 0 {
			log.Infof("window %d has no guide sample votes, leaving orientation unchanged", t.Mids[j])
		}
		if votes[j] < 0 {
			for i := range t.Values {
				if v := t.Values[i][j]; !math.IsNaN(v) {
					t.Values[i][j] = -v
				}
			}
			flipped++
		}
	}
	log.Infof("flipped %d of %d windows", flipped, len(t.Mids))

	t.orient()
	return nil
}

// guideVotes computes one guide sample's vote per window. The first
// window anchors the running reference and never votes. A vote of +1
// means the window value sits closer to the negated reference, -1
// means it agrees with the reference, 0 means no data. The -1/+1
// encoding and the flip-on-negative-sum rule downstream are a matched
// pair; outputs are only compatible with prior runs if both are kept
// as is.
func guideVotes(row []float64) []int8 {
	votes := make([]int8, len(row))
	if len(row) == 0 {
		return votes
	}
	prev := row[0]
	if math.IsNaN(prev) {
		prev = 0
	}
	for j := 1; j < len(row); j++ {
		v := row[j]
		switch {
		case math.IsNaN(v):
			// vote 0, reference unchanged
		case math.Abs(v-prev) > math.Abs(v+prev):
			votes[j] = 1
			prev = -v
		default:
			votes[j] = -1
			prev = v
		}
	}
	return votes
}

// selectGuides resolves the guide sample set to row indices. Explicit
// ids are taken as given; otherwise guides are chosen from the samples
// with no missing windows: first the VarCandidates samples whose
// coordinate magnitude is most stable (lowest variance of absolute
// values), then from those the GuideCount samples farthest from zero
// (largest sum of absolute values). Ties keep input order, so the
// selection is deterministic.
func (p *polarizer) selectGuides(t *CoordinateTrack) ([]int, error) {
	if p.GuideSamples != "" {
		index := make(map[string]int, len(t.Samples))
		for i, id := range t.Samples {
			index[id] = i
		}
		var guides []int
		for _, id := range strings.Split(p.GuideSamples, ",") {
			id = strings.TrimSpace(id)
			i, ok := index[id]
			if !ok {
				return nil, fmt.Errorf("guide sample %q not found in coordinate track", id)
			}
			guides = append(guides, i)
		}
		return guides, nil
	}

	if p.GuideCount > p.VarCandidates {
		return nil, fmt.Errorf("-guide-count %d exceeds -var-candidates %d", p.GuideCount, p.VarCandidates)
	}
	type candidate struct {
		idx      int
		variance float64
		sumAbs   float64
	}
	var candidates []candidate
	for i, row := range t.Values {
		absrow := make([]float64, 0, len(row))
		complete := true
		for _, v := range row {
			if math.IsNaN(v) {
				complete = false
				break
			}
			absrow = append(absrow, math.Abs(v))
		}
		if !complete {
			continue
		}
		candidates = append(candidates, candidate{
			idx:      i,
			variance: stat.Variance(absrow, nil),
			sumAbs:   floats.Sum(absrow),
		})
	}
	if len(candidates) < p.VarCandidates {
		return nil, fmt.Errorf("automatic guide selection needs %d samples with no missing windows, have %d", p.VarCandidates, len(candidates))
	}
	sort.SliceStable(candidates, func(a, b int) bool {
		return candidates[a].variance < candidates[b].variance
	})
	shortlist := candidates[:p.VarCandidates]
	sort.SliceStable(shortlist, func(a, b int) bool {
		return shortlist[a].sumAbs > shortlist[b].sumAbs
	})
	guides := make([]int, p.GuideCount)
	for i := range guides {
		guides[i] = shortlist[i].idx
	}
	sort.Ints(guides)
	return guides, nil
}

// orient flips the whole track when its largest excursion is negative,
// so independent runs agree on the overall sign.
func (t *CoordinateTrack) orient() {
	max, min := 0.0, 0.0
	for _, row := range t.Values {
		for _, v := range row {
			if math.IsNaN(v) {
				continue
			}
			if v > max {
				max = v
			}
			if v < min {
				min = v
			}
		}
	}
	if math.Abs(min) > math.Abs(max) {
		log.Info("flipping track orientation")
		for _, row := range t.Values {
			for j, v := range row {
				if !math.IsNaN(v) {
					row[j] = -v
				}
			}
		}
	}
}

type polarizecmd struct {
	polarizer polarizer
}

func (cmd *polarizecmd) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	err := cmd.run(prog, args, stdin, stdout, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "%s\n", err)
		return 1
	}
	return 0
}

func (cmd *polarizecmd) run(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	flags.SetOutput(stderr)
	inputFilename := flags.String("i", "", "input coordinate track `file` (.tsv or .tsv.gz)")
	outputFilename := flags.String("o", "", "output `file` (default: overwrite input)")
	cmd.polarizer.Flags(flags)
	err := flags.Parse(args)
	if err == flag.ErrHelp {
		return nil
	} else if err != nil {
		return err
	} else if *inputFilename == "" {
		flags.Usage()
		return fmt.Errorf("-i argument is required")
	}
	if *outputFilename == "" {
		*outputFilename = *inputFilename
	}

	in, err := open(*inputFilename)
	if err != nil {
		return err
	}
	track, err := ReadCoordinateTrack(in)
	in.Close()
	if err != nil {
		return err
	}

	err = cmd.polarizer.Polarize(track)
	if err != nil {
		return err
	}

	return writeFile(*outputFilename, track.WriteTSV)
}
