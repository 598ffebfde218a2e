package wpca

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/klauspost/pgzip"
)

// floatPrecision is the number of decimal digits used when tracks are
// written as text. Serialized tracks are a resume surface, so the
// format (tab-delimited, NA for missing, fixed precision) must stay
// stable.
const floatPrecision = 7

// CoordinateTrack holds the selected principal component for every
// sample across every window: Values[i][j] is sample i in the window
// with midpoint Mids[j]. Missing entries are NaN in memory and NA on
// disk.
type CoordinateTrack struct {
	Samples []string
	Mids    []int
	Values  [][]float64
}

// StatsTrack holds the per-window diagnostics: percent variance
// explained by PC1 and PC2, and the variant count, for every window
// regardless of which component the coordinate track kept.
type StatsTrack struct {
	Mids      []int
	PctPC1    []float64
	PctPC2    []float64
	NVariants []int
}

// aggregator collects WindowResults, in ascending midpoint order, into
// the two tracks. It is the only writer until Tracks is called.
type aggregator struct {
	component int
	coord     *CoordinateTrack
	stats     *StatsTrack
}

func newAggregator(samples []string, component int) (*aggregator, error) {
	if component != 1 && component != 2 {
		return nil, fmt.Errorf("principal component must be 1 or 2, got %d", component)
	}
	seen := make(map[string]bool, len(samples))
	for _, id := range samples {
		if seen[id] {
			return nil, fmt.Errorf("duplicate sample id %q", id)
		}
		seen[id] = true
	}
	return &aggregator{
		component: component,
		coord: &CoordinateTrack{
			Samples: samples,
			Values:  make([][]float64, len(samples)),
		},
		stats: &StatsTrack{},
	}, nil
}

func (agg *aggregator) Add(res WindowResult) error {
	if n := len(agg.coord.Mids); n > 0 && res.Mid <= agg.coord.Mids[n-1] {
		return fmt.Errorf("window %d out of order (previous %d)", res.Mid, agg.coord.Mids[n-1])
	}
	pc := res.PC(agg.component)
	if len(pc) != len(agg.coord.Samples) {
		return fmt.Errorf("window %d has %d coordinates for %d samples", res.Mid, len(pc), len(agg.coord.Samples))
	}
	agg.coord.Mids = append(agg.coord.Mids, res.Mid)
	for i, v := range pc {
		agg.coord.Values[i] = append(agg.coord.Values[i], v)
	}
	agg.stats.Mids = append(agg.stats.Mids, res.Mid)
	agg.stats.PctPC1 = append(agg.stats.PctPC1, res.PctPC1)
	agg.stats.PctPC2 = append(agg.stats.PctPC2, res.PctPC2)
	agg.stats.NVariants = append(agg.stats.NVariants, res.NVariants)
	return nil
}

func (agg *aggregator) Tracks() (*CoordinateTrack, *StatsTrack) {
	return agg.coord, agg.stats
}

func formatValue(v float64) string {
	if math.IsNaN(v) {
		return "NA"
	}
	return strconv.FormatFloat(v, 'f', floatPrecision, 64)
}

func parseValue(s string) (float64, error) {
	if s == "NA" {
		return math.NaN(), nil
	}
	return strconv.ParseFloat(s, 64)
}

func (t *CoordinateTrack) WriteTSV(w io.Writer) error {
	bufw := bufio.NewWriter(w)
	fmt.Fprint(bufw, "id")
	for _, mid := range t.Mids {
		fmt.Fprintf(bufw, "\t%d", mid)
	}
	fmt.Fprint(bufw, "\n")
	for i, id := range t.Samples {
		fmt.Fprint(bufw, id)
		for _, v := range t.Values[i] {
			fmt.Fprint(bufw, "\t", formatValue(v))
		}
		fmt.Fprint(bufw, "\n")
	}
	return bufw.Flush()
}

func ReadCoordinateTrack(r io.Reader) (*CoordinateTrack, error) {
	scanner := newTrackScanner(r)
	if !scanner.Scan() {
		return nil, fmt.Errorf("empty coordinate track: %v", scanner.Err())
	}
	header := strings.Split(scanner.Text(), "\t")
	if len(header) < 1 || header[0] != "id" {
		return nil, fmt.Errorf("coordinate track header must start with %q", "id")
	}
	t := &CoordinateTrack{}
	for _, col := range header[1:] {
		mid, err := strconv.Atoi(col)
		if err != nil {
			return nil, fmt.Errorf("bad window midpoint %q: %w", col, err)
		}
		t.Mids = append(t.Mids, mid)
	}
	for scanner.Scan() {
		fields := strings.Split(scanner.Text(), "\t")
		if len(fields) != len(t.Mids)+1 {
			return nil, fmt.Errorf("sample %q has %d values, expected %d", fields[0], len(fields)-1, len(t.Mids))
		}
		row := make([]float64, len(t.Mids))
		for j, s := range fields[1:] {
			v, err := parseValue(s)
			if err != nil {
				return nil, fmt.Errorf("sample %q window %d: %w", fields[0], t.Mids[j], err)
			}
			row[j] = v
		}
		t.Samples = append(t.Samples, fields[0])
		t.Values = append(t.Values, row)
	}
	return t, scanner.Err()
}

func (t *StatsTrack) WriteTSV(w io.Writer) error {
	bufw := bufio.NewWriter(w)
	fmt.Fprintln(bufw, "window_mid\tpct_explained_pc_1\tpct_explained_pc_2\tn_variants")
	for j, mid := range t.Mids {
		fmt.Fprintf(bufw, "%d\t%s\t%s\t%d\n", mid, formatValue(t.PctPC1[j]), formatValue(t.PctPC2[j]), t.NVariants[j])
	}
	return bufw.Flush()
}

func ReadStatsTrack(r io.Reader) (*StatsTrack, error) {
	scanner := newTrackScanner(r)
	if !scanner.Scan() {
		return nil, fmt.Errorf("empty stats track: %v", scanner.Err())
	}
	if got := scanner.Text(); got != "window_mid\tpct_explained_pc_1\tpct_explained_pc_2\tn_variants" {
		return nil, fmt.Errorf("unexpected stats track header %q", got)
	}
	t := &StatsTrack{}
	for scanner.Scan() {
		fields := strings.Split(scanner.Text(), "\t")
		if len(fields) != 4 {
			return nil, fmt.Errorf("stats track row has %d fields, expected 4", len(fields))
		}
		mid, err := strconv.Atoi(fields[0])
		if err != nil {
			return nil, fmt.Errorf("bad window midpoint %q: %w", fields[0], err)
		}
		pct1, err := parseValue(fields[1])
		if err != nil {
			return nil, err
		}
		pct2, err := parseValue(fields[2])
		if err != nil {
			return nil, err
		}
		nvar, err := strconv.Atoi(fields[3])
		if err != nil {
			return nil, fmt.Errorf("bad variant count %q: %w", fields[3], err)
		}
		t.Mids = append(t.Mids, mid)
		t.PctPC1 = append(t.PctPC1, pct1)
		t.PctPC2 = append(t.PctPC2, pct2)
		t.NVariants = append(t.NVariants, nvar)
	}
	return t, scanner.Err()
}

func newTrackScanner(r io.Reader) *bufio.Scanner {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 1<<20), 1<<26)
	return scanner
}

// writeFile writes a track (or anything else) to path, gzipping when
// the name ends in .gz.
func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0666)
	if err != nil {
		return err
	}
	defer f.Close()
	var w io.Writer = f
	var gzw *pgzip.Writer
	if strings.HasSuffix(path, ".gz") {
		gzw = pgzip.NewWriter(f)
		w = gzw
	}
	if err := write(w); err != nil {
		return err
	}
	if gzw != nil {
		if err := gzw.Close(); err != nil {
			return err
		}
	}
	return f.Close()
}

// open opens path for reading, decompressing when the name ends in
// .gz.
func open(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(path, ".gz") {
		return f, nil
	}
	gzr, err := pgzip.NewReader(bufio.NewReaderSize(f, 4*1024*1024))
	if err != nil {
		f.Close()
		return nil, err
	}
	return &gzReadCloser{gzr, f}, nil
}

type gzReadCloser struct {
	*pgzip.Reader
	f *os.File
}

func (rc *gzReadCloser) Close() error {
	err := rc.Reader.Close()
	if cerr := rc.f.Close(); err == nil {
		err = cerr
	}
	return err
}
