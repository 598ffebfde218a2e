package wpca

import (
	"flag"
	"fmt"
	"io"
	"net/http"
	_ "net/http/pprof"
	"os"
	"runtime"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
)

// runcmd is the whole pipeline: variant file in, polarized coordinate
// track and stats track out.
type runcmd struct {
	variantFile  string
	metadataFile string
	outputPrefix string
	region       string
	windowSize   int
	windowStep   int
	component    int
	filterColumn string
	filterValues string
	threads      int
	force        bool
	engine       pcaEngine
	polarizer    polarizer
}

func (cmd *runcmd) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	err := cmd.run(prog, args, stdin, stdout, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "%s\n", err)
		return 1
	}
	return 0
}

func (cmd *runcmd) run(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.StringVar(&cmd.variantFile, "i", "", "input variant `file` (.vcf, .vcf.gz, .tsv, or .tsv.gz)")
	flags.StringVar(&cmd.metadataFile, "metadata", "", "tab-delimited metadata `file`, first column sample id")
	flags.StringVar(&cmd.outputPrefix, "o", "", "output `prefix` for track files")
	flags.StringVar(&cmd.region, "region", "", "target `region` in chrom:start-stop format")
	flags.IntVar(&cmd.windowSize, "window-size", 1000000, "sliding window size in `bp`")
	flags.IntVar(&cmd.windowStep, "window-step", 10000, "sliding window step in `bp`")
	flags.IntVar(&cmd.component, "pc", 1, "principal `component` kept in the coordinate track (1 or 2)")
	flags.StringVar(&cmd.filterColumn, "filter-column", "", "metadata `column` to filter samples by")
	flags.StringVar(&cmd.filterValues, "filter-values", "", "comma-separated `values` kept when filtering")
	flags.IntVar(&cmd.threads, "threads", runtime.NumCPU(), "maximum `number` of concurrent window jobs")
	flags.BoolVar(&cmd.force, "force", false, "recompute even if output from a previous run exists")
	cmd.engine.Flags(flags)
	cmd.polarizer.Flags(flags)
	pprof := flags.String("pprof", "", "serve Go profile data at http://`[addr]:port`")
	loglevel := flags.String("loglevel", "info", "logging threshold (trace, debug, info, warn, error, fatal, or panic)")
	err := flags.Parse(args)
	if err == flag.ErrHelp {
		return nil
	} else if err != nil {
		return err
	} else if flags.NArg() > 0 {
		return fmt.Errorf("errant command line arguments after parsed flags: %v", flags.Args())
	}
	for _, req := range []struct{ flag, value string }{
		{"-i", cmd.variantFile},
		{"-metadata", cmd.metadataFile},
		{"-o", cmd.outputPrefix},
		{"-region", cmd.region},
	} {
		if req.value == "" {
			flags.Usage()
			return fmt.Errorf("%s argument is required", req.flag)
		}
	}

	if *pprof != "" {
		go func() {
			log.Println(http.ListenAndServe(*pprof, nil))
		}()
	}
	lvl, err := log.ParseLevel(*loglevel)
	if err != nil {
		return err
	}
	log.SetLevel(lvl)

	if cmd.threads < 1 {
		cmd.threads = runtime.NumCPU()
	}

	chrom, start, stop, err := parseRegion(cmd.region)
	if err != nil {
		return err
	}

	coordPath := fmt.Sprintf("%s.w_pc_%d.tsv.gz", cmd.outputPrefix, cmd.component)
	statsPath := cmd.outputPrefix + ".w_stats.tsv.gz"

	if !cmd.force && previousRunUsable(coordPath, statsPath) {
		log.Infof("output from previous run found (%s, %s), nothing to do", coordPath, statsPath)
		return nil
	}

	samples, err := cmd.loadSamples()
	if err != nil {
		return err
	}
	log.Infof("%d samples selected", len(samples))

	agg, err := newAggregator(samples, cmd.component)
	if err != nil {
		return err
	}

	log.Print("reading variants")
	vb, err := cmd.readVariants(chrom, start, stop, samples)
	if err != nil {
		return err
	}

	windows := vb.slide(start, stop, cmd.windowSize, cmd.windowStep)
	if len(windows) == 0 {
		return fmt.Errorf("region %s is smaller than one window (%d bp)", cmd.region, cmd.windowSize)
	}
	log.Infof("running PCA over %d windows on %d threads", len(windows), cmd.threads)
	results := cmd.engine.Run(vb, windows, cmd.threads)

	for _, res := range results {
		if err := agg.Add(res); err != nil {
			return err
		}
	}
	coord, stats := agg.Tracks()

	log.Print("polarizing")
	err = cmd.polarizer.Polarize(coord)
	if err != nil {
		return err
	}

	log.Print("writing output")
	err = writeFile(coordPath, coord.WriteTSV)
	if err != nil {
		return err
	}
	err = writeFile(statsPath, stats.WriteTSV)
	if err != nil {
		return err
	}
	log.Print("done")
	return nil
}

func (cmd *runcmd) loadSamples() ([]string, error) {
	f, err := os.Open(cmd.metadataFile)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	meta, err := readMetadata(f)
	if err != nil {
		return nil, err
	}
	if cmd.filterColumn != "" {
		err = meta.filter(cmd.filterColumn, strings.Split(cmd.filterValues, ","))
		if err != nil {
			return nil, err
		}
	}
	fileSamples, err := variantFileSamples(cmd.variantFile)
	if err != nil {
		return nil, err
	}
	meta.intersect(fileSamples)
	if len(meta.ids) == 0 {
		return nil, fmt.Errorf("no metadata samples are present in %s", cmd.variantFile)
	}
	return meta.ids, nil
}

func (cmd *runcmd) readVariants(chrom string, start, stop int, samples []string) (*variantBlock, error) {
	if isVCF(cmd.variantFile) {
		return readVCF(cmd.variantFile, chrom, start, stop, samples)
	}
	return readGenotypeTable(cmd.variantFile, chrom, start, stop, samples)
}

func isVCF(path string) bool {
	return strings.HasSuffix(path, ".vcf") || strings.HasSuffix(path, ".vcf.gz")
}

func variantFileSamples(path string) ([]string, error) {
	if isVCF(path) {
		return vcfSamples(path)
	}
	return genotypeTableSamples(path)
}

// previousRunUsable reports whether both output tracks already exist
// and parse cleanly. Reusing them keeps polarization from being
// applied twice to the same data.
func previousRunUsable(coordPath, statsPath string) bool {
	for _, check := range []struct {
		path  string
		parse func(io.Reader) error
	}{
		{coordPath, func(r io.Reader) error { _, err := ReadCoordinateTrack(r); return err }},
		{statsPath, func(r io.Reader) error { _, err := ReadStatsTrack(r); return err }},
	} {
		rc, err := open(check.path)
		if err != nil {
			return false
		}
		err = check.parse(rc)
		rc.Close()
		if err != nil {
			log.Warnf("previous output %s is not usable: %s", check.path, err)
			return false
		}
	}
	return true
}

func parseRegion(region string) (chrom string, start, stop int, err error) {
	chrom, span, ok := strings.Cut(region, ":")
	if !ok || chrom == "" {
		return "", 0, 0, fmt.Errorf("region %q not in chrom:start-stop format", region)
	}
	from, to, ok := strings.Cut(span, "-")
	if !ok {
		return "", 0, 0, fmt.Errorf("region %q not in chrom:start-stop format", region)
	}
	start, err = strconv.Atoi(from)
	if err != nil {
		return "", 0, 0, fmt.Errorf("region %q: bad start: %w", region, err)
	}
	stop, err = strconv.Atoi(to)
	if err != nil {
		return "", 0, 0, fmt.Errorf("region %q: bad stop: %w", region, err)
	}
	if start < 1 || stop < start {
		return "", 0, 0, fmt.Errorf("region %q: empty or negative span", region)
	}
	return chrom, start, stop, nil
}
