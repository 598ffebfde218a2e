package wpca

import (
	"bytes"
	"flag"
	"fmt"
	"io"
	"math"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/wcharczuk/go-chart/v2"
)

// plotcmd renders the two output tracks as PNGs: one chart with a line
// per sample for the kept principal component, and one chart with the
// per-window diagnostics (variance explained and variant counts).
type plotcmd struct {
	coordsFile   string
	statsFile    string
	metadataFile string
	colorColumn  string
	outputPrefix string
	minVariants  int
	width        int
	height       int
}

func (cmd *plotcmd) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	err := cmd.run(prog, args, stdin, stdout, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "%s\n", err)
		return 1
	}
	return 0
}

func (cmd *plotcmd) run(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.StringVar(&cmd.coordsFile, "coords", "", "coordinate track `file`")
	flags.StringVar(&cmd.statsFile, "stats", "", "stats track `file`")
	flags.StringVar(&cmd.metadataFile, "metadata", "", "metadata `file` for line coloring (optional)")
	flags.StringVar(&cmd.colorColumn, "color-column", "", "metadata `column` that assigns line colors")
	flags.StringVar(&cmd.outputPrefix, "o", "", "output `prefix` for .png files")
	flags.IntVar(&cmd.minVariants, "min-variants", 50, "variant threshold `line` drawn on the stats chart")
	flags.IntVar(&cmd.width, "width", 1600, "chart width in `px`")
	flags.IntVar(&cmd.height, "height", 500, "chart height in `px`")
	err := flags.Parse(args)
	if err == flag.ErrHelp {
		return nil
	} else if err != nil {
		return err
	} else if cmd.outputPrefix == "" {
		flags.Usage()
		return fmt.Errorf("-o argument is required")
	} else if cmd.coordsFile == "" && cmd.statsFile == "" {
		return fmt.Errorf("nothing to do: need -coords and/or -stats")
	}

	throttle := throttle{Max: 2}
	if cmd.coordsFile != "" {
		throttle.Go(cmd.plotCoords)
	}
	if cmd.statsFile != "" {
		throttle.Go(cmd.plotStats)
	}
	return throttle.Wait()
}

func (cmd *plotcmd) plotCoords() error {
	rc, err := open(cmd.coordsFile)
	if err != nil {
		return err
	}
	track, err := ReadCoordinateTrack(rc)
	rc.Close()
	if err != nil {
		return err
	}

	colorOf := func(string) int { return 0 }
	if cmd.metadataFile != "" && cmd.colorColumn != "" {
		f, err := os.Open(cmd.metadataFile)
		if err != nil {
			return err
		}
		meta, err := readMetadata(f)
		f.Close()
		if err != nil {
			return err
		}
		groups := map[string]int{}
		colorOf = func(id string) int {
			group := meta.value(id, cmd.colorColumn)
			if _, ok := groups[group]; !ok {
				groups[group] = len(groups)
			}
			return groups[group]
		}
	}

	var series []chart.Series
	for i, id := range track.Samples {
		color := chart.GetDefaultColor(colorOf(id))
		for _, seg := range finiteSegments(track.Mids, track.Values[i]) {
			series = append(series, chart.ContinuousSeries{
				XValues: seg.x,
				YValues: seg.y,
				Style: chart.Style{
					StrokeColor: color,
					StrokeWidth: 0.75,
				},
			})
		}
	}
	graph := chart.Chart{
		Title:  "windowed PC along " + cmd.coordsFile,
		Width:  cmd.width,
		Height: cmd.height,
		XAxis: chart.XAxis{
			Name: "genomic position",
		},
		Series: series,
	}
	return renderPNG(graph, cmd.outputPrefix+".w_pc.png")
}

func (cmd *plotcmd) plotStats() error {
	rc, err := open(cmd.statsFile)
	if err != nil {
		return err
	}
	track, err := ReadStatsTrack(rc)
	rc.Close()
	if err != nil {
		return err
	}

	mids := make([]float64, len(track.Mids))
	nvar := make([]float64, len(track.Mids))
	for j, mid := range track.Mids {
		mids[j] = float64(mid)
		nvar[j] = float64(track.NVariants[j])
	}
	var series []chart.Series
	for _, pct := range []struct {
		name   string
		values []float64
		color  int
	}{
		{"% explained PC 1", track.PctPC1, 0},
		{"% explained PC 2", track.PctPC2, 1},
	} {
		for _, seg := range finiteSegments(track.Mids, pct.values) {
			series = append(series, chart.ContinuousSeries{
				Name:    pct.name,
				XValues: seg.x,
				YValues: seg.y,
				Style: chart.Style{
					StrokeColor: chart.GetDefaultColor(pct.color),
					StrokeWidth: 1,
				},
			})
		}
	}
	series = append(series, chart.ContinuousSeries{
		Name:    "# variants",
		XValues: mids,
		YValues: nvar,
		YAxis:   chart.YAxisSecondary,
		Style: chart.Style{
			StrokeColor:     chart.GetDefaultColor(2),
			StrokeWidth:     1,
			StrokeDashArray: []float64{3, 3},
		},
	})
	if len(mids) > 0 {
		threshold := float64(cmd.minVariants)
		series = append(series, chart.ContinuousSeries{
			XValues: []float64{mids[0], mids[len(mids)-1]},
			YValues: []float64{threshold, threshold},
			YAxis:   chart.YAxisSecondary,
			Style: chart.Style{
				StrokeColor:     chart.GetDefaultColor(3),
				StrokeWidth:     1,
				StrokeDashArray: []float64{1, 2},
			},
		})
	}
	graph := chart.Chart{
		Title:  "per-window stats",
		Width:  cmd.width,
		Height: cmd.height,
		XAxis: chart.XAxis{
			Name: "genomic position",
		},
		YAxis: chart.YAxis{
			Name: "% variance explained",
		},
		YAxisSecondary: chart.YAxis{
			Name: "# variants per window",
		},
		Series: series,
	}
	return renderPNG(graph, cmd.outputPrefix+".w_stats.png")
}

type segment struct {
	x, y []float64
}

// finiteSegments splits a track row into runs of consecutive finite
// values so missing windows show up as gaps rather than interpolated
// lines.
func finiteSegments(mids []int, values []float64) []segment {
	var segments []segment
	var cur segment
	flush := func() {
		// single points cannot be drawn as lines
		if len(cur.x) > 1 {
			segments = append(segments, cur)
		}
		cur = segment{}
	}
	for j, v := range values {
		if math.IsNaN(v) {
			flush()
			continue
		}
		cur.x = append(cur.x, float64(mids[j]))
		cur.y = append(cur.y, v)
	}
	flush()
	return segments
}

func renderPNG(graph chart.Chart, path string) error {
	buffer := bytes.NewBuffer([]byte{})
	if err := graph.Render(chart.PNG, buffer); err != nil {
		return err
	}
	outFile, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := buffer.WriteTo(outFile); err != nil {
		outFile.Close()
		return err
	}
	log.Infof("wrote %s", path)
	return outFile.Close()
}
