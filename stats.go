package wpca

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math"
)

// statscmd summarizes a stats track as JSON: how many windows were
// computed or skipped, and the spread of variance explained.
type statscmd struct{}

func (cmd *statscmd) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	err := cmd.run(prog, args, stdin, stdout, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "%s\n", err)
		return 1
	}
	return 0
}

func (cmd *statscmd) run(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	flags.SetOutput(stderr)
	inputFilename := flags.String("i", "", "input stats track `file`")
	err := flags.Parse(args)
	if err == flag.ErrHelp {
		return nil
	} else if err != nil {
		return err
	} else if *inputFilename == "" {
		flags.Usage()
		return fmt.Errorf("-i argument is required")
	}

	rc, err := open(*inputFilename)
	if err != nil {
		return err
	}
	defer rc.Close()
	track, err := ReadStatsTrack(rc)
	if err != nil {
		return err
	}
	return cmd.doStats(track, stdout)
}

func (cmd *statscmd) doStats(track *StatsTrack, output io.Writer) error {
	var ret struct {
		Windows        int
		SkippedWindows int
		TotalVariants  int
		MinVariants    int
		MaxVariants    int
		MeanPctPC1     float64
		MeanPctPC2     float64
		MaxPctPC1      float64
		MaxPctPC2      float64
	}
	ret.Windows = len(track.Mids)
	sum1, sum2, computed := 0.0, 0.0, 0
	for j := range track.Mids {
		n := track.NVariants[j]
		ret.TotalVariants += n
		if j == 0 || n < ret.MinVariants {
			ret.MinVariants = n
		}
		if n > ret.MaxVariants {
			ret.MaxVariants = n
		}
		if math.IsNaN(track.PctPC1[j]) {
			ret.SkippedWindows++
			continue
		}
		computed++
		sum1 += track.PctPC1[j]
		sum2 += track.PctPC2[j]
		if track.PctPC1[j] > ret.MaxPctPC1 {
			ret.MaxPctPC1 = track.PctPC1[j]
		}
		if track.PctPC2[j] > ret.MaxPctPC2 {
			ret.MaxPctPC2 = track.PctPC2[j]
		}
	}
	if computed > 0 {
		ret.MeanPctPC1 = sum1 / float64(computed)
		ret.MeanPctPC2 = sum2 / float64(computed)
	}
	return json.NewEncoder(output).Encode(ret)
}
