package wpca

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/kshedden/gonpy"
	log "github.com/sirupsen/logrus"
)

// exportNumpy converts a serialized coordinate track to a numpy .npy
// matrix (samples x windows, float64, NaN for missing), plus an
// optional labels file mapping row numbers to sample ids.
type exportNumpy struct{}

func (cmd *exportNumpy) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var err error
	defer func() {
		if err != nil {
			fmt.Fprintf(stderr, "%s\n", err)
		}
	}()
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	flags.SetOutput(stderr)
	inputFilename := flags.String("i", "", "input coordinate track `file`")
	outputFilename := flags.String("o", "-", "output `file`")
	labelsFilename := flags.String("output-labels", "", "`file` to write row labels (csv: row,id)")
	err = flags.Parse(args)
	if err == flag.ErrHelp {
		err = nil
		return 0
	} else if err != nil {
		return 2
	} else if *inputFilename == "" {
		flags.Usage()
		err = fmt.Errorf("-i argument is required")
		return 2
	}

	rc, err := open(*inputFilename)
	if err != nil {
		return 1
	}
	track, err := ReadCoordinateTrack(rc)
	rc.Close()
	if err != nil {
		return 1
	}

	rows, cols := len(track.Samples), len(track.Mids)
	out := make([]float64, rows*cols)
	for i, row := range track.Values {
		copy(out[i*cols:(i+1)*cols], row)
	}

	var output io.WriteCloser
	if *outputFilename == "-" {
		output = nopCloser{stdout}
	} else {
		output, err = os.OpenFile(*outputFilename, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0666)
		if err != nil {
			return 1
		}
		defer output.Close()
	}
	bufw := bufio.NewWriter(output)
	npw, err := gonpy.NewWriter(nopCloser{bufw})
	if err != nil {
		return 1
	}
	npw.Shape = []int{rows, cols}
	log.Printf("writing numpy: %d rows, %d cols", rows, cols)
	npw.WriteFloat64(out)
	err = bufw.Flush()
	if err != nil {
		return 1
	}
	err = output.Close()
	if err != nil {
		return 1
	}

	if *labelsFilename != "" {
		err = writeFile(*labelsFilename, func(w io.Writer) error {
			for i, id := range track.Samples {
				if _, err := fmt.Fprintf(w, "%d,%q\n", i, id); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return 1
		}
	}
	return 0
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }
