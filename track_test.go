package wpca

import (
	"bytes"
	"math"
	"strings"

	"gopkg.in/check.v1"
)

type trackSuite struct{}

var _ = check.Suite(&trackSuite{})

func (s *trackSuite) TestAggregatorRejectsDuplicateSamples(c *check.C) {
	_, err := newAggregator([]string{"a", "b", "a"}, 1)
	c.Assert(err, check.NotNil)
	c.Check(strings.Contains(err.Error(), `"a"`), check.Equals, true)
}

func (s *trackSuite) TestAggregatorRejectsBadComponent(c *check.C) {
	_, err := newAggregator([]string{"a"}, 3)
	c.Assert(err, check.NotNil)
}

func (s *trackSuite) TestAggregatorOrdering(c *check.C) {
	agg, err := newAggregator([]string{"a", "b"}, 1)
	c.Assert(err, check.IsNil)
	res := WindowResult{Mid: 100, PC1: []float64{1, 2}, PC2: []float64{3, 4}, PctPC1: 60, PctPC2: 40, NVariants: 7}
	c.Check(agg.Add(res), check.IsNil)
	res.Mid = 100
	c.Check(agg.Add(res), check.NotNil)
	res.Mid = 50
	c.Check(agg.Add(res), check.NotNil)
	res.Mid = 200
	c.Check(agg.Add(res), check.IsNil)

	coord, stats := agg.Tracks()
	c.Check(coord.Mids, check.DeepEquals, []int{100, 200})
	c.Check(coord.Values[0], check.DeepEquals, []float64{1, 1})
	c.Check(coord.Values[1], check.DeepEquals, []float64{2, 2})
	c.Check(stats.NVariants, check.DeepEquals, []int{7, 7})
	c.Check(stats.PctPC2, check.DeepEquals, []float64{40, 40})
}

func (s *trackSuite) TestAggregatorKeepsSelectedComponent(c *check.C) {
	agg, err := newAggregator([]string{"a", "b"}, 2)
	c.Assert(err, check.IsNil)
	res := WindowResult{Mid: 100, PC1: []float64{1, 2}, PC2: []float64{3, 4}, PctPC1: 60, PctPC2: 40, NVariants: 7}
	c.Assert(agg.Add(res), check.IsNil)
	coord, stats := agg.Tracks()
	c.Check(coord.Values[0], check.DeepEquals, []float64{3})
	c.Check(coord.Values[1], check.DeepEquals, []float64{4})
	// stats carry both components no matter which one was selected
	c.Check(stats.PctPC1, check.DeepEquals, []float64{60})
	c.Check(stats.PctPC2, check.DeepEquals, []float64{40})
}

func (s *trackSuite) TestCoordinateTrackRoundTrip(c *check.C) {
	nan := math.NaN()
	track := &CoordinateTrack{
		Samples: []string{"s1", "s2"},
		Mids:    []int{50, 150, 250},
		Values: [][]float64{
			{1.25, nan, -0.5},
			{nan, 0.0078125, 2},
		},
	}
	var buffer bytes.Buffer
	c.Assert(track.WriteTSV(&buffer), check.IsNil)
	c.Check(strings.Split(buffer.String(), "\n")[0], check.Equals, "id\t50\t150\t250")
	c.Check(strings.Contains(buffer.String(), "NA"), check.Equals, true)

	got, err := ReadCoordinateTrack(bytes.NewReader(buffer.Bytes()))
	c.Assert(err, check.IsNil)
	c.Check(got.Samples, check.DeepEquals, track.Samples)
	c.Check(got.Mids, check.DeepEquals, track.Mids)
	for i := range track.Values {
		for j := range track.Values[i] {
			if math.IsNaN(track.Values[i][j]) {
				c.Check(math.IsNaN(got.Values[i][j]), check.Equals, true)
			} else {
				c.Check(got.Values[i][j], check.Equals, track.Values[i][j])
			}
		}
	}

	// serializing the parsed track reproduces the bytes
	var again bytes.Buffer
	c.Assert(got.WriteTSV(&again), check.IsNil)
	c.Check(again.String(), check.Equals, buffer.String())
}

func (s *trackSuite) TestStatsTrackRoundTrip(c *check.C) {
	nan := math.NaN()
	track := &StatsTrack{
		Mids:      []int{50, 150},
		PctPC1:    []float64{62.5, nan},
		PctPC2:    []float64{12.5, nan},
		NVariants: []int{120, 3},
	}
	var buffer bytes.Buffer
	c.Assert(track.WriteTSV(&buffer), check.IsNil)
	got, err := ReadStatsTrack(bytes.NewReader(buffer.Bytes()))
	c.Assert(err, check.IsNil)
	c.Check(got.Mids, check.DeepEquals, track.Mids)
	c.Check(got.NVariants, check.DeepEquals, track.NVariants)
	c.Check(got.PctPC1[0], check.Equals, 62.5)
	c.Check(math.IsNaN(got.PctPC1[1]), check.Equals, true)
	c.Check(math.IsNaN(got.PctPC2[1]), check.Equals, true)
}

func (s *trackSuite) TestGzipRoundTrip(c *check.C) {
	tmpdir := c.MkDir()
	path := tmpdir + "/track.tsv.gz"
	track := &CoordinateTrack{
		Samples: []string{"s1"},
		Mids:    []int{100},
		Values:  [][]float64{{1.5}},
	}
	c.Assert(writeFile(path, track.WriteTSV), check.IsNil)

	rc, err := open(path)
	c.Assert(err, check.IsNil)
	got, err := ReadCoordinateTrack(rc)
	rc.Close()
	c.Assert(err, check.IsNil)
	c.Check(got.Values[0][0], check.Equals, 1.5)
}

func (s *trackSuite) TestReadRejectsBadHeader(c *check.C) {
	_, err := ReadCoordinateTrack(strings.NewReader("sample\t100\nfoo\t1.0\n"))
	c.Assert(err, check.NotNil)
	_, err = ReadStatsTrack(strings.NewReader("nope\n"))
	c.Assert(err, check.NotNil)
}
