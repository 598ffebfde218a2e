package wpca

import (
	"math"
	"os"
	"strings"

	"gopkg.in/check.v1"
)

type windowSuite struct{}

var _ = check.Suite(&windowSuite{})

func (s *windowSuite) TestMonomorphic(c *check.C) {
	c.Check(monomorphic([]int8{0, 0, missingCall, 0}), check.Equals, true)
	c.Check(monomorphic([]int8{missingCall, missingCall}), check.Equals, true)
	c.Check(monomorphic([]int8{2, 2, 2}), check.Equals, true)
	c.Check(monomorphic([]int8{0, 1}), check.Equals, false)
	c.Check(monomorphic([]int8{missingCall, 0, 2}), check.Equals, false)
}

func (s *windowSuite) TestSlide(c *check.C) {
	vb := &variantBlock{chrom: "chr1", samples: []string{"a", "b"}}
	for _, pos := range []int{5, 50, 99, 100, 101, 250, 390} {
		c.Assert(vb.add(pos, []int8{0, 1}), check.IsNil)
	}
	windows := vb.slide(1, 400, 100, 100)
	c.Assert(len(windows), check.Equals, 4)
	c.Check(windows[0].mid(), check.Equals, 50)
	c.Check(windows[1].mid(), check.Equals, 150)
	c.Check(windows[2].mid(), check.Equals, 250)
	c.Check(windows[3].mid(), check.Equals, 350)
	// window 1 covers [1,100]: pos 5, 50, 99, 100
	c.Check(len(windows[0].gt), check.Equals, 4)
	c.Check(len(windows[1].gt), check.Equals, 1)
	c.Check(len(windows[2].gt), check.Equals, 1)
	c.Check(len(windows[3].gt), check.Equals, 1)

	// overlapping windows share variants
	overlapping := vb.slide(1, 400, 200, 100)
	c.Assert(len(overlapping), check.Equals, 3)
	c.Check(overlapping[0].mid(), check.Equals, 100)
	c.Check(len(overlapping[0].gt), check.Equals, 5)
	c.Check(len(overlapping[1].gt), check.Equals, 2)
}

func (s *windowSuite) TestSlideRegionTooSmall(c *check.C) {
	vb := &variantBlock{}
	c.Check(len(vb.slide(1, 50, 100, 10)), check.Equals, 0)
}

func (s *windowSuite) TestAddOutOfOrder(c *check.C) {
	vb := &variantBlock{chrom: "chr1"}
	c.Assert(vb.add(100, []int8{0, 1}), check.IsNil)
	c.Check(vb.add(99, []int8{0, 1}), check.NotNil)
}

func (s *windowSuite) TestGenotypeTable(c *check.C) {
	tmpdir := c.MkDir()
	path := tmpdir + "/gt.tsv"
	content := strings.Join([]string{
		"chrom\tpos\ts1\ts2\ts3",
		"chr1\t10\t0\t1\t2",
		"chr1\t20\t0\t0\t0",   // monomorphic: skipped
		"chr1\t30\t0\t.\t2",   // missing call
		"chr2\t40\t0\t1\t2",   // wrong chromosome
		"chr1\t500\t0\t1\t2",  // outside region
		"",
	}, "\n")
	c.Assert(os.WriteFile(path, []byte(content), 0666), check.IsNil)

	samples, err := genotypeTableSamples(path)
	c.Assert(err, check.IsNil)
	c.Check(samples, check.DeepEquals, []string{"s1", "s2", "s3"})

	// reordered to metadata order s3, s1 (s2 filtered out)
	vb, err := readGenotypeTable(path, "chr1", 1, 400, []string{"s3", "s1"})
	c.Assert(err, check.IsNil)
	c.Check(vb.pos, check.DeepEquals, []int{10, 30})
	c.Check(vb.gt[0], check.DeepEquals, []int8{2, 0})
	c.Check(vb.gt[1], check.DeepEquals, []int8{2, 0})
}

func (s *windowSuite) TestGenotypeTableBadCall(c *check.C) {
	tmpdir := c.MkDir()
	path := tmpdir + "/gt.tsv"
	c.Assert(os.WriteFile(path, []byte("chrom\tpos\ts1\ts2\nchr1\t10\t0\t7\n"), 0666), check.IsNil)
	_, err := readGenotypeTable(path, "chr1", 1, 100, []string{"s1", "s2"})
	c.Assert(err, check.NotNil)
	c.Check(strings.Contains(err.Error(), `"7"`), check.Equals, true)
}

func (s *windowSuite) TestMetadata(c *check.C) {
	meta, err := readMetadata(strings.NewReader(
		"id\tspecies\tsex\ns1\tA\tF\ns2\tA\tM\ns3\tB\tF\n"))
	c.Assert(err, check.IsNil)
	c.Check(meta.ids, check.DeepEquals, []string{"s1", "s2", "s3"})
	c.Check(meta.value("s2", "species"), check.Equals, "A")

	c.Assert(meta.filter("species", []string{"A"}), check.IsNil)
	c.Check(meta.ids, check.DeepEquals, []string{"s1", "s2"})

	meta.intersect([]string{"s2", "sX"})
	c.Check(meta.ids, check.DeepEquals, []string{"s2"})
}

func (s *windowSuite) TestMetadataDuplicateID(c *check.C) {
	_, err := readMetadata(strings.NewReader("id\tspecies\ns1\tA\ns1\tB\n"))
	c.Assert(err, check.NotNil)
	c.Check(strings.Contains(err.Error(), `"s1"`), check.Equals, true)
}

func (s *windowSuite) TestMetadataUnknownFilterColumn(c *check.C) {
	meta, err := readMetadata(strings.NewReader("id\tspecies\ns1\tA\n"))
	c.Assert(err, check.IsNil)
	c.Check(meta.filter("genus", []string{"A"}), check.NotNil)
}

func (s *windowSuite) TestParseRegion(c *check.C) {
	chrom, start, stop, err := parseRegion("chr7:100-20000")
	c.Assert(err, check.IsNil)
	c.Check(chrom, check.Equals, "chr7")
	c.Check(start, check.Equals, 100)
	c.Check(stop, check.Equals, 20000)

	for _, bad := range []string{"", "chr7", "chr7:1", "chr7:x-2", "chr7:5-2", ":1-2"} {
		_, _, _, err := parseRegion(bad)
		c.Check(err, check.NotNil)
	}
}

func (s *windowSuite) TestNanVector(c *check.C) {
	v := nanVector(3)
	c.Assert(len(v), check.Equals, 3)
	for _, x := range v {
		c.Check(math.IsNaN(x), check.Equals, true)
	}
}
