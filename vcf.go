package wpca

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/brentp/vcfgo"
	log "github.com/sirupsen/logrus"
)

// readVCF loads the polymorphic biallelic variants of chrom:start-stop
// into a variantBlock, with genotype columns reordered to match keep
// (the metadata sample order). Multiallelic sites and sites that are
// monomorphic across the kept samples are skipped.
func readVCF(path, chrom string, start, stop int, keep []string) (*variantBlock, error) {
	rc, err := open(path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	rdr, err := vcfgo.NewReader(bufio.NewReaderSize(rc, 4*1024*1024), true)
	if err != nil {
		if rdr == nil {
			return nil, fmt.Errorf("open vcf %s: %w", path, err)
		}
		log.Warnf("vcf %s has invalid features, attempting to continue: %s", path, err)
		rdr.Clear()
	}

	keepIdx, err := sampleIndexes(rdr.Header.SampleNames, keep)
	if err != nil {
		return nil, err
	}

	vb := &variantBlock{chrom: chrom, samples: keep}
	nmulti, nmono := 0, 0
	for {
		variant := rdr.Read()
		if variant == nil {
			break
		}
		if variant.Chrom() != chrom {
			continue
		}
		pos := int(variant.Pos)
		if pos < start {
			continue
		}
		if pos > stop {
			break
		}
		if len(variant.Alt()) != 1 {
			nmulti++
			continue
		}
		if err := variant.Header.ParseSamples(variant); err != nil {
			log.Warnf("%s:%d: parsing sample genotypes: %s", chrom, pos, err)
		}
		calls := make([]int8, len(keep))
		for k, si := range keepIdx {
			calls[k] = altAlleleCount(variant.Samples[si])
		}
		if monomorphic(calls) {
			nmono++
			continue
		}
		if err := vb.add(pos, calls); err != nil {
			return nil, err
		}
	}
	if err := rdr.Error(); err != nil {
		log.Warnf("vcf %s: ignoring parse warnings: %s", path, err)
		rdr.Clear()
	}
	log.Infof("read %d variants from %s (%d multiallelic and %d monomorphic sites skipped)",
		len(vb.pos), path, nmulti, nmono)
	return vb, nil
}

// altAlleleCount condenses a diploid genotype call to the number of
// alternate alleles, or missingCall when any allele is uncalled.
func altAlleleCount(sample *vcfgo.SampleGenotype) int8 {
	if sample == nil || len(sample.GT) == 0 {
		return missingCall
	}
	n := int8(0)
	for _, allele := range sample.GT {
		if allele < 0 {
			return missingCall
		}
		if allele > 0 {
			n++
		}
	}
	return n
}

func sampleIndexes(fileSamples, keep []string) ([]int, error) {
	index := make(map[string]int, len(fileSamples))
	for i, id := range fileSamples {
		index[id] = i
	}
	keepIdx := make([]int, len(keep))
	for k, id := range keep {
		i, ok := index[id]
		if !ok {
			return nil, fmt.Errorf("sample %q not present in variant file", id)
		}
		keepIdx[k] = i
	}
	return keepIdx, nil
}

// vcfSamples returns the sample ids from a VCF header.
func vcfSamples(path string) ([]string, error) {
	rc, err := open(path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	scanner := newTrackScanner(rc)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "#CHROM") {
			fields := strings.Split(line, "\t")
			if len(fields) < 10 {
				return nil, fmt.Errorf("vcf %s has no sample columns", path)
			}
			return fields[9:], nil
		}
		if !strings.HasPrefix(line, "#") {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("vcf %s has no #CHROM header line", path)
}
