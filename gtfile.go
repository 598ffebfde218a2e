package wpca

import (
	"fmt"
	"strconv"
	"strings"
)

// Genotype tables are the second supported variant format: a
// tab-delimited file whose header is "chrom\tpos" followed by one
// column per sample, and whose rows carry genotype calls encoded as
// 0, 1, or 2 alternate alleles ("." or "NA" for missing).

// readGenotypeTable loads chrom:start-stop from a genotype table into
// a variantBlock with columns reordered to match keep. Sites that are
// monomorphic across the kept samples are skipped.
func readGenotypeTable(path, chrom string, start, stop int, keep []string) (*variantBlock, error) {
	rc, err := open(path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	scanner := newTrackScanner(rc)
	if !scanner.Scan() {
		return nil, fmt.Errorf("genotype table %s is empty: %v", path, scanner.Err())
	}
	header := strings.Split(scanner.Text(), "\t")
	if len(header) < 3 {
		return nil, fmt.Errorf("genotype table %s has no sample columns", path)
	}
	keepIdx, err := sampleIndexes(header[2:], keep)
	if err != nil {
		return nil, err
	}

	vb := &variantBlock{chrom: chrom, samples: keep}
	nmono := 0
	line := 1
	for scanner.Scan() {
		line++
		fields := strings.Split(scanner.Text(), "\t")
		if len(fields) != len(header) {
			return nil, fmt.Errorf("%s line %d: %d fields, expected %d", path, line, len(fields), len(header))
		}
		if fields[0] != chrom {
			continue
		}
		pos, err := strconv.Atoi(fields[1])
		if err != nil {
			return nil, fmt.Errorf("%s line %d: bad position %q: %w", path, line, fields[1], err)
		}
		if pos < start || pos > stop {
			continue
		}
		calls := make([]int8, len(keep))
		for k, si := range keepIdx {
			c, err := parseCall(fields[2+si])
			if err != nil {
				return nil, fmt.Errorf("%s line %d: %w", path, line, err)
			}
			calls[k] = c
		}
		if monomorphic(calls) {
			nmono++
			continue
		}
		if err := vb.add(pos, calls); err != nil {
			return nil, err
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return vb, nil
}

func parseCall(s string) (int8, error) {
	switch s {
	case "0":
		return 0, nil
	case "1":
		return 1, nil
	case "2":
		return 2, nil
	case ".", "NA", "":
		return missingCall, nil
	}
	return 0, fmt.Errorf("bad genotype call %q", s)
}

// genotypeTableSamples returns the sample ids from a genotype table
// header.
func genotypeTableSamples(path string) ([]string, error) {
	rc, err := open(path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	scanner := newTrackScanner(rc)
	if !scanner.Scan() {
		return nil, fmt.Errorf("genotype table %s is empty: %v", path, scanner.Err())
	}
	fields := strings.Split(scanner.Text(), "\t")
	if len(fields) < 3 {
		return nil, fmt.Errorf("genotype table %s has no sample columns", path)
	}
	return fields[2:], nil
}
