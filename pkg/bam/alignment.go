package bam

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/biogo/hts/bam"
	"github.com/biogo/hts/sam"
)

// IndexSuffix is appended to a BAM path to name its index
const IndexSuffix = ".bai"

// Utils provides the alignment-file helpers the peak caller depends on:
// read counting and BAI index creation.
type Utils struct {
	// Concurrency passed to the BGZF reader (0 = GOMAXPROCS)
	Concurrency int
}

// IndexPath returns the conventional index path for a BAM file
func IndexPath(bamPath string) string {
	return bamPath + IndexSuffix
}

// CountAlignedReads counts records without the unmapped flag,
// equivalent to `samtools view -c -F 4`.
func (u Utils) CountAlignedReads(bamPath string) (int64, error) {
	f, err := os.Open(bamPath)
	if err != nil {
		return 0, fmt.Errorf("failed to open BAM file: %w", err)
	}
	defer f.Close()

	br, err := bam.NewReader(bufio.NewReader(f), u.Concurrency)
	if err != nil {
		return 0, fmt.Errorf("failed to create BAM reader: %w", err)
	}
	defer br.Close()

	var aligned int64
	for {
		record, err := br.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("failed to read BAM record: %w", err)
		}
		if record.Flags&sam.Unmapped == 0 {
			aligned++
		}
	}

	return aligned, nil
}

// Index writes a BAI index for bamPath to baiPath. An index that already
// exists and is not older than the BAM is left alone.
func (u Utils) Index(bamPath, baiPath string) error {
	bamInfo, err := os.Stat(bamPath)
	if err != nil {
		return fmt.Errorf("failed to stat BAM file: %w", err)
	}
	if baiInfo, err := os.Stat(baiPath); err == nil && !baiInfo.ModTime().Before(bamInfo.ModTime()) {
		return nil
	}

	f, err := os.Open(bamPath)
	if err != nil {
		return fmt.Errorf("failed to open BAM file: %w", err)
	}
	defer f.Close()

	// LastChunk offsets must come from the unbuffered file
	br, err := bam.NewReader(f, u.Concurrency)
	if err != nil {
		return fmt.Errorf("failed to create BAM reader: %w", err)
	}
	defer br.Close()

	var idx bam.Index
	for {
		record, err := br.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read BAM record: %w", err)
		}
		if err := idx.Add(record, br.LastChunk()); err != nil {
			return fmt.Errorf("failed to index record %s: %w", record.Name, err)
		}
	}

	// Write to a sibling temp file so a failed run never leaves a
	// truncated index behind.
	tmp := baiPath + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create index file: %w", err)
	}
	if err := bam.WriteIndex(out, &idx); err != nil {
		out.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to write index: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to close index file: %w", err)
	}
	return os.Rename(tmp, baiPath)
}

// ReferenceStats summarizes mapped/unmapped counts per reference from an
// existing BAI index, as `samtools idxstats` does.
type ReferenceStats struct {
	Name     string
	Length   int
	Mapped   uint64
	Unmapped uint64
}

// IndexStats reads baiPath and reports per-reference counts, using the BAM
// header for reference names.
func (u Utils) IndexStats(bamPath, baiPath string) ([]ReferenceStats, error) {
	f, err := os.Open(bamPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open BAM file: %w", err)
	}
	defer f.Close()

	br, err := bam.NewReader(f, u.Concurrency)
	if err != nil {
		return nil, fmt.Errorf("failed to create BAM reader: %w", err)
	}
	defer br.Close()

	idxFile, err := os.Open(baiPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open index file: %w", err)
	}
	defer idxFile.Close()

	idx, err := bam.ReadIndex(idxFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read index: %w", err)
	}

	refs := br.Header().Refs()
	stats := make([]ReferenceStats, 0, len(refs))
	for _, ref := range refs {
		rs := ReferenceStats{Name: ref.Name(), Length: ref.Len()}
		if s, ok := idx.ReferenceStats(ref.ID()); ok {
			rs.Mapped = s.Mapped
			rs.Unmapped = s.Unmapped
		}
		stats = append(stats, rs)
	}
	return stats, nil
}
