package macs2

import "fmt"

// Slot names one of the output artifacts of a peak-calling run
type Slot string

const (
	NarrowPeak Slot = "narrow_peak"
	Summits    Slot = "summits"
	BroadPeak  Slot = "broad_peak"
	GappedPeak Slot = "gapped_peak"
)

// Slots lists every output slot in reconciliation order
var Slots = []Slot{NarrowPeak, BroadPeak, GappedPeak, Summits}

// Suffix is the file name suffix MACS2 uses for the slot,
// i.e. it writes <outdir>/<name>_<suffix>.
func (s Slot) Suffix() string {
	switch s {
	case NarrowPeak:
		return "peaks.narrowPeak"
	case Summits:
		return "summits.bed"
	case BroadPeak:
		return "peaks.broadPeak"
	case GappedPeak:
		return "peaks.gappedPeak"
	}
	return ""
}

// BedType is the BED sub-schema tag recorded in the slot's metadata.
// These labels are kept exactly as downstream consumers already see them.
func (s Slot) BedType() string {
	switch s {
	case NarrowPeak:
		return "bed4+1"
	case Summits:
		return "bed6+4"
	case BroadPeak:
		return "bed6+3"
	case GappedPeak:
		return "bed12+3"
	}
	return ""
}

// ParseSlot converts a slot name to a Slot
func ParseSlot(name string) (Slot, error) {
	for _, s := range Slots {
		if string(s) == name {
			return s, nil
		}
	}
	return "", fmt.Errorf("unknown output slot %q", name)
}

// Outputs maps each slot to its caller-chosen destination path
type Outputs map[Slot]string

// Validate checks that every slot has a destination
func (o Outputs) Validate() error {
	for _, s := range Slots {
		if o[s] == "" {
			return fmt.Errorf("missing destination for output %s", s)
		}
	}
	return nil
}

// Inputs are the alignment files to call peaks on
type Inputs struct {
	BAM           string // Treatment alignments
	BAMBackground string // Optional control alignments
}

// HasBackground reports whether a control alignment was supplied
func (in Inputs) HasBackground() bool {
	return in.BAMBackground != ""
}

// Metadata describes a file flowing through the pipeline
type Metadata struct {
	DataType string            `json:"data_type"`
	FileType string            `json:"file_type"`
	FilePath string            `json:"file_path"`
	Sources  []string          `json:"sources"`
	TaxonID  int               `json:"taxon_id"`
	MetaData map[string]string `json:"meta_data"`
}

// InputMetadata carries the metadata of the input alignments
type InputMetadata struct {
	BAM           Metadata
	BAMBackground *Metadata
}

// Result holds the artifacts a run produced. Files and Metadata share keys;
// slots the tool did not produce are absent from both.
type Result struct {
	Files    map[Slot]string   `json:"files"`
	Metadata map[Slot]Metadata `json:"metadata"`
}

func newResult() *Result {
	return &Result{
		Files:    make(map[Slot]string),
		Metadata: make(map[Slot]Metadata),
	}
}
