package macs2

import (
	"context"
	"fmt"
	"strings"

	"github.com/scttfrdmn/peakcall-go/pkg/bam"
)

const (
	// ToolName is recorded in the metadata of every artifact
	ToolName = "macs2"

	dataTypeChIPSeq = "data_chip_seq"
	fileTypeBED     = "BED"
)

// Tool calls peaks on a treatment BAM (and optional control BAM) and
// describes the resulting files for downstream pipeline stages.
type Tool struct {
	Caller  *PeakCaller
	Options Options
	Logger  Logger
}

// NewTool creates a Tool using DefaultOptions
func NewTool(caller *PeakCaller, logger Logger) *Tool {
	return &Tool{
		Caller:  caller,
		Options: DefaultOptions(),
		Logger:  loggerOrDefault(logger),
	}
}

// Run indexes the inputs, calls peaks and assembles the result.
//
// Slots whose destination ended up empty are deleted and left out of the
// result. When peak calling fails the placeholders are still cleaned up and
// the result is returned together with the error.
func (t *Tool) Run(ctx context.Context, in Inputs, meta InputMetadata, outputs Outputs) (*Result, error) {
	log := loggerOrDefault(t.Logger)

	if in.BAM == "" {
		return nil, fmt.Errorf("missing treatment BAM")
	}
	if err := outputs.Validate(); err != nil {
		return nil, err
	}

	name := RunName(in.BAM)

	aligner := t.Caller.Aligner
	if err := aligner.Index(in.BAM, bam.IndexPath(in.BAM)); err != nil {
		return nil, fmt.Errorf("failed to index %s: %w", in.BAM, err)
	}
	if in.HasBackground() {
		if err := aligner.Index(in.BAMBackground, bam.IndexPath(in.BAMBackground)); err != nil {
			return nil, fmt.Errorf("failed to index %s: %w", in.BAMBackground, err)
		}
	}

	req := CallRequest{
		Name:    name,
		BAM:     in.BAM,
		BAI:     bam.IndexPath(in.BAM),
		Params:  t.Options.Translate(),
		Outputs: outputs,
	}
	if in.HasBackground() {
		req.BAMBackground = in.BAMBackground
		req.BAIBackground = bam.IndexPath(in.BAMBackground)
	}

	callErr := t.Caller.Call(ctx, req)
	if callErr != nil {
		log.Errorf("MACS2: Something went wrong with the peak calling: %v", callErr)
	}

	result, err := t.assemble(in, meta, outputs)
	if err != nil {
		return nil, err
	}

	created := make([]string, 0, len(result.Files))
	for _, slot := range Slots {
		if path, ok := result.Files[slot]; ok {
			created = append(created, path)
		}
	}
	log.Printf("MACS2: GENERATED FILES: %s", strings.Join(created, " "))

	return result, callErr
}

// assemble keeps every non-empty destination and removes the rest
func (t *Tool) assemble(in Inputs, meta InputMetadata, outputs Outputs) (*Result, error) {
	log := loggerOrDefault(t.Logger)
	store := t.Caller.Storage

	sources := []string{meta.BAM.FilePath}
	if sources[0] == "" {
		sources[0] = in.BAM
	}
	if in.HasBackground() {
		bg := in.BAMBackground
		if meta.BAMBackground != nil && meta.BAMBackground.FilePath != "" {
			bg = meta.BAMBackground.FilePath
		}
		sources = append(sources, bg)
	}

	result := newResult()
	for _, slot := range Slots {
		path := outputs[slot]
		size, exists, err := store.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", path, err)
		}

		if !exists || size == 0 {
			log.Debugf("MACS2: no %s produced, removing %s", slot, path)
			if err := store.Remove(path); err != nil {
				return nil, fmt.Errorf("failed to remove %s: %w", path, err)
			}
			continue
		}

		result.Files[slot] = path
		result.Metadata[slot] = Metadata{
			DataType: dataTypeChIPSeq,
			FileType: fileTypeBED,
			FilePath: path,
			Sources:  append([]string(nil), sources...),
			TaxonID:  meta.BAM.TaxonID,
			MetaData: map[string]string{
				"assembly": meta.BAM.MetaData["assembly"],
				"tool":     ToolName,
				"bed_type": slot.BedType(),
			},
		}
	}
	return result, nil
}
