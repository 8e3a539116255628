package macs2

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func inputMetadata(path string) InputMetadata {
	return InputMetadata{
		BAM: Metadata{
			DataType: "data_chip_seq",
			FileType: "BAM",
			FilePath: path,
			TaxonID:  9606,
			MetaData: map[string]string{"assembly": "GRCh38"},
		},
	}
}

func TestToolRunNarrowAndSummits(t *testing.T) {
	w := newWorkspace(t)
	runner := &fakeRunner{produce: map[string][]byte{
		"peaks.narrowPeak": repeat('n', 120),
		"summits.bed":      repeat('s', 40),
	}}
	aligner := &fakeAligner{reads: 1000}
	tool := NewTool(w.caller(runner, aligner, &recordLogger{}), &recordLogger{})

	result, err := tool.Run(context.Background(), Inputs{BAM: w.bam}, inputMetadata(w.bam), w.outputs)
	require.NoError(t, err)

	require.Len(t, runner.calls, 1)
	assert.Equal(t, []string{
		"macs2", "callpeak", "--nomodel",
		"-t", w.bam, "-n", "sample", "--outdir", filepath.Dir(w.bam),
	}, runner.calls[0])
	assert.Equal(t, []string{w.bam + " " + w.bam + ".bai"}, aligner.indexed)

	assert.Equal(t, map[Slot]string{
		NarrowPeak: w.outputs[NarrowPeak],
		Summits:    w.outputs[Summits],
	}, result.Files)
	require.Len(t, result.Metadata, 2)

	size, _ := fileSize(t, w.outputs[NarrowPeak])
	assert.Equal(t, int64(120), size)
	size, _ = fileSize(t, w.outputs[Summits])
	assert.Equal(t, int64(40), size)

	assert.Equal(t, Metadata{
		DataType: "data_chip_seq",
		FileType: "BED",
		FilePath: w.outputs[NarrowPeak],
		Sources:  []string{w.bam},
		TaxonID:  9606,
		MetaData: map[string]string{
			"assembly": "GRCh38",
			"tool":     "macs2",
			"bed_type": "bed4+1",
		},
	}, result.Metadata[NarrowPeak])
	assert.Equal(t, "bed6+4", result.Metadata[Summits].MetaData["bed_type"])

	for _, slot := range []Slot{BroadPeak, GappedPeak} {
		_, exists := fileSize(t, w.outputs[slot])
		assert.False(t, exists, slot)
		_, ok := result.Files[slot]
		assert.False(t, ok)
		_, ok = result.Metadata[slot]
		assert.False(t, ok)
	}
}

func TestToolRunAllSlots(t *testing.T) {
	w := newWorkspace(t)
	runner := &fakeRunner{produce: map[string][]byte{
		"peaks.narrowPeak": []byte("n\n"),
		"summits.bed":      []byte("s\n"),
		"peaks.broadPeak":  []byte("b\n"),
		"peaks.gappedPeak": []byte("g\n"),
	}}
	tool := NewTool(w.caller(runner, &fakeAligner{reads: 3}, &recordLogger{}), &recordLogger{})
	tool.Options = Options{Broad: true, GSize: "hs"}

	result, err := tool.Run(context.Background(), Inputs{BAM: w.bam}, inputMetadata(w.bam), w.outputs)
	require.NoError(t, err)
	assert.Len(t, result.Files, 4)
	assert.Equal(t, "bed6+3", result.Metadata[BroadPeak].MetaData["bed_type"])
	assert.Equal(t, "bed12+3", result.Metadata[GappedPeak].MetaData["bed_type"])
	assert.Equal(t, []string{"macs2", "callpeak", "--gsize", "hs", "--broad"}, runner.calls[0][:5])
}

func TestToolRunEmptyInput(t *testing.T) {
	w := newWorkspace(t)
	runner := &fakeRunner{}
	tool := NewTool(w.caller(runner, &fakeAligner{reads: 0}, &recordLogger{}), &recordLogger{})

	result, err := tool.Run(context.Background(), Inputs{BAM: w.bam}, inputMetadata(w.bam), w.outputs)
	require.NoError(t, err)
	assert.Empty(t, runner.calls)
	assert.Empty(t, result.Files)
	assert.Empty(t, result.Metadata)
	for _, slot := range Slots {
		_, exists := fileSize(t, w.outputs[slot])
		assert.False(t, exists, slot)
	}
}

func TestToolRunBackground(t *testing.T) {
	w := newWorkspace(t)
	control := filepath.Join(w.dir, "aln", "control.bam")
	require.NoError(t, os.WriteFile(control, []byte("control"), 0644))

	runner := &fakeRunner{produce: map[string][]byte{
		"peaks.narrowPeak": []byte("n\n"),
		"summits.bed":      []byte("s\n"),
	}}
	aligner := &fakeAligner{reads: 50}
	tool := NewTool(w.caller(runner, aligner, &recordLogger{}), &recordLogger{})

	meta := inputMetadata("/archive/sample.bam")
	meta.BAMBackground = &Metadata{FilePath: "/archive/control.bam"}
	result, err := tool.Run(context.Background(), Inputs{BAM: w.bam, BAMBackground: control}, meta, w.outputs)
	require.NoError(t, err)

	assert.Equal(t, []string{
		w.bam + " " + w.bam + ".bai",
		control + " " + control + ".bai",
	}, aligner.indexed)
	assert.Contains(t, runner.calls[0], "-c")
	assert.Contains(t, runner.calls[0], control)

	require.Len(t, result.Metadata, 2)
	for _, slot := range []Slot{NarrowPeak, Summits} {
		assert.Equal(t, []string{"/archive/sample.bam", "/archive/control.bam"}, result.Metadata[slot].Sources)
	}
}

func TestToolRunBackgroundWithoutMetadata(t *testing.T) {
	w := newWorkspace(t)
	control := filepath.Join(w.dir, "aln", "control.bam")
	runner := &fakeRunner{produce: map[string][]byte{"peaks.narrowPeak": []byte("n\n")}}
	tool := NewTool(w.caller(runner, &fakeAligner{reads: 50}, &recordLogger{}), &recordLogger{})

	result, err := tool.Run(context.Background(), Inputs{BAM: w.bam, BAMBackground: control}, InputMetadata{}, w.outputs)
	require.NoError(t, err)
	assert.Equal(t, []string{w.bam, control}, result.Metadata[NarrowPeak].Sources)
}

func TestToolRunFailureCleansUp(t *testing.T) {
	w := newWorkspace(t)
	runner := &fakeRunner{err: errors.New("permission denied")}
	logger := &recordLogger{}
	tool := NewTool(w.caller(runner, &fakeAligner{reads: 50}, logger), logger)

	result, err := tool.Run(context.Background(), Inputs{BAM: w.bam}, inputMetadata(w.bam), w.outputs)
	var launchErr *LaunchError
	require.True(t, errors.As(err, &launchErr), "got %v", err)
	require.NotNil(t, result)
	assert.Empty(t, result.Files)
	for _, slot := range Slots {
		_, exists := fileSize(t, w.outputs[slot])
		assert.False(t, exists, slot)
	}
	assert.NotEmpty(t, logger.errors)
}

func TestToolRunValidation(t *testing.T) {
	w := newWorkspace(t)
	tool := NewTool(w.caller(&fakeRunner{}, &fakeAligner{}, nil), nil)

	_, err := tool.Run(context.Background(), Inputs{}, InputMetadata{}, w.outputs)
	assert.Error(t, err)

	_, err = tool.Run(context.Background(), Inputs{BAM: w.bam}, InputMetadata{}, Outputs{Summits: "x"})
	assert.Error(t, err)
}
