package macs2

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/scttfrdmn/peakcall-go/pkg/storage"
)

// Aligner provides the alignment-file operations peak calling depends on
type Aligner interface {
	// Index creates baiPath for bamPath if it is missing or stale
	Index(bamPath, baiPath string) error

	// CountAlignedReads counts the mapped records in bamPath
	CountAlignedReads(bamPath string) (int64, error)
}

// LaunchError reports that MACS2 could not be started or was stopped
// before it exited on its own.
type LaunchError struct {
	CommandLine string
	Err         error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("macs2 launch failed (%s): %v", e.CommandLine, e.Err)
}

func (e *LaunchError) Unwrap() error { return e.Err }

// ExitError reports that MACS2 ran and exited non-zero
type ExitError struct {
	CommandLine string
	Code        int
	Stderr      []byte
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("macs2 exited with status %d (%s)", e.Code, e.CommandLine)
}

// CallRequest describes one callpeak invocation
type CallRequest struct {
	// Name is the MACS2 experiment name; tool outputs are <name>_<suffix>
	Name string

	BAM string
	BAI string

	// Params are translated callpeak options, see Options.Translate
	Params []string

	Outputs Outputs

	// Optional control alignments
	BAMBackground string
	BAIBackground string
}

// PeakCaller runs MACS2 and moves its outputs to caller-chosen destinations
type PeakCaller struct {
	// Executable is the MACS2 binary (default "macs2")
	Executable string

	Runner  Runner
	Aligner Aligner

	// Storage resolves destination paths (local or s3://)
	Storage *storage.Router

	Logger Logger

	// ReconcileOnFailure copies whatever MACS2 left behind even when it
	// exits non-zero. The ExitError is still returned.
	ReconcileOnFailure bool
}

// NewPeakCaller creates a PeakCaller with the default executable
// that reconciles partial output after a failed run.
func NewPeakCaller(runner Runner, aligner Aligner, router *storage.Router, logger Logger) *PeakCaller {
	return &PeakCaller{
		Executable:         DefaultExecutable,
		Runner:             runner,
		Aligner:            aligner,
		Storage:            router,
		Logger:             loggerOrDefault(logger),
		ReconcileOnFailure: true,
	}
}

// Call runs callpeak for req.
//
// Every destination is first truncated to an empty placeholder. When the
// treatment BAM has no aligned reads MACS2 is not started and the
// placeholders stay empty. Otherwise MACS2 writes into the directory of the
// treatment BAM and each non-empty <name>_<suffix> file it produced is
// copied to the matching destination.
//
// A nil error means reconciliation completed, however many artifacts were
// produced. *LaunchError and *ExitError report the two failure modes.
func (p *PeakCaller) Call(ctx context.Context, req CallRequest) error {
	log := loggerOrDefault(p.Logger)

	if err := req.Outputs.Validate(); err != nil {
		return err
	}
	if req.Name == "" {
		return fmt.Errorf("missing run name")
	}

	for _, slot := range Slots {
		if err := p.Storage.WriteFile(req.Outputs[slot], nil); err != nil {
			return fmt.Errorf("failed to create placeholder for %s: %w", slot, err)
		}
	}

	outDir := OutputDir(req.BAM)

	reads, err := p.Aligner.CountAlignedReads(req.BAM)
	if err != nil {
		return fmt.Errorf("failed to count aligned reads in %s: %w", req.BAM, err)
	}

	var runErr error
	if reads > 0 {
		runErr = p.run(ctx, req, outDir)
		var launchErr *LaunchError
		if errors.As(runErr, &launchErr) {
			return runErr
		}
		if runErr != nil && !p.ReconcileOnFailure {
			return runErr
		}
	} else {
		log.Printf("MACS2: %s has no aligned reads, skipping peak calling", req.BAM)
	}

	if err := p.reconcile(req, outDir); err != nil {
		return err
	}
	return runErr
}

func (p *PeakCaller) run(ctx context.Context, req CallRequest, outDir string) error {
	log := loggerOrDefault(p.Logger)

	commandLine, err := CommandLine(p.Executable, req.Params, req.BAM, req.Name, req.BAMBackground, outDir)
	if err != nil {
		return &LaunchError{CommandLine: commandLine, Err: err}
	}
	args, err := Tokenize(commandLine)
	if err != nil {
		log.Errorf("MACS2: %v", err)
		return &LaunchError{CommandLine: commandLine, Err: err}
	}

	log.Printf("MACS2: running %s", commandLine)
	result, err := p.Runner.Run(ctx, args)
	if err != nil {
		log.Errorf("MACS2: I/O error: %v\n%s", err, commandLine)
		return &LaunchError{CommandLine: commandLine, Err: err}
	}

	if result.ExitCode != 0 {
		log.Errorf("MACS2 ERROR: exit status %d\n%s", result.ExitCode, strings.TrimSpace(string(result.Stderr)))
		return &ExitError{CommandLine: commandLine, Code: result.ExitCode, Stderr: result.Stderr}
	}

	log.Printf("MACS2: finished in %v", result.Duration)
	return nil
}

// reconcile copies each non-empty tool output into its destination
func (p *PeakCaller) reconcile(req CallRequest, outDir string) error {
	log := loggerOrDefault(p.Logger)

	for _, slot := range Slots {
		src := ToolOutputPath(outDir, req.Name, slot)
		size, exists, err := p.Storage.Stat(src)
		if err != nil {
			return fmt.Errorf("failed to stat %s: %w", src, err)
		}
		log.Debugf("MACS2: %s exists=%v size=%d", src, exists, size)
		if !exists || size == 0 {
			continue
		}

		data, err := p.Storage.ReadFile(src)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", src, err)
		}
		if err := p.Storage.WriteFile(req.Outputs[slot], data); err != nil {
			return fmt.Errorf("failed to write %s: %w", req.Outputs[slot], err)
		}
	}
	return nil
}
