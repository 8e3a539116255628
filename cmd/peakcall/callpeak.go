package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/scttfrdmn/peakcall-go/pkg/bam"
	"github.com/scttfrdmn/peakcall-go/pkg/macs2"
	"github.com/scttfrdmn/peakcall-go/pkg/storage"
)

var (
	bamPath      string
	bamBgPath    string
	narrowPeak   string
	summitsBed   string
	broadPeak    string
	gappedPeak   string
	paramsFile   string
	paramPairs   []string
	taxonID      int
	assembly     string
	manifestPath string
	showCommand  bool
)

var callpeakCmd = &cobra.Command{
	Use:   "callpeak",
	Short: "Call peaks with MACS2",
	Long: `Call peaks on a BAM file with MACS2 callpeak.

MACS2 writes its outputs next to the treatment BAM as <name>_peaks.narrowPeak,
<name>_summits.bed, <name>_peaks.broadPeak and <name>_peaks.gappedPeak, where
<name> is the BAM file name without ".bam". Each non-empty output is copied
to its destination; destinations MACS2 did not produce are removed.
Destinations may be local paths or s3://bucket/key URIs.

BAM files are indexed (<bam>.bai) if needed. A BAM without aligned reads is
not passed to MACS2 and yields no outputs.

MACS2 parameters come from a YAML file (--params) and/or --param key=value.
Recognized keys:
  ` + strings.Join(macs2.Keys(), ", ") + `
Unrecognized keys are ignored. Without parameters, --nomodel is used.

Examples:
  peakcall callpeak --bam sample.bam \
    --narrow-peak out/sample.narrowPeak --summits out/sample.summits.bed \
    --broad-peak out/sample.broadPeak --gapped-peak out/sample.gappedPeak

  # With control and parameters
  peakcall callpeak --bam chip.bam --bam-bg input.bam --params macs2.yaml \
    --param qvalue=0.01 --param broad ...

  # Show the MACS2 command line without running it
  peakcall callpeak --bam sample.bam --show-command ...`,
	Args: cobra.NoArgs,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return bindFlags(cmd.Flags(), "macs2", "timeout", "reconcile-on-failure")
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := loadOptions()
		if err != nil {
			return err
		}

		if showCommand {
			cl, err := macs2.CommandLine(viper.GetString("macs2"), opts.Translate(),
				bamPath, macs2.RunName(bamPath), bamBgPath, macs2.OutputDir(bamPath))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cl)
			return nil
		}

		return runCallpeak(cmd.Context(), cmd.OutOrStdout(), opts)
	},
}

func init() {
	f := callpeakCmd.Flags()
	f.StringVar(&bamPath, "bam", "", "Treatment BAM file")
	f.StringVar(&bamBgPath, "bam-bg", "", "Control (background) BAM file")
	f.StringVar(&narrowPeak, "narrow-peak", "", "Destination of the narrowPeak file")
	f.StringVar(&summitsBed, "summits", "", "Destination of the summits BED file")
	f.StringVar(&broadPeak, "broad-peak", "", "Destination of the broadPeak file")
	f.StringVar(&gappedPeak, "gapped-peak", "", "Destination of the gappedPeak file")
	f.StringVar(&paramsFile, "params", "", "YAML file of MACS2 parameters")
	f.StringArrayVar(&paramPairs, "param", nil, "MACS2 parameter as key=value (flags: key), repeatable")
	f.IntVar(&taxonID, "taxon-id", 0, "Taxon id recorded in output metadata")
	f.StringVar(&assembly, "assembly", "", "Genome assembly recorded in output metadata")
	f.StringVar(&manifestPath, "manifest", "", "Write the result manifest here (.zst to compress, default stdout)")
	f.BoolVar(&showCommand, "show-command", false, "Print the MACS2 command line and exit")

	f.String("macs2", "macs2", "MACS2 executable")
	f.Duration("timeout", 0, "Abort MACS2 after this long (0 = no limit)")
	f.Bool("reconcile-on-failure", true, "Collect partial outputs when MACS2 exits non-zero")
	callpeakCmd.MarkFlagRequired("bam")
}

// loadOptions merges the defaults, the parameter file and --param pairs
func loadOptions() (macs2.Options, error) {
	opts := macs2.DefaultOptions()
	if paramsFile != "" {
		var err error
		if opts, err = macs2.LoadOptions(paramsFile, opts); err != nil {
			return opts, err
		}
	}

	pairs := make(map[string]string, len(paramPairs))
	for _, p := range paramPairs {
		k, v, _ := strings.Cut(p, "=")
		pairs[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	opts, ignored, err := macs2.ParseOptions(opts, pairs)
	if err != nil {
		return opts, err
	}
	if len(ignored) > 0 {
		fmt.Fprintf(os.Stderr, "Ignoring unrecognized MACS2 parameters: %s\n", strings.Join(ignored, ", "))
	}
	return opts, nil
}

func runCallpeak(ctx context.Context, out io.Writer, opts macs2.Options) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	outputs := macs2.Outputs{
		macs2.NarrowPeak: narrowPeak,
		macs2.Summits:    summitsBed,
		macs2.BroadPeak:  broadPeak,
		macs2.GappedPeak: gappedPeak,
	}
	if err := outputs.Validate(); err != nil {
		return fmt.Errorf("%w (set --narrow-peak, --summits, --broad-peak and --gapped-peak)", err)
	}

	logger := macs2.BaseLogger{Verbose: viper.GetBool("verbose")}
	router := storage.NewRouter(ctx)
	runner := &macs2.ExecRunner{
		Timeout: viper.GetDuration("timeout"),
		Stdout:  os.Stderr,
		Stderr:  os.Stderr,
	}

	caller := macs2.NewPeakCaller(runner, bam.Utils{}, router, logger)
	caller.Executable = viper.GetString("macs2")
	caller.ReconcileOnFailure = viper.GetBool("reconcile-on-failure")

	tool := macs2.NewTool(caller, logger)
	tool.Options = opts

	in := macs2.Inputs{BAM: bamPath, BAMBackground: bamBgPath}
	meta := macs2.InputMetadata{
		BAM: macs2.Metadata{
			FilePath: bamPath,
			TaxonID:  taxonID,
			MetaData: map[string]string{"assembly": assembly},
		},
	}
	if in.HasBackground() {
		meta.BAMBackground = &macs2.Metadata{FilePath: bamBgPath}
	}

	result, runErr := tool.Run(ctx, in, meta, outputs)
	if result == nil {
		return runErr
	}

	manifest := macs2.NewManifest(macs2.RunName(bamPath), result)
	if manifestPath != "" {
		if err := macs2.WriteManifest(router, manifestPath, manifest); err != nil {
			return fmt.Errorf("failed to write manifest: %w", err)
		}
		printSummary(out, result)
	} else {
		data, err := manifest.Encode()
		if err != nil {
			return err
		}
		if _, err := out.Write(data); err != nil {
			return err
		}
	}

	return runErr
}

func printSummary(w io.Writer, result *macs2.Result) {
	fmt.Fprintf(w, "Generated %d of %d outputs:\n", len(result.Files), len(macs2.Slots))
	for _, slot := range macs2.Slots {
		path, ok := result.Files[slot]
		if !ok {
			fmt.Fprintf(w, "  %-12s (not produced)\n", slot)
			continue
		}
		fmt.Fprintf(w, "  %-12s %s [%s]\n", slot, path, result.Metadata[slot].MetaData["bed_type"])
	}
}
