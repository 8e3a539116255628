package main

import (
	"fmt"

	"github.com/scttfrdmn/peakcall-go/pkg/bam"
	"github.com/spf13/cobra"
)

var showStats bool

var indexCmd = &cobra.Command{
	Use:   "index <input.bam> [output.bai]",
	Short: "Create a BAI index for a BAM file",
	Long: `Create a BAI index for a coordinate-sorted BAM file.

The index is written to <input.bam>.bai unless a path is given. An index
that is newer than the BAM is kept as is.

Examples:
  peakcall index sample.bam
  peakcall index sample.bam --stats`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		bamFile := args[0]
		baiFile := bam.IndexPath(bamFile)
		if len(args) == 2 {
			baiFile = args[1]
		}

		u := bam.Utils{}
		if err := u.Index(bamFile, baiFile); err != nil {
			return err
		}
		fmt.Printf("Index: %s\n", baiFile)

		if !showStats {
			return nil
		}

		stats, err := u.IndexStats(bamFile, baiFile)
		if err != nil {
			return err
		}
		fmt.Println()
		fmt.Printf("%-20s %12s %12s %12s\n", "Reference", "Length", "Mapped", "Unmapped")
		fmt.Println("------------------------------------------------------------")
		for _, s := range stats {
			fmt.Printf("%-20s %12d %12d %12d\n", s.Name, s.Length, s.Mapped, s.Unmapped)
		}
		return nil
	},
}

var countCmd = &cobra.Command{
	Use:   "count <input.bam>",
	Short: "Count aligned reads in a BAM file",
	Long: `Count the records of a BAM file that are not flagged unmapped.

This is the check callpeak uses to decide whether MACS2 runs at all.

Example:
  peakcall count sample.bam`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := bam.Utils{}.CountAlignedReads(args[0])
		if err != nil {
			return err
		}
		fmt.Println(n)
		return nil
	},
}

func init() {
	indexCmd.Flags().BoolVar(&showStats, "stats", false,
		"Print per-reference mapped/unmapped counts from the index")
}
