package macs2

import (
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/biogo/external"
	"github.com/google/shlex"
)

// DefaultExecutable is the MACS2 binary looked up on PATH
const DefaultExecutable = "macs2"

// Callpeak is a MACS2 callpeak invocation.
//
//	<exe> callpeak <params> -t <bam> -n <name> [-c <bg>] --outdir <dir>
type Callpeak struct {
	Cmd        string   `buildarg:"{{if .}}{{.}}{{else}}macs2{{end}}"`
	Subcommand struct{} `buildarg:"callpeak"`

	// Params are translated options, see Options.Translate
	Params []string `buildarg:"{{range $i, $p := .}}{{if $i}}{{split}}{{end}}{{$p}}{{end}}"`

	Treatment string `buildarg:"-t{{split}}{{.}}"`
	Name      string `buildarg:"-n{{split}}{{.}}"`
	Control   string `buildarg:"{{if .}}-c{{split}}{{.}}{{end}}"`
	OutDir    string `buildarg:"--outdir{{split}}{{.}}"`
}

// ErrMissingRequired is returned when a Callpeak lacks its treatment,
// name or output directory.
var ErrMissingRequired = errors.New("macs2: missing required argument")

// Args returns the argument vector for c
func (c Callpeak) Args() ([]string, error) {
	if c.Treatment == "" || c.Name == "" || c.OutDir == "" {
		return nil, ErrMissingRequired
	}
	return external.Build(c)
}

// BuildCommand returns an exec.Cmd running c
func (c Callpeak) BuildCommand() (*exec.Cmd, error) {
	args, err := c.Args()
	if err != nil {
		return nil, err
	}
	return exec.Command(args[0], args[1:]...), nil
}

// CommandLine assembles the callpeak invocation as a single string.
// Arguments are not quoted; they are split again by Tokenize.
func CommandLine(exe string, params []string, bamPath, name, bgPath, outDir string) (string, error) {
	args, err := Callpeak{
		Cmd:       exe,
		Params:    params,
		Treatment: bamPath,
		Name:      name,
		Control:   bgPath,
		OutDir:    outDir,
	}.Args()
	if err != nil {
		return "", err
	}
	return strings.Join(args, " "), nil
}

// Tokenize splits a command line using shell quoting rules
func Tokenize(commandLine string) ([]string, error) {
	args, err := shlex.Split(commandLine)
	if err != nil {
		return nil, fmt.Errorf("failed to tokenize %q: %w", commandLine, err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("empty command line")
	}
	return args, nil
}

// OutputDir is the directory MACS2 is told to write into: the directory
// holding the treatment BAM.
func OutputDir(bamPath string) string {
	return filepath.Dir(bamPath)
}

// ToolOutputPath is where MACS2 writes the file for slot
func ToolOutputPath(outDir, name string, slot Slot) string {
	return filepath.Join(outDir, name+"_"+slot.Suffix())
}

// RunName derives the MACS2 experiment name from the treatment BAM path
func RunName(bamPath string) string {
	return strings.ReplaceAll(filepath.Base(bamPath), ".bam", "")
}
