package macs2

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/scttfrdmn/peakcall-go/pkg/storage"
)

// fakeAligner reports a fixed read count and records index requests
type fakeAligner struct {
	reads    int64
	countErr error
	indexed  []string
}

func (a *fakeAligner) Index(bamPath, baiPath string) error {
	a.indexed = append(a.indexed, bamPath+" "+baiPath)
	return nil
}

func (a *fakeAligner) CountAlignedReads(string) (int64, error) {
	return a.reads, a.countErr
}

// fakeRunner stands in for MACS2: it records the arguments and writes the
// configured files into the --outdir directory.
type fakeRunner struct {
	calls    [][]string
	produce  map[string][]byte // suffix -> content
	exitCode int
	err      error
}

func (r *fakeRunner) Run(_ context.Context, args []string) (*ExecResult, error) {
	r.calls = append(r.calls, args)
	if r.err != nil {
		return nil, r.err
	}

	var outDir, name string
	for i := 0; i < len(args)-1; i++ {
		switch args[i] {
		case "--outdir":
			outDir = args[i+1]
		case "-n":
			name = args[i+1]
		}
	}
	if outDir == "" || name == "" {
		return nil, errors.New("fakeRunner: missing -n or --outdir")
	}
	for suffix, content := range r.produce {
		if err := os.WriteFile(filepath.Join(outDir, name+"_"+suffix), content, 0644); err != nil {
			return nil, err
		}
	}
	return &ExecResult{ExitCode: r.exitCode, Stderr: []byte("fake stderr")}, nil
}

// recordLogger captures log lines per level
type recordLogger struct {
	mu     sync.Mutex
	info   []string
	errors []string
	debug  []string
}

func (l *recordLogger) Printf(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.info = append(l.info, fmt.Sprintf(format, args...))
}

func (l *recordLogger) Errorf(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, fmt.Sprintf(format, args...))
}

func (l *recordLogger) Debugf(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.debug = append(l.debug, fmt.Sprintf(format, args...))
}

// workspace lays out a BAM directory and four destinations under a temp dir
type workspace struct {
	dir     string
	bam     string
	outputs Outputs
}

func newWorkspace(t *testing.T) *workspace {
	t.Helper()
	dir := t.TempDir()
	bamDir := filepath.Join(dir, "aln")
	require.NoError(t, os.MkdirAll(bamDir, 0755))

	bam := filepath.Join(bamDir, "sample.bam")
	require.NoError(t, os.WriteFile(bam, []byte("not really a bam"), 0644))

	outDir := filepath.Join(dir, "out")
	return &workspace{
		dir: dir,
		bam: bam,
		outputs: Outputs{
			NarrowPeak: filepath.Join(outDir, "sample.narrowPeak"),
			Summits:    filepath.Join(outDir, "sample.summits.bed"),
			BroadPeak:  filepath.Join(outDir, "sample.broadPeak"),
			GappedPeak: filepath.Join(outDir, "sample.gappedPeak"),
		},
	}
}

func (w *workspace) caller(runner Runner, aligner Aligner, logger Logger) *PeakCaller {
	return NewPeakCaller(runner, aligner, storage.NewRouter(context.Background()), logger)
}

func fileSize(t *testing.T, path string) (int64, bool) {
	t.Helper()
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return 0, false
	}
	require.NoError(t, err)
	return info.Size(), true
}

func repeat(b byte, n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = b
	}
	return out
}
