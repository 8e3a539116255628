package macs2

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/biogo/external"
	"gopkg.in/yaml.v3"
)

// ErrUnknownOption is returned by Set for keys outside the recognized vocabulary
var ErrUnknownOption = errors.New("macs2: unknown option")

// Options are the callpeak settings understood by the wrapper. String
// fields are passed to MACS2 verbatim when set; bool fields are
// presence-only flags. Field order is the order arguments are emitted in.
type Options struct {
	GSize       string `yaml:"gsize" buildarg:"{{if .}}--gsize{{split}}{{.}}{{end}}"`
	TSize       string `yaml:"tsize" buildarg:"{{if .}}--tsize{{split}}{{.}}{{end}}"`
	BW          string `yaml:"bw" buildarg:"{{if .}}--bw{{split}}{{.}}{{end}}"`
	QValue      string `yaml:"qvalue" buildarg:"{{if .}}--qvalue{{split}}{{.}}{{end}}"`
	PValue      string `yaml:"pvalue" buildarg:"{{if .}}--pvalue{{split}}{{.}}{{end}}"`
	MFold       string `yaml:"mfold" buildarg:"{{if .}}--mfold{{split}}{{.}}{{end}}"`
	NoLambda    bool   `yaml:"nolambda" buildarg:"{{if .}}--nolambda{{end}}"`
	SLocal      string `yaml:"slocal" buildarg:"{{if .}}--slocal{{split}}{{.}}{{end}}"`
	LLocal      string `yaml:"llocal" buildarg:"{{if .}}--llocal{{split}}{{.}}{{end}}"`
	FixBimodal  bool   `yaml:"fix-bimodal" buildarg:"{{if .}}--fix-bimodal{{end}}"`
	NoModel     bool   `yaml:"nomodel" buildarg:"{{if .}}--nomodel{{end}}"`
	ExtSize     string `yaml:"extsize" buildarg:"{{if .}}--extsize{{split}}{{.}}{{end}}"`
	Shift       string `yaml:"shift" buildarg:"{{if .}}--shift{{split}}{{.}}{{end}}"`
	KeepDup     string `yaml:"keep-dup" buildarg:"{{if .}}--keep-dup{{split}}{{.}}{{end}}"`
	Broad       bool   `yaml:"broad" buildarg:"{{if .}}--broad{{end}}"`
	BroadCutoff string `yaml:"broad-cutoff" buildarg:"{{if .}}--broad-cutoff{{split}}{{.}}{{end}}"`
	ToLarge     bool   `yaml:"to-large" buildarg:"{{if .}}--to-large{{end}}"`
	DownSample  bool   `yaml:"down-sample" buildarg:"{{if .}}--down-sample{{end}}"`
	Bdg         string `yaml:"bdg" buildarg:"{{if .}}--bdg{{split}}{{.}}{{end}}"`
	CallSummits string `yaml:"call-summits" buildarg:"{{if .}}--call-summits{{split}}{{.}}{{end}}"`
}

// optionField maps a parameter key to its Options field
type optionField struct {
	key   string
	index int
	flag  bool
}

var optionFields = func() []optionField {
	t := reflect.TypeOf(Options{})
	fields := make([]optionField, t.NumField())
	for i := range fields {
		f := t.Field(i)
		fields[i] = optionField{
			key:   f.Tag.Get("yaml"),
			index: i,
			flag:  f.Type.Kind() == reflect.Bool,
		}
	}
	return fields
}()

func lookupOption(key string) (optionField, bool) {
	for _, f := range optionFields {
		if f.key == key {
			return f, true
		}
	}
	return optionField{}, false
}

// DefaultOptions returns the settings used when none are configured:
// model building is disabled.
func DefaultOptions() Options {
	return Options{NoModel: true}
}

// BuildCommand returns a callpeak command carrying only the options in o.
// It satisfies external.CommandBuilder.
func (o Options) BuildCommand() (*exec.Cmd, error) {
	args, err := external.Build(o)
	if err != nil {
		return nil, err
	}
	return exec.Command(DefaultExecutable, append([]string{"callpeak"}, args...)...), nil
}

// Translate converts the options to callpeak arguments in field order
// regardless of how the options were populated.
func (o Options) Translate() []string {
	return external.Must(external.Build(o))
}

// Set assigns a single option by key.
//
// A flag is turned on by an empty value and otherwise takes a boolean.
// Value-bearing options require a non-empty value. Keys outside the
// recognized vocabulary return ErrUnknownOption.
func (o *Options) Set(key, value string) error {
	f, ok := lookupOption(key)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownOption, key)
	}
	field := reflect.ValueOf(o).Elem().Field(f.index)

	if f.flag {
		on := true
		if value != "" {
			var err error
			if on, err = strconv.ParseBool(value); err != nil {
				return fmt.Errorf("option %s: invalid flag value %q", key, value)
			}
		}
		field.SetBool(on)
		return nil
	}

	if value == "" {
		return fmt.Errorf("option %s: missing value", key)
	}
	field.SetString(value)
	return nil
}

// ParseOptions builds Options from a generic key/value mapping on top of
// base. Unrecognized keys are skipped; their names are returned so callers
// may report them. A recognized key with an unusable value is an error.
func ParseOptions(base Options, m map[string]string) (Options, []string, error) {
	opts := base
	var ignored []string
	for _, k := range sortedKeys(m) {
		err := opts.Set(k, m[k])
		switch {
		case errors.Is(err, ErrUnknownOption):
			ignored = append(ignored, k)
		case err != nil:
			return base, nil, err
		}
	}
	return opts, ignored, nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Keys returns the recognized option keys in emission order
func Keys() []string {
	keys := make([]string, len(optionFields))
	for i, f := range optionFields {
		keys[i] = f.key
	}
	return keys
}

// LoadOptions reads a YAML parameter file over base. Unknown keys are ignored.
func LoadOptions(path string, base Options) (Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return base, fmt.Errorf("failed to read parameter file: %w", err)
	}
	return DecodeOptions(data, base)
}

// DecodeOptions parses YAML parameters over base.
//
// A flag key written without a value (`broad:`) turns the flag on. Scalars
// given for value-bearing keys are passed on as written.
func DecodeOptions(data []byte, base Options) (Options, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return base, nil
	}

	var doc map[string]*yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return base, fmt.Errorf("invalid parameter file: %w", err)
	}

	opts := base
	for _, f := range optionFields {
		node, ok := doc[f.key]
		if !ok {
			continue
		}
		value, err := scalarValue(f.key, node)
		if err != nil {
			return base, fmt.Errorf("invalid parameter file: %w", err)
		}
		if err := opts.Set(f.key, value); err != nil {
			return base, fmt.Errorf("invalid parameter file: %w", err)
		}
	}
	return opts, nil
}

// scalarValue returns the text of a scalar node; null yields ""
func scalarValue(key string, node *yaml.Node) (string, error) {
	if node == nil || node.Tag == "!!null" {
		return "", nil
	}
	if node.Kind != yaml.ScalarNode {
		return "", fmt.Errorf("option %s: expected a scalar (line %d)", key, node.Line)
	}
	return strings.TrimSpace(node.Value), nil
}
