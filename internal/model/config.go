package model

import (
	"io"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/encoding/yaml"

	_ "embed"
)

// Enum values mirrored from the CUE schema.
const (
	StdinNone = "none"
	StdinText = "text"
	StdinFile = "file"

	SinkInherit = "inherit"
	SinkDiscard = "discard"
	SinkCapture = "capture"
	SinkFile    = "file"

	LogJSON = "json"
	LogText = "text"
)

//go:embed config.cue
var cueSource []byte

var (
	cueCtx *cue.Context
	schema cue.Value
)

func init() {
	if len(cueSource) == 0 {
		panic("variable cueSource is empty")
	}
	cueCtx = cuecontext.New()
	compiled := cueCtx.CompileBytes(cueSource)
	if compiled.Err() != nil {
		panic(compiled.Err())
	}

	if err := compiled.Validate(); err != nil {
		panic(err)
	}

	schema = compiled.LookupPath(cue.ParsePath("#Config"))
	if schema.Err() != nil {
		panic(schema.Err())
	}
	if err := schema.Validate(); err != nil {
		panic(err)
	}
}

type Config struct {
	Version int           `json:"version" yaml:"version"` // fixed 0 for now
	Command CommandConfig `json:"command" yaml:"command"`
	Stdin   *StdinConfig  `json:"stdin,omitempty" yaml:"stdin,omitempty"`
	Stdout  *SinkConfig   `json:"stdout,omitempty" yaml:"stdout,omitempty"`
	Stderr  *SinkConfig   `json:"stderr,omitempty" yaml:"stderr,omitempty"`
	Service Service       `json:"service,omitempty" yaml:"service,omitempty"`
}

// CommandConfig names the program to execute and how to run it. Grace
// is a Go duration string, charset an IANA encoding name; both are
// parsed by the human types when the invocation is built.
type CommandConfig struct {
	Path     string            `json:"path" yaml:"path"`
	Args     []string          `json:"args,omitempty" yaml:"args,omitempty"`
	Env      map[string]string `json:"env,omitempty" yaml:"env,omitempty"`
	Dir      string            `json:"dir,omitempty" yaml:"dir,omitempty"`
	Charset  string            `json:"charset,omitempty" yaml:"charset,omitempty"`
	Grace    string            `json:"grace,omitempty" yaml:"grace,omitempty"`
	Forceful *bool             `json:"forceful,omitempty" yaml:"forceful,omitempty"`
}

// StdinConfig selects the input source, discriminated by From.
type StdinConfig struct {
	From string `json:"from" yaml:"from"`                 // "none" | "text" | "file"
	Text string `json:"text,omitempty" yaml:"text,omitempty"` // required when From == "text"
	Path string `json:"path,omitempty" yaml:"path,omitempty"` // required when From == "file"
}

// SinkConfig selects an output destination, discriminated by To.
type SinkConfig struct {
	To     string `json:"to" yaml:"to"`                       // "inherit" | "discard" | "capture" | "file"
	Path   string `json:"path,omitempty" yaml:"path,omitempty"`     // required when To == "file"
	Append bool   `json:"append,omitempty" yaml:"append,omitempty"` // file sink only
}

// Service configures the outer shell: logging, strictness, scheduling
// and result delivery.
type Service struct {
	Verbose  bool      `json:"verbose,omitempty" yaml:"verbose,omitempty"`
	Log      string    `json:"log,omitempty" yaml:"log,omitempty"` // "json" | "text"
	Strict   bool      `json:"strict,omitempty" yaml:"strict,omitempty"`
	Dir      string    `json:"dir,omitempty" yaml:"dir,omitempty"` // delivery directory
	Schedule *Schedule `json:"schedule,omitempty" yaml:"schedule,omitempty"`
	Report   *Report   `json:"report,omitempty" yaml:"report,omitempty"`
}

// Schedule drives serve mode, either a cron expression or a plain
// interval. Cron wins when both are set.
type Schedule struct {
	Cron  string `json:"cron,omitempty" yaml:"cron,omitempty"`
	Every string `json:"every,omitempty" yaml:"every,omitempty"`
}

// Report publishes captured output over HTTP.
type Report struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	URL     string `json:"url,omitempty" yaml:"url,omitempty"`
	Token   string `json:"token,omitempty" yaml:"token,omitempty"`
}

// DefaultConfig is stored on the first start when no configuration file
// exists yet. Both outputs are captured, which demonstrates the merged
// chronological stream.
func DefaultConfig() Config {
	return Config{
		Version: 0,
		Command: CommandConfig{
			Path: "echo",
			Args: []string{"hello from piper"},
		},
		Stdout:  &SinkConfig{To: SinkCapture},
		Stderr:  &SinkConfig{To: SinkCapture},
		Service: Service{Log: LogJSON},
	}
}

// LoadConfig validates YAML from r against the CUE schema and decodes
// it into Config.
func LoadConfig(r io.Reader) (*Config, error) {
	yamlFile, err := yaml.Extract("config.yaml", r)
	if err != nil {
		return nil, err
	}
	yamlValue := cueCtx.BuildFile(yamlFile)

	unified := schema.Unify(yamlValue)
	if err := unified.Validate(
		cue.All(),          // all constraints
		cue.Concrete(true), // no incomplete values
	); err != nil {
		return nil, err
	}

	var out Config
	if err := unified.Decode(&out); err != nil {
		return nil, err
	}

	return &out, nil
}
