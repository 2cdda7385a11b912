// Package profile loads named invocation profiles from a profiles
// file, a lighter surface than the schema-validated main config. A
// profile is addressed by its dotted key, for example build.lint.
package profile

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/CZERTAINLY/Piper/internal/invoke"
)

type Profile struct {
	Command struct {
		Path    string            `mapstructure:"path"`
		Args    []string          `mapstructure:"args"`
		Env     map[string]string `mapstructure:"env"`
		Dir     string            `mapstructure:"dir"`
		Timeout time.Duration     `mapstructure:"timeout"`
	} `mapstructure:"command"`
	Strict bool `mapstructure:"strict"`
}

// Load reads the profile stored under key in the given file.
func Load(path, key string) (Profile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, fmt.Errorf("reading profiles: %w", err)
	}

	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(raw)); err != nil {
		return Profile{}, fmt.Errorf("reading profiles: %w", err)
	}

	var p Profile
	if err := v.UnmarshalKey(key, &p); err != nil {
		return Profile{}, fmt.Errorf("parsing profile %s: %w", key, err)
	}
	if p.Command.Path == "" {
		return Profile{}, fmt.Errorf("profile %s: no command path", key)
	}

	// viper folds every map key to lower case while loading. For env
	// names the author's spelling matters, so the env block is decoded
	// again from the raw document.
	env, err := exactEnv(raw, key)
	if err != nil {
		return Profile{}, fmt.Errorf("parsing profile %s: %w", key, err)
	}
	if len(env) > 0 {
		p.Command.Env = env
	}
	return p, nil
}

// exactEnv walks the raw profiles document down to the env mapping of
// the addressed profile and decodes it with the key case as written.
func exactEnv(raw []byte, key string) (map[string]string, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	if len(doc.Content) == 0 {
		return nil, nil
	}

	node := doc.Content[0]
	for _, part := range append(strings.Split(key, "."), "command", "env") {
		node = mappingValue(node, part)
		if node == nil {
			return nil, nil
		}
	}

	var env map[string]string
	if err := node.Decode(&env); err != nil {
		return nil, err
	}
	return env, nil
}

// mappingValue finds the value of a mapping entry, matching the key
// case-insensitively the same way viper resolves lookups.
func mappingValue(node *yaml.Node, key string) *yaml.Node {
	if node.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if strings.EqualFold(node.Content[i].Value, key) {
			return node.Content[i+1]
		}
	}
	return nil
}

// Request turns the profile into an invocation request with both
// outputs captured. Env values starting with $ are expanded from the
// parent environment.
func (p Profile) Request() invoke.Request {
	env := make(map[string]string, len(p.Command.Env))
	for k, v := range p.Command.Env {
		if strings.HasPrefix(v, "$") {
			v = os.ExpandEnv(v)
		}
		env[k] = v
	}
	return invoke.Request{
		Path:   p.Command.Path,
		Args:   p.Command.Args,
		Env:    env,
		Dir:    p.Command.Dir,
		Stdout: invoke.Capture{},
		Stderr: invoke.Capture{},
	}
}
