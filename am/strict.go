package am

import (
	"encoding/json"
	"sort"

	"github.com/BurntSushi/toml"
	gotoml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/teranos/promanage/errors"
)

// UnknownKeys decodes configPath strictly into Config and returns the keys
// that matched no field, typically typos such as "base_capacty".
func UnknownKeys(configPath string) ([]string, error) {
	var cfg Config
	md, err := toml.DecodeFile(configPath, &cfg)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to decode %s", configPath)
	}

	var unknown []string
	for _, k := range md.Undecoded() {
		unknown = append(unknown, k.String())
	}
	sort.Strings(unknown)
	return unknown, nil
}

// Render encodes cfg as toml, json or yaml
func Render(cfg *Config, format string) ([]byte, error) {
	switch format {
	case "", "toml":
		return gotoml.Marshal(cfg)
	case "json":
		return json.MarshalIndent(cfg, "", "  ")
	case "yaml", "yml":
		return yaml.Marshal(cfg)
	default:
		return nil, errors.NewInvalidRequestError("unknown format %q (want toml, json or yaml)", format)
	}
}
