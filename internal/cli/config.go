package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// defaultConfigName is looked up in the working directory when --config is
// not given. A missing default file is not an error.
const defaultConfigName = "casket.yaml"

// Config is the optional YAML config file. Flags set explicitly on the
// command line always win over file values.
type Config struct {
	Root        string `yaml:"root"`
	Journal     string `yaml:"journal"`
	KeepScratch bool   `yaml:"keep_scratch"`
}

// applyConfig loads the config file and fills in options the user did not
// set via flags.
func (o *RootOptions) applyConfig(cmd *cobra.Command) error {
	path := o.ConfigPath
	required := path != ""
	if path == "" {
		path = defaultConfigName
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !required {
			return nil
		}
		return fmt.Errorf("read config %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	flags := cmd.Flags()
	if cfg.Root != "" && !flags.Changed("root") {
		o.Root = cfg.Root
	}
	if cfg.Journal != "" && !flags.Changed("journal") {
		o.Journal = cfg.Journal
	}
	if cfg.KeepScratch && !flags.Changed("keep-scratch") {
		o.KeepScratch = true
	}
	return nil
}
