package suite

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config defines one suite execution.
type Config struct {
	// Parallel is the number of configuration groups run concurrently.
	Parallel int `yaml:"parallel"`
	// Timeout bounds the whole run; zero means no bound.
	Timeout time.Duration `yaml:"timeout,omitempty"`
	// FailFast stops scheduling new groups after the first failure.
	FailFast bool `yaml:"fail_fast"`
	// Verbose enables detailed output.
	Verbose bool `yaml:"verbose"`
	// Debug enables debug logging.
	Debug bool `yaml:"debug"`
	// ToolPath is the binary under test.
	ToolPath string `yaml:"tool_path"`
	// ProbePath is the probe entrypoint handed to the tool.
	ProbePath string `yaml:"probe_path"`
	// Kubeconfig overrides the default kubeconfig resolution.
	Kubeconfig string `yaml:"kubeconfig,omitempty"`
	// ReportPath is where the JSON suite report is written.
	ReportPath string `yaml:"report_path,omitempty"`
	// Methods restricts the matrix to the named methods.
	Methods []string `yaml:"methods,omitempty"`
	// Operations restricts the matrix to the named operations.
	Operations []string `yaml:"operations,omitempty"`
}

// DefaultConfig returns the configuration used when no file or flags
// override it.
func DefaultConfig() Config {
	return Config{
		Parallel:  1,
		Timeout:   30 * time.Minute,
		ToolPath:  "telepresence",
		ProbePath: "probe/probe_endtoend.py",
	}
}

// LoadConfig reads a YAML config file over the defaults.
func LoadConfig(path string) (Config, error) {
	config := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return config, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return config, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return config, nil
}
