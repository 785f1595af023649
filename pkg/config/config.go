/*
 Licensed under the Apache License, Version 2.0 (the "License");
 you may not use this file except in compliance with the License.
 You may obtain a copy of the License at

     https://www.apache.org/licenses/LICENSE-2.0

 Unless required by applicable law or agreed to in writing, software
 distributed under the License is distributed on an "AS IS" BASIS,
 WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 See the License for the specific language governing permissions and
 limitations under the License.
*/

package config

import (
	"io/ioutil"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v2"
)

// CaptureConfig holds everything needed to open a frame source (C1).
type CaptureConfig struct {
	// Interface is a device name, an IPv4 dotted-quad matching an
	// address on an interface, or the interface's friendly display
	// name, case-insensitively. Empty means "first interface with at
	// least one address".
	Interface string `yaml:"interface"`
	// Companion toggles whether the BPF filter is widened to also
	// capture the companion-app TCP lane.
	Companion bool `yaml:"companion"`
	SnapLen   int  `yaml:"snap_len"`
}

// DiagConfig configures the optional diagnostic sink (§6).
type DiagConfig struct {
	Dir       string `yaml:"dir"`
	SampleCap int    `yaml:"sample_cap"`
}

type Config struct {
	LogLevel string         `yaml:"log_level"`
	Capture  *CaptureConfig `yaml:"capture"`
	Diag     *DiagConfig    `yaml:"diag"`
	filepath string
}

func (c *Config) Persist(overwrite bool) error {
	if _, err := os.Stat(c.filepath); err == nil && !overwrite {
		return ErrConfigFileExists{Path: c.filepath}
	}

	data, err := yaml.Marshal(&c)
	if err != nil {
		return err
	}

	dir := filepath.Dir(c.filepath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	return ioutil.WriteFile(c.filepath, data, 0644)
}

// Load reads the config file if present; a missing file is not an error,
// the default config stands.
func (c *Config) Load() error {
	data, err := ioutil.ReadFile(c.filepath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return yaml.Unmarshal(data, c)
}

func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = ""
	}
	return filepath.Join(home, ConfigDir, ConfigFile)
}

func NewDefaultConfig() *Config {
	return &Config{
		LogLevel: DefaultLogLevel,
		Capture: &CaptureConfig{
			Interface: DefaultInterface,
			Companion: DefaultCompanion,
			SnapLen:   DefaultSnapLen,
		},
		Diag: &DiagConfig{
			Dir:       DefaultDiagDir,
			SampleCap: DefaultDiagSampleCap,
		},
		filepath: DefaultConfigPath(),
	}
}
