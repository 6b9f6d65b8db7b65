package settings

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const _folderConfigFile = ".analyzerd.yaml"

// folderConfig is the on-disk shape of a folder's analyzer configuration.
type folderConfig struct {
	Settings        map[string]string `yaml:"settings"`
	SelectedSetting string            `yaml:"selectedSetting"`
}

// FileGetter reads per-folder configuration from a YAML file inside the
// workspace folder. A missing file yields empty settings rather than an
// error, since most folders carry no analyzer configuration.
type FileGetter struct{}

// NewFileGetter returns a Getter backed by on-disk folder configuration.
func NewFileGetter() FileGetter {
	return FileGetter{}
}

// FolderSettings returns the folder's current analyzer settings.
func (FileGetter) FolderSettings(folder string) (map[string]string, error) {
	cfg, err := readFolderConfig(folder)
	if err != nil {
		return nil, err
	}
	if cfg.Settings == nil {
		return map[string]string{}, nil
	}
	return cfg.Settings, nil
}

// SelectedSetting returns the name of the folder's selected configuration.
func (FileGetter) SelectedSetting(folder string) (string, error) {
	cfg, err := readFolderConfig(folder)
	if err != nil {
		return "", err
	}
	return cfg.SelectedSetting, nil
}

func readFolderConfig(folder string) (folderConfig, error) {
	var cfg folderConfig
	if folder == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(filepath.Join(folder, _folderConfigFile))
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("reading folder config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing folder config: %w", err)
	}
	return cfg, nil
}
