package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// defaultModels are always selectable, independent of the remote catalog.
var defaultModels = []string{
	"qwen/qwen3-235b-a22b-2507",
	"qwen/qwen3-235b-a22b-thinking-2507",
	"deepseek/deepseek-chat-v3-0324",
	"moonshotai/kimi-k2",
}

// modelListFile holds user-added models next to the config file.
type modelListFile struct {
	Models []string `yaml:"models"`
}

func modelListPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "fusion-chat", "models.yaml"), nil
}

// LoadModelList returns the default models plus any user-added ones,
// de-duplicated in order. A missing models.yaml is not an error.
func LoadModelList() ([]string, error) {
	models := append([]string(nil), defaultModels...)

	path, err := modelListPath()
	if err != nil {
		return models, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return models, nil
		}
		return nil, fmt.Errorf("read model list: %w", err)
	}

	var custom modelListFile
	if err := yaml.Unmarshal(data, &custom); err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}

	seen := make(map[string]bool, len(models))
	for _, m := range models {
		seen[m] = true
	}
	for _, m := range custom.Models {
		m = strings.TrimSpace(m)
		if m == "" || seen[m] {
			continue
		}
		seen[m] = true
		models = append(models, m)
	}
	return models, nil
}

// AddModel appends a model to the user list file.
func AddModel(model string) error {
	path, err := modelListPath()
	if err != nil {
		return err
	}

	var custom modelListFile
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &custom); err != nil {
			return fmt.Errorf("parse %s: %w", filepath.Base(path), err)
		}
	}

	for _, m := range custom.Models {
		if m == model {
			return nil
		}
	}
	custom.Models = append(custom.Models, model)

	out, err := yaml.Marshal(custom)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, out, 0644)
}
