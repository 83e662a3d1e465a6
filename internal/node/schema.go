package node

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/brunomcebola/argos/internal/camera"
)

func cameraFilePath(dir, serial string) (string, error) {
	if serial == "" || strings.ContainsAny(serial, "/\\") {
		return "", fmt.Errorf("node: invalid camera serial %q", serial)
	}
	return filepath.Join(dir, serial+".yaml"), nil
}

// GroupsFile is the decoded form of <base_dir>/cameras/groups.yaml: a map
// of group name to the (unique) serials belonging to it.
type GroupsFile map[string][]string

// CameraFile is the decoded form of <base_dir>/cameras/<serial>.yaml.
type CameraFile struct {
	StreamConfigs []camera.StreamConfig `yaml:"stream_configs"`
	Alignment     *camera.Kind          `yaml:"alignment"`
}

// LoadGroups reads and validates groups.yaml: every serial must be unique
// across the whole file (a serial belongs to at most one group).
func LoadGroups(path string) (GroupsFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return GroupsFile{}, nil
		}
		return nil, fmt.Errorf("node: read groups.yaml: %w", err)
	}

	var g GroupsFile
	if err := yaml.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("node: parse groups.yaml: %w", err)
	}

	seen := make(map[string]string)
	for group, serials := range g {
		local := make(map[string]bool)
		for _, s := range serials {
			if local[s] {
				return nil, fmt.Errorf("node: group %q lists serial %q more than once", group, s)
			}
			local[s] = true
			if owner, ok := seen[s]; ok {
				return nil, fmt.Errorf("node: serial %q declared in both %q and %q", s, owner, group)
			}
			seen[s] = group
		}
	}
	return g, nil
}

// LoadCameraFile reads and validates <base_dir>/cameras/<serial>.yaml.
func LoadCameraFile(dir, serial string) (CameraFile, error) {
	path, err := cameraFilePath(dir, serial)
	if err != nil {
		return CameraFile{}, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return CameraFile{}, fmt.Errorf("node: read %s.yaml: %w", serial, err)
	}

	var cf CameraFile
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return CameraFile{}, fmt.Errorf("node: parse %s.yaml: %w", serial, err)
	}

	if err := camera.ValidateStreamConfigs(cf.StreamConfigs); err != nil {
		return CameraFile{}, err
	}
	if err := camera.ValidateAlignment(cf.Alignment, cf.StreamConfigs); err != nil {
		return CameraFile{}, err
	}

	return cf, nil
}

// SaveCameraFile persists cf to <base_dir>/cameras/<serial>.yaml, whole-file
// rewrite.
func SaveCameraFile(dir, serial string, cf CameraFile) error {
	path, err := cameraFilePath(dir, serial)
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(cf)
	if err != nil {
		return fmt.Errorf("node: marshal %s.yaml: %w", serial, err)
	}
	return os.WriteFile(path, data, 0o640)
}
