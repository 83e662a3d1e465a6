package node_test

import (
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/brunomcebola/argos/internal/camera"
	"github.com/brunomcebola/argos/internal/eventsocket"
	"github.com/brunomcebola/argos/internal/node"
)

func writeCameraFile(t *testing.T, dir, serial string) {
	t.Helper()
	cf := node.CameraFile{
		StreamConfigs: []camera.StreamConfig{
			{Kind: camera.KindColor, Format: camera.FormatRGB8, Resolution: camera.Resolution{Width: 640, Height: 480}, FPS: 30},
		},
	}
	data, err := yaml.Marshal(cf)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, serial+".yaml"), data, 0o644))
}

func writeGroupsFile(t *testing.T, dir string, groups map[string][]string) {
	t.Helper()
	data, err := yaml.Marshal(groups)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "groups.yaml"), data, 0o644))
}

func TestLoadGroups_RejectsSerialInTwoGroups(t *testing.T) {
	dir := t.TempDir()
	writeGroupsFile(t, dir, map[string][]string{
		"a": {"SN001"},
		"b": {"SN001"},
	})

	_, err := node.LoadGroups(filepath.Join(dir, "groups.yaml"))
	assert.Error(t, err)
}

func TestLoadGroups_MissingFileIsEmpty(t *testing.T) {
	dir := t.TempDir()
	g, err := node.LoadGroups(filepath.Join(dir, "groups.yaml"))
	require.NoError(t, err)
	assert.Empty(t, g)
}

func TestLoadCameraFile_RejectsBadAlignment(t *testing.T) {
	dir := t.TempDir()
	depth := camera.KindDepth
	cf := node.CameraFile{
		StreamConfigs: []camera.StreamConfig{
			{Kind: camera.KindColor, Format: camera.FormatRGB8, Resolution: camera.Resolution{Width: 640, Height: 480}, FPS: 30},
		},
		Alignment: &depth,
	}
	data, err := yaml.Marshal(cf)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "SN001.yaml"), data, 0o644))

	_, err = node.LoadCameraFile(dir, "SN001")
	assert.Error(t, err)
}

func TestManager_UnknownCameraStatus(t *testing.T) {
	hub := eventsocket.NewHub()
	m := node.NewManager("node-1", t.TempDir(), t.TempDir(), hub)

	known, _ := m.Status("SN999")
	assert.False(t, known)
}

func TestManager_RouterListsDeclaredCameras(t *testing.T) {
	dir := t.TempDir()
	writeGroupsFile(t, dir, map[string][]string{"g": {"SN001"}})
	writeCameraFile(t, dir, "SN001")

	hub := eventsocket.NewHub()
	m := node.NewManager("node-1", t.TempDir(), dir, hub)
	// Boot will fail to open SN001 against the real (unset) backend, but
	// the camera must still be listed as declared.
	_ = m.Boot()

	req := httptest.NewRequest("GET", "/cameras", nil)
	w := httptest.NewRecorder()
	m.Router().ServeHTTP(w, req)

	assert.Equal(t, 200, w.Code)
	assert.Contains(t, w.Body.String(), "SN001")
}
