package cli

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/agrisense-lab/npkcal/internal/config"
	"github.com/agrisense-lab/npkcal/internal/core/storage"
	"github.com/fatih/color"
	"github.com/stretchr/testify/require"
)

const identityModelYAML = `columns: [sensor_N, sensor_P, sensor_K, sensor_PH, sensor_EC]
coefficients:
  - [1, 0, 0, 0, 0]
  - [0, 1, 0, 0, 0]
  - [0, 0, 1, 0, 0]
  - [0, 0, 0, 1, 0]
  - [0, 0, 0, 0, 1]
intercept: [1, 0.5, 0, 0, 10]
`

// writeConfig writes a memory-store config and its model file into a temp dir.
func writeConfig(t *testing.T, extra string) string {
	t.Helper()
	dir := t.TempDir()
	modelPath := filepath.Join(dir, "model.yaml")
	require.NoError(t, os.WriteFile(modelPath, []byte(identityModelYAML), 0o600))

	cfgPath := filepath.Join(dir, "npkcal.yaml")
	body := fmt.Sprintf("store:\n  driver: memory\nmodel:\n  type: linear\n  path: %s\n%s", modelPath, extra)
	require.NoError(t, os.WriteFile(cfgPath, []byte(body), 0o600))
	return cfgPath
}

func newTestApp(t *testing.T) *app {
	t.Helper()
	cfg, err := config.Load(writeConfig(t, ""))
	require.NoError(t, err)

	a, err := newApp(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(a.Close)
	return a
}

func reading(ts int64) storage.Document {
	return storage.Document{"N": 10, "P": 5, "K": 8, "pH": 6.0, "Conductivity": 300, "timestamp": ts, "sensorId": "sensor-1"}
}

func TestNewApp_MemoryStore(t *testing.T) {
	a := newTestApp(t)

	require.NotNil(t, a.store)
	require.NotNil(t, a.processor)
	require.NotNil(t, a.metricsH, "metrics are enabled by default")
	require.Nil(t, a.health, "memory store has no ping")
}

func TestNewApp_MissingModel(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, ""))
	require.NoError(t, err)
	cfg.Model.Path = filepath.Join(t.TempDir(), "absent.yaml")

	_, err = newApp(context.Background(), cfg)
	require.ErrorContains(t, err, "failed to load calibration model")
}

func TestLoadConfig(t *testing.T) {
	_, err := loadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.ErrorContains(t, err, "failed to load config file")

	// The default path is optional.
	dir := t.TempDir()
	modelPath := filepath.Join(dir, "model.yaml")
	require.NoError(t, os.WriteFile(modelPath, []byte(identityModelYAML), 0o600))
	t.Setenv("NPKCAL_MODEL__PATH", modelPath)
	t.Chdir(dir)

	cfg, err := loadConfig(defaultConfigPath)
	require.NoError(t, err)
	require.Equal(t, config.DriverMemory, cfg.Store.Driver)
}

func TestRunCalibrate(t *testing.T) {
	color.NoColor = true
	a := newTestApp(t)
	ctx := context.Background()
	raw := a.cfg.Worker.RawCollection

	require.NoError(t, a.store.Set(ctx, raw, "r1", reading(100)))
	require.NoError(t, a.store.Set(ctx, raw, "bad", storage.Document{"N": 10, "timestamp": 200}))

	var out bytes.Buffer
	err := runCalibrate(ctx, a, &out, []string{"r1", "r1", "bad", "missing"})
	require.ErrorContains(t, err, "2 of 4 readings not calibrated")

	require.Contains(t, out.String(), "r1: calibrated\n")
	require.Contains(t, out.String(), "r1: skipped_calibrated\n")
	require.Contains(t, out.String(), "bad: invalid")
	require.Contains(t, out.String(), "missing: not found in npk_readings\n")

	cal, err := a.store.Get(ctx, a.cfg.Worker.CalibratedCollection, "r1")
	require.NoError(t, err)
	require.Equal(t, 11.0, cal["calibrated_N"])
	require.Equal(t, 310.0, cal["calibrated_Conductivity"])
}

func TestRunBaseline(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()

	var out bytes.Buffer
	require.NoError(t, runBaseline(ctx, a, &out))
	require.Equal(t, "npk_readings is empty\n", out.String())

	require.NoError(t, a.store.Set(ctx, a.cfg.Worker.RawCollection, "r1", reading(100)))
	require.NoError(t, a.store.Set(ctx, a.cfg.Worker.RawCollection, "r2", reading(200)))

	out.Reset()
	require.NoError(t, runBaseline(ctx, a, &out))
	require.Contains(t, out.String(), "latest:     r2\n")
	require.Contains(t, out.String(), "timestamp:  200\n")
	require.Contains(t, out.String(), "sensor:     sensor-1\n")
	require.Contains(t, out.String(), "processed:  false\n")
}

func TestCalibrateRequiresIDs(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetArgs([]string{"calibrate"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})

	require.ErrorContains(t, cmd.Execute(), "requires at least 1 arg")
}

func TestServe_StartsAndShutsDown(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())

	cfg, err := config.Load(writeConfig(t, fmt.Sprintf("server:\n  host: 127.0.0.1\n  port: %d\n", port)))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serve(ctx, cfg) }()

	base := fmt.Sprintf("http://127.0.0.1:%d", port)
	require.Eventually(t, func() bool {
		resp, err := http.Get(base + "/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	for _, path := range []string{"/status", "/metrics", "/ready"} {
		resp, err := http.Get(base + path)
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode, path)
	}

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("serve did not return")
	}
}
