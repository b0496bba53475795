package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
logging:
  level: debug
  console: true
engine:
  workers: 3
  failure_log_every: 2s
frames:
  enabled: true
  interval: 16ms
  fan_out: 4
  items: 256
background:
  enabled: true
  jobs:
    - name: compact
      schedule: "@every 30s"
      kind: sleep
      duration: 5ms
`

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestLoadYAML(t *testing.T) {
	t.Parallel()
	m := NewConfigManager(writeFile(t, "jobsys.yaml", sampleYAML))
	cfg, err := m.Load()
	require.NoError(t, err)

	want := &Config{
		Logging: LoggingConfig{Level: "debug", Console: true},
		Engine:  EngineConfig{Workers: 3, FailureLogEvery: "2s"},
		Frames:  FramesConfig{Enabled: true, Interval: "16ms", FanOut: 4, Items: 256},
		Background: BackgroundConfig{Enabled: true, Jobs: []BackgroundJob{
			{Name: "compact", Schedule: "@every 30s", Kind: "sleep", Duration: "5ms"},
		}},
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Fatalf("config mismatch (-want +got):\n%s", diff)
	}
	require.Same(t, cfg, m.Get())
}

func TestDecodeRejectsUnknownAndTrailing(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		path string
		body string
	}{
		{name: "unknown json field", path: "c.json", body: `{"engine":{"workerz":2}}`},
		{name: "trailing json", path: "c.json", body: `{} {}`},
		{name: "unknown yaml field", path: "c.yml", body: "frames:\n  fps: 60\n"},
		{name: "bad yaml", path: "c.yaml", body: "engine: [\n"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := Decode(tt.path, []byte(tt.body)); err == nil {
				t.Fatalf("Decode(%s) succeeded, want error", tt.body)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "zero value", mutate: func(*Config) {}},
		{name: "negative workers", mutate: func(c *Config) { c.Engine.Workers = -1 }, wantErr: true},
		{name: "bad duration", mutate: func(c *Config) { c.Frames.Interval = "soon" }, wantErr: true},
		{name: "bad level", mutate: func(c *Config) { c.Logging.Level = "loud" }, wantErr: true},
		{name: "bad timezone", mutate: func(c *Config) { c.Background.Timezone = "Mars/Olympus" }, wantErr: true},
		{name: "unknown kind", mutate: func(c *Config) {
			c.Background.Jobs = []BackgroundJob{{Name: "a", Schedule: "1m", Kind: "dance"}}
		}, wantErr: true},
		{name: "duplicate job", mutate: func(c *Config) {
			c.Background.Jobs = []BackgroundJob{{Name: "a", Schedule: "1m", Kind: "sleep"}, {Name: "a", Schedule: "1m", Kind: "stats"}}
		}, wantErr: true},
		{name: "valid job", mutate: func(c *Config) {
			c.Background.Jobs = []BackgroundJob{{Name: "a", Schedule: "1m", Kind: "Parallel", Items: 10, Duration: "1us"}}
		}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := &Config{}
			tt.mutate(c)
			err := c.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSummarizeConfigChange(t *testing.T) {
	t.Parallel()
	oldCfg := &Config{
		Engine:     EngineConfig{Workers: 2},
		Pprof:      PprofConfig{Token: "a"},
		Background: BackgroundConfig{Jobs: []BackgroundJob{{Name: "x", Kind: "sleep"}, {Name: "y", Kind: "stats"}}},
	}
	newCfg := &Config{
		Engine:     EngineConfig{Workers: 4},
		Pprof:      PprofConfig{Token: "b"},
		Background: BackgroundConfig{Jobs: []BackgroundJob{{Name: "x", Kind: "stats"}, {Name: "z", Kind: "stats"}}},
	}
	changed, _ := SummarizeConfigChange(oldCfg, newCfg)
	// A rotated token alone is not reported.
	require.Equal(t, []string{"background", "engine"}, changed)
	require.Equal(t, []string{"x", "y", "z"}, diffBackgroundJobs(oldCfg.Background.Jobs, newCfg.Background.Jobs))

	changed, _ = SummarizeConfigChange(newCfg, newCfg)
	require.Empty(t, changed)
}

func TestWatchPublishesValidChanges(t *testing.T) {
	t.Parallel()
	path := writeFile(t, "jobsys.json", `{"engine":{"workers":1}}`)
	m := NewConfigManager(path)
	m.SetDebounce(10 * time.Millisecond)
	_, err := m.Load()
	require.NoError(t, err)

	sub := m.Subscribe(4)
	defer m.Unsubscribe(sub)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = m.Watch(ctx)
	}()
	// Let the watcher register before writing.
	time.Sleep(100 * time.Millisecond)

	// Invalid config is rejected and not published.
	require.NoError(t, os.WriteFile(path, []byte(`{"engine":{"workers":-1}}`), 0o600))
	time.Sleep(150 * time.Millisecond)
	require.Equal(t, 1, m.Get().Engine.Workers)

	require.NoError(t, os.WriteFile(path, []byte(`{"engine":{"workers":5}}`), 0o600))
	select {
	case cfg := <-sub:
		require.Equal(t, 5, cfg.Engine.Workers)
	case <-time.After(5 * time.Second):
		t.Fatal("no config published")
	}
	cancel()
	<-done
}

func TestExampleConfigIsValid(t *testing.T) {
	t.Parallel()
	m := NewConfigManager(filepath.Join("..", "..", "config.example.yaml"))
	cfg, err := m.Load()
	require.NoError(t, err)
	require.Len(t, cfg.Background.Jobs, 3)
	require.Equal(t, "127.0.0.1:6060", cfg.Pprof.Addr)
}
