package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/trajan/internal/config"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		clearConfigEnvVars()

		convey.Convey("When loading config with defaults only", func() {
			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldResemble, config.New())
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("TRAJAN_ADDR", ":8080")
			_ = os.Setenv("TRAJAN_WORKER_COUNT", "16")
			_ = os.Setenv("TRAJAN_COMPARE__ALPHA", "0.01")
			_ = os.Setenv("TRAJAN_ARCHETYPE__ENABLED", "true")
			_ = os.Setenv("TRAJAN_CLASSIFY__CATEGORIES", "CB,SS")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 16)
				convey.So(cfg.Compare.Alpha, convey.ShouldEqual, 0.01)
				convey.So(cfg.Archetype.Enabled, convey.ShouldBeTrue)
				convey.So(cfg.Classify.Categories, convey.ShouldResemble, []string{"CB", "SS"})
				convey.So(cfg.QueueSize, convey.ShouldEqual, 1024)
			})
		})

		convey.Convey("When loading config with a YAML file", func() {
			path := writeConfigFile(t, `
worker_count: 3
log_format: json
bins:
  boundaries: [0, 3, 15]
  labels: [short, long]
compare:
  yates: false
  hypotheses:
    - name: separation
      kind: means
      key: role
      cohorts: [PRIMARY, HELP]
      feature: distance_to_nearest_agent.last
      alternative: less
archetype:
  enabled: true
  k: 3
  distance: cosine
`)
			cfg, err := config.LoadFile(ctx, path)

			convey.Convey("Then file values replace the defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 3)
				convey.So(cfg.LogFormat, convey.ShouldEqual, "json")
				convey.So(cfg.Bins.Boundaries, convey.ShouldResemble, []float64{0, 3, 15})
				convey.So(cfg.Bins.Labels, convey.ShouldResemble, []string{"short", "long"})
				convey.So(cfg.Compare.Yates, convey.ShouldBeFalse)
				convey.So(cfg.Compare.Hypotheses, convey.ShouldHaveLength, 1)
				convey.So(cfg.Compare.Hypotheses[0].Alternative, convey.ShouldEqual, "less")
				convey.So(cfg.Archetype.K, convey.ShouldEqual, 3)
				convey.So(cfg.Archetype.Seed, convey.ShouldEqual, uint64(42))
			})
		})

		convey.Convey("When both file and environment variables are set", func() {
			path := writeConfigFile(t, "worker_count: 3\naddr: \":7000\"\n")
			_ = os.Setenv("TRAJAN_CONFIG", path)
			_ = os.Setenv("TRAJAN_WORKER_COUNT", "5")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then environment variables win", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 5)
				convey.So(cfg.Addr, convey.ShouldEqual, ":7000")
			})
		})

		convey.Convey("When the file does not exist", func() {
			_, err := config.LoadFile(ctx, filepath.Join(t.TempDir(), "missing.yaml"))

			convey.Convey("Then loading fails", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the layered result is invalid", func() {
			_ = os.Setenv("TRAJAN_COMPARE__ALPHA", "2")
			defer clearConfigEnvVars()

			_, err := config.Load(ctx)

			convey.Convey("Then validation fails", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})
	})
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "trajan.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func clearConfigEnvVars() {
	for _, key := range []string{
		"TRAJAN_CONFIG",
		"TRAJAN_ADDR",
		"TRAJAN_WORKER_COUNT",
		"TRAJAN_COMPARE__ALPHA",
		"TRAJAN_ARCHETYPE__ENABLED",
		"TRAJAN_CLASSIFY__CATEGORIES",
	} {
		_ = os.Unsetenv(key)
	}
}
