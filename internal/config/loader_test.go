package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/racetier/internal/config"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		clearConfigEnvVars()

		convey.Convey("When loading config with defaults only", func() {
			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
				convey.So(cfg.Tier1Min, convey.ShouldEqual, 80)
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("RACETIER_ADDR", ":8080")
			_ = os.Setenv("RACETIER_QUEUE_SIZE", "64")
			_ = os.Setenv("RACETIER_WORKER_COUNT", "3")
			_ = os.Setenv("RACETIER_SEVERE_DEVIATION", "6")
			_ = os.Setenv("RACETIER_P5_TIER1_FLOOR", "78")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.QueueSize, convey.ShouldEqual, 64)
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 3)
				convey.So(cfg.SevereDeviation, convey.ShouldEqual, 6)
				convey.So(cfg.P5Tier1Floor, convey.ShouldEqual, 78)

				p, err := cfg.Policy()
				convey.So(err, convey.ShouldBeNil)
				convey.So(p.P5Tier1Floor, convey.ShouldEqual, 78)
			})
		})

		convey.Convey("When loading config with a YAML file and env on top", func() {
			path := writeConfigFile(t, `
# policy for the 2026 season
addr: ":9090"
tier1_min: 82
dimension_weights:
  prestige: 2
  race_quality: 2
`)
			_ = os.Setenv("RACETIER_CONFIG", path)
			_ = os.Setenv("RACETIER_ADDR", ":7070")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then env wins over the file and the file over defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":7070")
				convey.So(cfg.Tier1Min, convey.ShouldEqual, 82)
				convey.So(cfg.DimensionWeights, convey.ShouldResemble, map[string]int{"prestige": 2, "race_quality": 2})
			})
		})

		convey.Convey("When the config file does not exist", func() {
			_ = os.Setenv("RACETIER_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then a load error is returned", func() {
				convey.So(cfg, convey.ShouldBeNil)
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the file empties addr", func() {
			path := writeConfigFile(t, "addr: \"\"\n")
			_ = os.Setenv("RACETIER_CONFIG", path)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then validation fails", func() {
				convey.So(cfg, convey.ShouldBeNil)
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "addr must not be empty")
			})
		})
	})
}

func TestLoadFile(t *testing.T) {
	convey.Convey("Given a policy file and a conflicting env var", t, func() {
		path := writeConfigFile(t, "silent_tolerance: 3\nsevere_deviation: 8\n")
		_ = os.Setenv("RACETIER_SILENT_TOLERANCE", "1")
		defer clearConfigEnvVars()

		cfg, err := config.LoadFile(context.Background(), path)

		convey.Convey("Then only the file is applied", func() {
			convey.So(err, convey.ShouldBeNil)
			convey.So(cfg.SilentTolerance, convey.ShouldEqual, 3)
			convey.So(cfg.SevereDeviation, convey.ShouldEqual, 8)
			p, err := cfg.Policy()
			convey.So(err, convey.ShouldBeNil)
			convey.So(p.SevereDeviation, convey.ShouldEqual, 8)
		})
	})
}

func clearConfigEnvVars() {
	for _, envVar := range []string{
		"RACETIER_CONFIG",
		"RACETIER_ADDR",
		"RACETIER_QUEUE_SIZE",
		"RACETIER_WORKER_COUNT",
		"RACETIER_SEVERE_DEVIATION",
		"RACETIER_SILENT_TOLERANCE",
		"RACETIER_P5_TIER1_FLOOR",
	} {
		_ = os.Unsetenv(envVar)
	}
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "racetier.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}
