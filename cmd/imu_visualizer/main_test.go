package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"

	"github.com/relabs-tech/imu_visualizer/internal/config"
)

func parse(t *testing.T, args ...string) (config.Config, error) {
	t.Helper()
	var f flags
	cmd := &cobra.Command{Use: "imu_visualizer"}
	bindFlags(cmd, &f)
	if err := cmd.ParseFlags(args); err != nil {
		t.Fatalf("ParseFlags(%v): %v", args, err)
	}
	return loadConfig(cmd, f)
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := parse(t)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg != config.Defaults() {
		t.Fatalf("cfg=%+v want defaults", cfg)
	}
}

func TestLoadConfig_FlagsOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "imu.yaml")
	yml := "serial_port: /dev/ttyACM0\nserial_baud_rate: 57600\nmax_points: 50\n"
	if err := os.WriteFile(path, []byte(yml), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := parse(t, "--config", path, "--port", "/dev/ttyUSB1", "--driver", "sim", "-v")
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.SerialPort != "/dev/ttyUSB1" {
		t.Fatalf("port=%q", cfg.SerialPort)
	}
	if cfg.SerialBaudRate != 57600 || cfg.MaxPoints != 50 {
		t.Fatalf("file values lost: baud=%d max_points=%d", cfg.SerialBaudRate, cfg.MaxPoints)
	}
	if cfg.SerialDriver != "sim" || !cfg.LogRaw {
		t.Fatalf("driver=%q log_raw=%v", cfg.SerialDriver, cfg.LogRaw)
	}
}

func TestLoadConfig_InvalidFlag(t *testing.T) {
	if _, err := parse(t, "--presenter", "tk"); err == nil {
		t.Fatalf("expected error for unknown presenter")
	}
	if _, err := parse(t, "--max-points", "0"); err == nil {
		t.Fatalf("expected error for zero history")
	}
}

func TestRootCmd_HasPortsSubcommand(t *testing.T) {
	cmd := newRootCmd()
	sub, _, err := cmd.Find([]string{"ports"})
	if err != nil || sub.Name() != "ports" {
		t.Fatalf("ports subcommand missing: %v", err)
	}
}
