package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/relabs-tech/imu_visualizer/internal/serialport"
)

func writeTempConfig(t *testing.T, name, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}
	return path
}

func TestDefaults_AreValid(t *testing.T) {
	cfg := Defaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error: %v", err)
	}
	if cfg.SerialPort != "COM8" || cfg.SerialBaudRate != 115200 || cfg.SerialReadTimeout != time.Second {
		t.Fatalf("serial defaults=%q/%d/%s", cfg.SerialPort, cfg.SerialBaudRate, cfg.SerialReadTimeout)
	}
	if cfg.MaxPoints != 200 || cfg.RenderInterval != 50*time.Millisecond || cfg.ShutdownTimeout != 2*time.Second {
		t.Fatalf("render defaults=%d/%s/%s", cfg.MaxPoints, cfg.RenderInterval, cfg.ShutdownTimeout)
	}
}

func TestLoad_KeyValue(t *testing.T) {
	path := writeTempConfig(t, "imu.cfg", `
# sensor on the bench
SERIAL_PORT=/dev/ttyUSB0
SERIAL_BAUD_RATE = 57600
SERIAL_READ_TIMEOUT_MS=250
POLL_INTERVAL_US=1000
MAX_POINTS=500
LOG_RAW=true
PRESENTER=both
AXIS_LENGTH=1.0
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.SerialPort != "/dev/ttyUSB0" || cfg.SerialBaudRate != 57600 {
		t.Fatalf("serial=%q/%d", cfg.SerialPort, cfg.SerialBaudRate)
	}
	if cfg.SerialReadTimeout != 250*time.Millisecond || cfg.PollInterval != time.Millisecond {
		t.Fatalf("timeouts=%s/%s", cfg.SerialReadTimeout, cfg.PollInterval)
	}
	if cfg.MaxPoints != 500 || !cfg.LogRaw || cfg.AxisLength != 1.0 {
		t.Fatalf("cfg=%+v", cfg)
	}
	if !cfg.WantsConsole() || !cfg.WantsWeb() {
		t.Fatalf("presenter both: console=%t web=%t", cfg.WantsConsole(), cfg.WantsWeb())
	}
	// Untouched keys keep their defaults.
	if cfg.RenderInterval != 50*time.Millisecond || cfg.SerialDriver != serialport.DriverBugst {
		t.Fatalf("defaults lost: %s %q", cfg.RenderInterval, cfg.SerialDriver)
	}
}

func TestLoad_KeyValueErrors(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"unknown key", "SERIAL_PORT=COM3\nMQTT_BROKER=x\n", `config line 2: unknown config key: "MQTT_BROKER"`},
		{"missing equals", "SERIAL_PORT\n", `invalid config line 1: "SERIAL_PORT"`},
		{"bad int", "MAX_POINTS=lots\n", `config line 1: invalid MAX_POINTS "lots"`},
		{"bad range", "MAX_POINTS=0\n", "MAX_POINTS must be > 0"},
		{"bad presenter", "PRESENTER=tk\n", `unknown PRESENTER "tk"`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeTempConfig(t, "imu.cfg", tc.body))
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("err=%v want containing %q", err, tc.want)
			}
		})
	}
}

func TestLoad_YAML(t *testing.T) {
	path := writeTempConfig(t, "imu.yaml", `
serial_port: /dev/ttyACM0
serial_driver: jacobsa
serial_read_timeout: 500ms
render_interval: 100ms
presenter: web
web_addr: 127.0.0.1:9090
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.SerialPort != "/dev/ttyACM0" || cfg.SerialDriver != serialport.DriverJacobsa {
		t.Fatalf("serial=%q/%q", cfg.SerialPort, cfg.SerialDriver)
	}
	if cfg.SerialReadTimeout != 500*time.Millisecond || cfg.RenderInterval != 100*time.Millisecond {
		t.Fatalf("durations=%s/%s", cfg.SerialReadTimeout, cfg.RenderInterval)
	}
	if cfg.WantsConsole() || !cfg.WantsWeb() || cfg.WebAddr != "127.0.0.1:9090" {
		t.Fatalf("presenter=%q addr=%q", cfg.Presenter, cfg.WebAddr)
	}
	if cfg.MaxPoints != 200 {
		t.Fatalf("max_points=%d want default 200", cfg.MaxPoints)
	}
}

func TestLoad_YAMLRejectsUnknownFields(t *testing.T) {
	_, err := Load(writeTempConfig(t, "imu.yml", "mqtt_broker: tcp://localhost:1883\n"))
	if err == nil || !strings.Contains(err.Error(), "invalid yaml config") {
		t.Fatalf("err=%v", err)
	}
}

func TestLoad_EmptyYAMLUsesDefaults(t *testing.T) {
	cfg, err := Load(writeTempConfig(t, "imu.yaml", ""))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg != Defaults() {
		t.Fatalf("cfg=%+v want defaults", cfg)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.cfg"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("err=%v want ErrNotExist", err)
	}
}

func TestValidate_Driver(t *testing.T) {
	cfg := Defaults()
	cfg.SerialDriver = "usb-magic"
	if err := cfg.Validate(); !errors.Is(err, serialport.ErrUnknownDriver) {
		t.Fatalf("err=%v want ErrUnknownDriver", err)
	}

	cfg = Defaults()
	cfg.SerialDriver = serialport.DriverSim
	cfg.SerialPort = ""
	if err := cfg.Validate(); err != nil {
		t.Fatalf("sim without port: %v", err)
	}
}

func TestSerialConfig(t *testing.T) {
	cfg := Defaults()
	sc := cfg.SerialConfig()
	if sc.Name != "COM8" || sc.BaudRate != 115200 || sc.ReadTimeout != time.Second || sc.Driver != "bugst" {
		t.Fatalf("serial config=%+v", sc)
	}
}

func TestLoad_SampleConfigMatchesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "configs", "imu_visualizer.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg != Defaults() {
		t.Fatalf("cfg=%+v want %+v", cfg, Defaults())
	}
}
