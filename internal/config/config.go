package config

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/relabs-tech/imu_visualizer/internal/serialport"
)

// Presenter names accepted by PRESENTER.
const (
	PresenterConsole = "console"
	PresenterWeb     = "web"
	PresenterBoth    = "both"
	PresenterNone    = "none"
)

// Config holds all application configuration values.
type Config struct {
	// Serial link
	SerialPort        string        `yaml:"serial_port"`
	SerialBaudRate    int           `yaml:"serial_baud_rate"`
	SerialReadTimeout time.Duration `yaml:"serial_read_timeout"`
	SerialDriver      string        `yaml:"serial_driver"` // "bugst", "jacobsa" or "sim"
	SimRateHz         int           `yaml:"sim_rate_hz"`

	// Acquisition
	PollInterval time.Duration `yaml:"poll_interval"` // pause after an empty read
	LogRaw       bool          `yaml:"log_raw"`

	// History and rendering
	MaxPoints       int           `yaml:"max_points"`
	RenderInterval  time.Duration `yaml:"render_interval"`
	AxisLength      float64       `yaml:"axis_length"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// Presentation
	Presenter      string        `yaml:"presenter"` // "console", "web", "both" or "none"
	WebAddr        string        `yaml:"web_addr"`
	ConsoleRefresh time.Duration `yaml:"console_refresh"`
}

// Defaults returns the configuration used when no file is given.
func Defaults() Config {
	return Config{
		SerialPort:        "COM8",
		SerialBaudRate:    serialport.DefaultBaudRate,
		SerialReadTimeout: serialport.DefaultReadTimeout,
		SerialDriver:      serialport.DriverBugst,
		SimRateHz:         serialport.DefaultSimRateHz,
		PollInterval:      500 * time.Microsecond,
		MaxPoints:         200,
		RenderInterval:    50 * time.Millisecond,
		AxisLength:        0.8,
		ShutdownTimeout:   2 * time.Second,
		Presenter:         PresenterConsole,
		WebAddr:           "127.0.0.1:8080",
		ConsoleRefresh:    250 * time.Millisecond,
	}
}

// Load reads the configuration file on top of Defaults. Files ending in
// .yaml or .yml are YAML; anything else uses KEY=VALUE lines.
func Load(configPath string) (Config, error) {
	b, err := os.ReadFile(configPath)
	if err != nil {
		return Config{}, fmt.Errorf("failed to open config file: %w", err)
	}

	cfg := Defaults()
	switch strings.ToLower(filepath.Ext(configPath)) {
	case ".yaml", ".yml":
		err = cfg.decodeYAML(b)
	default:
		err = cfg.decodeKeyValue(bytes.NewReader(b))
	}
	if err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) decodeYAML(b []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("invalid yaml config: %w", err)
	}
	return nil
}

func (c *Config) decodeKeyValue(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return fmt.Errorf("invalid config line %d: %q", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if err := c.setValue(key, value); err != nil {
			return fmt.Errorf("config line %d: %w", lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}
	return nil
}

func parseInt(key, value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return n, nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	switch key {
	// Serial
	case "SERIAL_PORT":
		c.SerialPort = value
	case "SERIAL_BAUD_RATE":
		n, err := parseInt(key, value)
		if err != nil {
			return err
		}
		c.SerialBaudRate = n
	case "SERIAL_READ_TIMEOUT_MS":
		n, err := parseInt(key, value)
		if err != nil {
			return err
		}
		c.SerialReadTimeout = time.Duration(n) * time.Millisecond
	case "SERIAL_DRIVER":
		c.SerialDriver = value
	case "SIM_RATE_HZ":
		n, err := parseInt(key, value)
		if err != nil {
			return err
		}
		c.SimRateHz = n

	// Acquisition
	case "POLL_INTERVAL_US":
		n, err := parseInt(key, value)
		if err != nil {
			return err
		}
		c.PollInterval = time.Duration(n) * time.Microsecond
	case "LOG_RAW":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid LOG_RAW %q: %w", value, err)
		}
		c.LogRaw = b

	// Rendering
	case "MAX_POINTS":
		n, err := parseInt(key, value)
		if err != nil {
			return err
		}
		c.MaxPoints = n
	case "RENDER_INTERVAL_MS":
		n, err := parseInt(key, value)
		if err != nil {
			return err
		}
		c.RenderInterval = time.Duration(n) * time.Millisecond
	case "AXIS_LENGTH":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid AXIS_LENGTH %q: %w", value, err)
		}
		c.AxisLength = f
	case "SHUTDOWN_TIMEOUT_MS":
		n, err := parseInt(key, value)
		if err != nil {
			return err
		}
		c.ShutdownTimeout = time.Duration(n) * time.Millisecond

	// Presentation
	case "PRESENTER":
		c.Presenter = value
	case "WEB_ADDR":
		c.WebAddr = value
	case "CONSOLE_REFRESH_MS":
		n, err := parseInt(key, value)
		if err != nil {
			return err
		}
		c.ConsoleRefresh = time.Duration(n) * time.Millisecond

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return nil
}

// Validate checks that every field holds a usable value.
func (c Config) Validate() error {
	if c.SerialPort == "" && c.SerialDriver != serialport.DriverSim {
		return fmt.Errorf("SERIAL_PORT is required")
	}
	if c.SerialBaudRate <= 0 {
		return fmt.Errorf("SERIAL_BAUD_RATE must be > 0")
	}
	if c.SerialReadTimeout <= 0 {
		return fmt.Errorf("SERIAL_READ_TIMEOUT_MS must be > 0")
	}
	switch c.SerialDriver {
	case serialport.DriverBugst, serialport.DriverJacobsa, serialport.DriverSim:
	default:
		return fmt.Errorf("SERIAL_DRIVER %q: %w", c.SerialDriver, serialport.ErrUnknownDriver)
	}
	if c.SimRateHz <= 0 {
		return fmt.Errorf("SIM_RATE_HZ must be > 0")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("POLL_INTERVAL_US must be > 0")
	}
	if c.MaxPoints <= 0 {
		return fmt.Errorf("MAX_POINTS must be > 0")
	}
	if c.RenderInterval <= 0 {
		return fmt.Errorf("RENDER_INTERVAL_MS must be > 0")
	}
	if c.AxisLength <= 0 {
		return fmt.Errorf("AXIS_LENGTH must be > 0")
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("SHUTDOWN_TIMEOUT_MS must be > 0")
	}
	switch c.Presenter {
	case PresenterConsole, PresenterWeb, PresenterBoth, PresenterNone:
	default:
		return fmt.Errorf("unknown PRESENTER %q", c.Presenter)
	}
	if (c.Presenter == PresenterWeb || c.Presenter == PresenterBoth) && c.WebAddr == "" {
		return fmt.Errorf("WEB_ADDR is required for presenter %q", c.Presenter)
	}
	if c.ConsoleRefresh <= 0 {
		return fmt.Errorf("CONSOLE_REFRESH_MS must be > 0")
	}
	return nil
}

// SerialConfig is the serial link part of the configuration.
func (c Config) SerialConfig() serialport.Config {
	return serialport.Config{
		Name:        c.SerialPort,
		BaudRate:    c.SerialBaudRate,
		ReadTimeout: c.SerialReadTimeout,
		Driver:      c.SerialDriver,
		SimRateHz:   c.SimRateHz,
	}
}

// WantsConsole reports whether the terminal dashboard should run.
func (c Config) WantsConsole() bool {
	return c.Presenter == PresenterConsole || c.Presenter == PresenterBoth
}

// WantsWeb reports whether the browser view should run.
func (c Config) WantsWeb() bool {
	return c.Presenter == PresenterWeb || c.Presenter == PresenterBoth
}
