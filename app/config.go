package app

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"

	"hearth/drivers/lapic"
	"hearth/kernel"
	"hearth/kernel/klog"
)

// Optional drivers, in boot order.
const (
	DriverURandom = "urandom"
	DriverTTY     = "tty"
	DriverPS2     = "ps2kbd"
	DriverUART    = "uart"
	DriverSpeaker = "speaker"
)

var allDrivers = []string{DriverURandom, DriverTTY, DriverPS2, DriverUART, DriverSpeaker}

// Config is the boot configuration.
type Config struct {
	LogLevel klog.Level `yaml:"log_level"`

	Timer struct {
		Period time.Duration `yaml:"period"`
		BusHz  uint64        `yaml:"bus_hz"`
	} `yaml:"timer"`

	// Drivers lists the optional drivers to bring up. Empty means all of
	// them. The timer is always brought up.
	Drivers []string `yaml:"drivers,omitempty"`

	Intervals struct {
		Keyboard  time.Duration `yaml:"keyboard"`
		Serial    time.Duration `yaml:"serial"`
		Console   time.Duration `yaml:"console"`
		Heartbeat time.Duration `yaml:"heartbeat"`
		Monitor   time.Duration `yaml:"monitor"`
	} `yaml:"intervals"`

	Monitor struct {
		Prompt string `yaml:"prompt"`
		// SerialEcho sends typed characters back over the UART. The console
		// always echoes.
		SerialEcho bool `yaml:"serial_echo"`
		// Boot commands run once before the first prompt.
		Boot []string `yaml:"boot,omitempty"`
	} `yaml:"monitor"`

	// Serial is the host port backing COM1; empty uses stdin and stdout.
	Serial string `yaml:"serial,omitempty"`
}

// DefaultConfig returns the configuration used without a file.
func DefaultConfig() Config {
	var c Config
	c.LogLevel = klog.LevelInfo
	c.Timer.Period = lapic.DefaultPeriod
	c.Timer.BusHz = lapic.DefaultBusHz
	c.Intervals.Console = 16 * time.Millisecond
	c.Intervals.Heartbeat = 10 * time.Second
	c.Monitor.Prompt = "hearth> "
	return c
}

// LoadConfig reads a YAML file over the defaults. Unknown keys are errors.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	if err := ParseConfig(b, &cfg); err != nil {
		return cfg, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// ParseConfig decodes b into cfg and validates the result.
func ParseConfig(b []byte, cfg *Config) error {
	if err := yaml.UnmarshalStrict(b, cfg); err != nil {
		return err
	}
	return cfg.Validate()
}

func (c *Config) Validate() error {
	if c.Timer.BusHz == 0 {
		return fmt.Errorf("timer bus_hz is zero: %w", kernel.ErrInvalidArgument)
	}
	if err := lapic.CheckPeriod(c.Timer.Period, c.Timer.BusHz); err != nil {
		return err
	}
	for _, name := range c.Drivers {
		if !known(name) {
			return fmt.Errorf("unknown driver %q: %w", name, kernel.ErrInvalidArgument)
		}
	}
	for _, d := range []time.Duration{
		c.Intervals.Keyboard, c.Intervals.Serial, c.Intervals.Console,
		c.Intervals.Heartbeat, c.Intervals.Monitor,
	} {
		if d < 0 {
			return fmt.Errorf("negative interval %v: %w", d, kernel.ErrInvalidArgument)
		}
	}
	return nil
}

// Enabled reports whether the optional driver name should be brought up.
func (c *Config) Enabled(name string) bool {
	if len(c.Drivers) == 0 {
		return true
	}
	for _, n := range c.Drivers {
		if n == name {
			return true
		}
	}
	return false
}

func known(name string) bool {
	for _, n := range allDrivers {
		if n == name {
			return true
		}
	}
	return false
}
