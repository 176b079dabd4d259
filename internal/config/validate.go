package config

import (
	"fmt"

	"github.com/nichlasrohde/ha-ecl-modbus/internal/catalog"
	"github.com/nichlasrohde/ha-ecl-modbus/internal/poll"
)

const (
	TransportSerial = "serial"
	TransportTCP    = "tcp"
)

// Validate checks configuration correctness against the register
// catalog. It performs declarative validation only and MUST NOT mutate
// the configuration.
func Validate(cfg *Config, cat *catalog.Catalog) error {
	c := cfg.Controller

	switch c.Transport {
	case TransportSerial:
		if c.Serial.Port == "" {
			return fmt.Errorf("config: serial transport selected but serial.port is empty")
		}
		switch c.Serial.Parity {
		case "", "E", "N", "O":
		default:
			return fmt.Errorf("config: serial.parity %q must be E, N or O", c.Serial.Parity)
		}
		if c.Serial.BaudRate < 0 {
			return fmt.Errorf("config: serial.baud_rate must be positive")
		}
		switch c.Serial.StopBits {
		case 0, 1, 2:
		default:
			return fmt.Errorf("config: serial.stop_bits %d must be 1 or 2", c.Serial.StopBits)
		}

	case TransportTCP:
		if c.TCP.Host == "" {
			return fmt.Errorf("config: tcp transport selected but tcp.host is empty")
		}
		if c.TCP.Port < 0 || c.TCP.Port > 65535 {
			return fmt.Errorf("config: tcp.port %d out of range", c.TCP.Port)
		}

	case "":
		return fmt.Errorf("config: transport is required (serial or tcp)")

	default:
		return fmt.Errorf("config: unknown transport %q", c.Transport)
	}

	if c.TimeoutMs < 0 {
		return fmt.Errorf("config: timeout_ms must be positive")
	}
	if c.Poll.IntervalS < 0 {
		return fmt.Errorf("config: poll.interval_s must be positive")
	}
	if c.Poll.MaxBatchRegisters > poll.MaxReadSpan {
		return fmt.Errorf("config: poll.max_batch_registers %d exceeds protocol limit %d",
			c.Poll.MaxBatchRegisters, poll.MaxReadSpan)
	}
	if c.Backoff.SeedMs < 0 || c.Backoff.CapMs < 0 {
		return fmt.Errorf("config: backoff delays must be positive")
	}
	if c.Backoff.SeedMs > 0 && c.Backoff.CapMs > 0 && c.Backoff.SeedMs > c.Backoff.CapMs {
		return fmt.Errorf("config: backoff.seed_ms %d exceeds backoff.cap_ms %d",
			c.Backoff.SeedMs, c.Backoff.CapMs)
	}

	seen := make(map[string]bool, len(c.Registers))
	for _, r := range c.Registers {
		if r.Key == "" {
			return fmt.Errorf("config: register override without a key")
		}
		if seen[r.Key] {
			return fmt.Errorf("config: duplicate register override %q", r.Key)
		}
		seen[r.Key] = true
		if _, err := cat.ByKey(r.Key); err != nil {
			return fmt.Errorf("config: register override %q: %w", r.Key, err)
		}
	}

	return nil
}
