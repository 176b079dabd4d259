package config

// Controller defaults. The serial line settings mirror the ECL's
// factory configuration (8E1 at 38400 baud, unit 5).
const (
	DefaultBaudRate   = 38400
	DefaultParity     = "E"
	DefaultStopBits   = 1
	DefaultTCPPort    = 502
	DefaultUnitID     = 5
	DefaultTimeoutMs  = 2000
	DefaultIntervalS  = 30
	DefaultMaxBatch   = 125
	DefaultBackoffSeed = 1000
	DefaultBackoffCap = 60000
)

// Normalize fills defaults. It is allowed to mutate configuration and
// MUST be called only after Validate().
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}
	c := &cfg.Controller

	if c.Serial.BaudRate == 0 {
		c.Serial.BaudRate = DefaultBaudRate
	}
	if c.Serial.Parity == "" {
		c.Serial.Parity = DefaultParity
	}
	if c.Serial.StopBits == 0 {
		c.Serial.StopBits = DefaultStopBits
	}
	if c.TCP.Port == 0 {
		c.TCP.Port = DefaultTCPPort
	}
	if c.UnitID == 0 {
		c.UnitID = DefaultUnitID
	}
	if c.TimeoutMs == 0 {
		c.TimeoutMs = DefaultTimeoutMs
	}
	if c.Poll.IntervalS == 0 {
		c.Poll.IntervalS = DefaultIntervalS
	}
	if c.Poll.MaxBatchRegisters == 0 {
		c.Poll.MaxBatchRegisters = DefaultMaxBatch
	}
	if c.Backoff.SeedMs == 0 {
		c.Backoff.SeedMs = DefaultBackoffSeed
	}
	if c.Backoff.CapMs == 0 {
		c.Backoff.CapMs = DefaultBackoffCap
	}
}
