package config

import "time"

const (
	defaultIdentity     = "default"
	defaultEntryPoint   = "continueJob"
	defaultDelay        = 5 * time.Minute
	defaultMaxRuntime   = 5 * time.Minute
	defaultPollInterval = 10 * time.Second
	defaultLogLevel     = "info"
	defaultServiceName  = "runstash"
)

// ApplyDefaults fills every unset field with its default. Keys have no
// default: the job must name the state it restores.
func (c *Config) ApplyDefaults() {
	if c.Identity == "" {
		c.Identity = defaultIdentity
	}
	if c.Store.Driver == "" {
		c.Store.Driver = DriverSQLite
	}
	if c.Host.PollInterval == 0 {
		c.Host.PollInterval = defaultPollInterval
	}
	if c.Resume.EntryPoint == "" {
		c.Resume.EntryPoint = defaultEntryPoint
	}
	if c.Resume.Delay == 0 {
		c.Resume.Delay = defaultDelay
	}
	if c.Resume.MaxRuntime == 0 {
		c.Resume.MaxRuntime = defaultMaxRuntime
	}
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = defaultServiceName
	}
	if c.Log.Level == "" {
		c.Log.Level = defaultLogLevel
	}
}
