package market

import "time"

// Config carries the operational knobs of the market core. Zero values are
// filled in by applyDefaults the way the host's tuning file left them.
type Config struct {
	MaxShopsPerOwner   int
	MaxListingsPerShop int

	LowStockThreshold int
	MinNotifyValue    float64
	NotifyInterval    time.Duration
}

func (c *Config) applyDefaults() {
	if c.MaxShopsPerOwner <= 0 {
		c.MaxShopsPerOwner = 5
	}
	if c.MaxListingsPerShop <= 0 {
		c.MaxListingsPerShop = 30
	}
	if c.LowStockThreshold < 0 {
		c.LowStockThreshold = 0
	}
	if c.NotifyInterval <= 0 {
		c.NotifyInterval = 30 * time.Second
	}
}

// Defaults returns a fully-populated config.
func Defaults() Config {
	var c Config
	c.applyDefaults()
	return c
}
