package tuning

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"bazaarcraft/internal/market"
)

// Tuning is the operator-editable configuration file. Anything omitted
// falls back to the market defaults.
type Tuning struct {
	MaxShopsPerOwner   int `yaml:"max_shops_per_owner"`
	MaxListingsPerShop int `yaml:"max_listings_per_shop"`

	LowStockThreshold     int     `yaml:"low_stock_threshold"`
	MinNotifyValue        float64 `yaml:"min_notify_value"`
	NotifyIntervalSeconds int     `yaml:"notify_interval_seconds"`

	// Catalog of resolvable worlds and item keys. Empty lists accept
	// anything; populated lists gate persistence loading.
	Worlds []string `yaml:"worlds"`
	Items  []string `yaml:"items"`

	Territories []TerritoryRegion `yaml:"territories"`
}

type TerritoryRegion struct {
	Name  string `yaml:"name"`
	World string `yaml:"world"`
	MinX  int    `yaml:"min_x"`
	MinZ  int    `yaml:"min_z"`
	MaxX  int    `yaml:"max_x"`
	MaxZ  int    `yaml:"max_z"`

	TransactionTax float64  `yaml:"transaction_tax"`
	ShopTax        float64  `yaml:"shop_tax"`
	Treasury       string   `yaml:"treasury"` // agent uuid receiving tax
	Members        []string `yaml:"members"`
}

func Load(path string) (Tuning, error) {
	var t Tuning
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func Defaults() Tuning {
	return Tuning{}
}

// MarketConfig translates the file into the core's config.
func (t Tuning) MarketConfig() market.Config {
	return market.Config{
		MaxShopsPerOwner:   t.MaxShopsPerOwner,
		MaxListingsPerShop: t.MaxListingsPerShop,
		LowStockThreshold:  t.LowStockThreshold,
		MinNotifyValue:     t.MinNotifyValue,
		NotifyInterval:     time.Duration(t.NotifyIntervalSeconds) * time.Second,
	}
}
