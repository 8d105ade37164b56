package field

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the injected configuration for a batch run. Class-group tables
// and thresholds always arrive through this value; components never read
// process-wide state.
type Config struct {
	ClassGroups map[string][]int `yaml:"classGroups"`
	Filter      FilterConfig     `yaml:"filter"`
	Extract     ExtractConfig    `yaml:"extract"`
	Bands       BandConfig       `yaml:"bands"`
	Workers     int              `yaml:"workers,omitempty"`
	MQTT        *MQTTConfig      `yaml:"mqtt,omitempty"`
}

// FilterConfig holds the AttributeFilter thresholds. Area bounds are in
// hectares, inclusive at both ends.
type FilterConfig struct {
	AreaMinHa     float64 `yaml:"areaMinHa"`
	AreaMaxHa     float64 `yaml:"areaMaxHa"`
	OverlapMinPct float64 `yaml:"overlapMinPct"`
	ClassGroup    string  `yaml:"classGroup"`
}

// ExtractConfig holds extraction-time settings. MinAreaM2 discards tiny
// tracing fragments before they ever reach the catalog; it is in square
// meters because it applies in the tile's native projected CRS.
type ExtractConfig struct {
	MinAreaM2 float64 `yaml:"minAreaM2"`
}

// BandConfig names the reflectance band file suffixes used by the texture
// analyzer, e.g. red "B04" and near-infrared "B08" for Sentinel-2 style
// tile directories.
type BandConfig struct {
	Red string `yaml:"red"`
	NIR string `yaml:"nir"`
}

// MQTTConfig enables the optional stage-event publisher. Publishing is
// disabled entirely when no broker is configured.
type MQTTConfig struct {
	Broker      string `yaml:"broker"`
	TopicPrefix string `yaml:"topicPrefix,omitempty"`
	ClientID    string `yaml:"clientId,omitempty"`
	Username    string `yaml:"username,omitempty"`
	Password    string `yaml:"password,omitempty"`
}

// DefaultConfig returns the configuration used when no file is supplied:
// the MapBiomas class groups and the field-size thresholds of the original
// Campo Verde campaign.
func DefaultConfig() *Config {
	return &Config{
		ClassGroups: map[string][]int{
			"agricultura":     {18, 19, 39, 20, 40, 62, 41, 36, 46, 47, 35, 48},
			"pastagem":        {15},
			"floresta":        {1, 3, 4, 5, 6, 49},
			"silvicultura":    {9},
			"area_urbanizada": {24},
			"corpos_dagua":    {26, 33, 31},
		},
		Filter: FilterConfig{
			AreaMinHa:     15.0,
			AreaMaxHa:     200.0,
			OverlapMinPct: 80.0,
			ClassGroup:    "agricultura",
		},
		Extract: ExtractConfig{MinAreaM2: 100.0},
		Bands:   BandConfig{Red: "B04", NIR: "B08"},
	}
}

// LoadConfig loads and validates a YAML configuration file. Missing
// optional sections fall back to the defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	if len(c.ClassGroups) == 0 {
		return fmt.Errorf("classGroups must define at least one group")
	}
	for name, codes := range c.ClassGroups {
		if len(codes) == 0 {
			return fmt.Errorf("classGroups.%s is empty", name)
		}
	}
	if c.Filter.ClassGroup != "" {
		if _, ok := c.ClassGroups[c.Filter.ClassGroup]; !ok {
			return fmt.Errorf("filter.classGroup %q is not defined in classGroups", c.Filter.ClassGroup)
		}
	}
	if c.Bands.Red == "" || c.Bands.NIR == "" {
		return fmt.Errorf("bands.red and bands.nir are required")
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must be >= 0")
	}
	if c.MQTT != nil && c.MQTT.Broker == "" {
		return fmt.Errorf("mqtt.broker is required when the mqtt section is present")
	}
	return nil
}

// Group looks up a class group by name.
func (c *Config) Group(name string) (ClassGroup, error) {
	codes, ok := c.ClassGroups[name]
	if !ok {
		return ClassGroup{}, fmt.Errorf("unknown class group %q", name)
	}
	return NewClassGroup(name, codes), nil
}

// Criteria builds the FilterCriteria from the filter section, resolving
// the configured class group against the table.
func (c *Config) Criteria() (FilterCriteria, error) {
	group, err := c.Group(c.Filter.ClassGroup)
	if err != nil {
		return FilterCriteria{}, err
	}
	crit := FilterCriteria{
		AreaMinHa:     c.Filter.AreaMinHa,
		AreaMaxHa:     c.Filter.AreaMaxHa,
		OverlapMinPct: c.Filter.OverlapMinPct,
		Group:         group,
	}
	if err := crit.Validate(); err != nil {
		return FilterCriteria{}, err
	}
	return crit, nil
}
