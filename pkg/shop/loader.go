package shop

import (
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// LoadCatalog reads a shop catalog from a JSON configuration file.
// Shop and machine order in the file is preserved: it is the deterministic
// tie-break order used by the scheduler.
func LoadCatalog(path string) (*Catalog, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "shop: read catalog %s", path)
	}

	var cat Catalog
	if err := v.Unmarshal(&cat); err != nil {
		return nil, errors.Wrapf(err, "shop: parse catalog %s", path)
	}
	if err := validateCatalog(&cat); err != nil {
		return nil, errors.Wrapf(err, "shop: invalid catalog %s", path)
	}
	return &cat, nil
}

// LoadTables reads material and fastener tables from a JSON configuration
// file, overlaying the built-in defaults so partial tables are fine.
func LoadTables(path string) (*Tables, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "shop: read tables %s", path)
	}

	var loaded Tables
	if err := v.Unmarshal(&loaded); err != nil {
		return nil, errors.Wrapf(err, "shop: parse tables %s", path)
	}

	t := DefaultTables()
	for name, m := range loaded.Materials {
		t.Materials[name] = m
	}
	for name, f := range loaded.Fasteners {
		t.Fasteners[name] = f
	}
	return t, nil
}

func validateCatalog(c *Catalog) error {
	if len(c.Shops) == 0 {
		return errors.New("no shops defined")
	}
	seenShops := make(map[string]bool)
	for _, s := range c.Shops {
		if s.Name == "" {
			return errors.New("shop with empty name")
		}
		if seenShops[s.Name] {
			return errors.Errorf("duplicate shop name %q", s.Name)
		}
		seenShops[s.Name] = true

		seenMachines := make(map[string]bool)
		for _, m := range s.Machines {
			if m.Name == "" {
				return errors.Errorf("shop %q: machine with empty name", s.Name)
			}
			if seenMachines[m.Name] {
				return errors.Errorf("shop %q: duplicate machine name %q", s.Name, m.Name)
			}
			seenMachines[m.Name] = true
			for tn, b := range m.Library {
				if b == nil || b.Name == "" {
					return errors.Errorf("shop %q machine %q: tool %d has no name", s.Name, m.Name, tn)
				}
				if b.Diameter <= 0 {
					return errors.Errorf("shop %q machine %q: bit %q has non-positive diameter", s.Name, m.Name, b.Name)
				}
			}
		}
	}
	return nil
}
