package shop

// ---------------------------------------------------------------------------
// Static lookup tables: materials and fasteners
// ---------------------------------------------------------------------------

// Material carries the machining-relevant properties of a stock material.
// Advisory for geometry; load-bearing for feeds and speeds.
type Material struct {
	Name        string  `json:"name" mapstructure:"name"`
	Density     float64 `json:"density" mapstructure:"density"`           // kg/m³
	SpeedFactor float64 `json:"speed_factor" mapstructure:"speed_factor"` // multiplier on surface speed
	ChipLoad    float64 `json:"chip_load" mapstructure:"chip_load"`       // mm per flute per revolution
	Cooling     bool    `json:"cooling" mapstructure:"cooling"`           // whether cutting needs coolant
}

// Fastener is a fastener template. A drill-group operation over fastener
// instances expands into holes using these diameters.
type Fastener struct {
	Name            string  `json:"name" mapstructure:"name"`
	ShankDiameter   float64 `json:"shank_diameter" mapstructure:"shank_diameter"`     // mm
	PilotDiameter   float64 `json:"pilot_diameter" mapstructure:"pilot_diameter"`     // mm, hole in the held part
	HeadDiameter    float64 `json:"head_diameter" mapstructure:"head_diameter"`       // mm
	CountersinkDeep float64 `json:"countersink_deep" mapstructure:"countersink_deep"` // mm, 0 = no countersink
	Length          float64 `json:"length" mapstructure:"length"`                     // mm
}

// Tables bundles the static lookup tables consumed by the scheduler and the
// drill-group expansion.
type Tables struct {
	Materials map[string]Material `json:"materials" mapstructure:"materials"`
	Fasteners map[string]Fastener `json:"fasteners" mapstructure:"fasteners"`
}

// DefaultTables returns a small built-in table set so library callers can
// build without external configuration files.
func DefaultTables() *Tables {
	return &Tables{
		Materials: map[string]Material{
			"plywood": {Name: "plywood", Density: 600, SpeedFactor: 1.0, ChipLoad: 0.05},
			"mdf":     {Name: "mdf", Density: 750, SpeedFactor: 1.1, ChipLoad: 0.06},
			"aluminum": {
				Name: "aluminum", Density: 2700, SpeedFactor: 0.4, ChipLoad: 0.02,
				Cooling: true,
			},
		},
		Fasteners: map[string]Fastener{
			"#8-wood-screw": {
				Name: "#8-wood-screw", ShankDiameter: 4.2, PilotDiameter: 2.8,
				HeadDiameter: 8.0, CountersinkDeep: 2.5, Length: 32,
			},
			"m4-bolt": {
				Name: "m4-bolt", ShankDiameter: 4.0, PilotDiameter: 4.3,
				HeadDiameter: 7.0, Length: 30,
			},
		},
	}
}

// MaterialOrDefault returns the named material, falling back to plywood
// when the name is unknown or empty.
func (t *Tables) MaterialOrDefault(name string) Material {
	if m, ok := t.Materials[name]; ok {
		return m
	}
	return t.Materials["plywood"]
}
