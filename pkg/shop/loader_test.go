package shop

import (
	"os"
	"path/filepath"
	"testing"
)

const catalogJSON = `{
  "shops": [
    {
      "name": "garage",
      "machines": [
        {
          "name": "router",
          "spindle_max": 24000,
          "library": [
            {"name": "em-6", "shape": 0, "diameter": 6, "flute_count": 2, "cut_length": 25},
            {"name": "drill-5", "shape": 1, "diameter": 5, "flute_count": 2, "cut_length": 60, "point_angle": 118}
          ]
        }
      ]
    }
  ]
}`

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadCatalog(t *testing.T) {
	path := writeTemp(t, "shops.json", catalogJSON)
	cat, err := LoadCatalog(path)
	if err != nil {
		t.Fatalf("LoadCatalog: %v", err)
	}
	if len(cat.Shops) != 1 {
		t.Fatalf("shops = %d, want 1", len(cat.Shops))
	}
	m := cat.Shops[0].Machines[0]
	if m.Name != "router" || len(m.Library) != 2 {
		t.Errorf("machine = %q with %d bits, want router with 2", m.Name, len(m.Library))
	}
	if m.Library[1].Shape != ShapeDrill {
		t.Errorf("bit 1 shape = %v, want drill", m.Library[1].Shape)
	}
}

func TestLoadCatalogRejectsDuplicateMachine(t *testing.T) {
	bad := `{"shops":[{"name":"garage","machines":[
	  {"name":"router","library":[{"name":"em","diameter":6}]},
	  {"name":"router","library":[{"name":"em","diameter":6}]}
	]}]}`
	path := writeTemp(t, "bad.json", bad)
	if _, err := LoadCatalog(path); err == nil {
		t.Error("duplicate machine name should fail validation")
	}
}

func TestLoadCatalogRejectsBadBit(t *testing.T) {
	bad := `{"shops":[{"name":"garage","machines":[{"name":"router","library":[{"name":"em","diameter":0}]}]}]}`
	path := writeTemp(t, "bad.json", bad)
	if _, err := LoadCatalog(path); err == nil {
		t.Error("zero-diameter bit should fail validation")
	}
}

func TestLoadCatalogMissingFile(t *testing.T) {
	if _, err := LoadCatalog(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Error("missing file should error")
	}
}

func TestLoadTablesOverlaysDefaults(t *testing.T) {
	content := `{
	  "materials": {"walnut": {"name": "walnut", "density": 650, "speed_factor": 0.9, "chip_load": 0.04}},
	  "fasteners": {"m6-bolt": {"name": "m6-bolt", "shank_diameter": 6, "pilot_diameter": 6.4, "head_diameter": 10, "length": 40}}
	}`
	path := writeTemp(t, "tables.json", content)
	tables, err := LoadTables(path)
	if err != nil {
		t.Fatalf("LoadTables: %v", err)
	}
	if _, ok := tables.Materials["walnut"]; !ok {
		t.Error("loaded material missing")
	}
	if _, ok := tables.Materials["plywood"]; !ok {
		t.Error("default material should survive the overlay")
	}
	if _, ok := tables.Fasteners["m6-bolt"]; !ok {
		t.Error("loaded fastener missing")
	}
	if _, ok := tables.Fasteners["#8-wood-screw"]; !ok {
		t.Error("default fastener should survive the overlay")
	}
}

func TestMaterialOrDefault(t *testing.T) {
	tables := DefaultTables()
	if got := tables.MaterialOrDefault("unobtanium"); got.Name != "plywood" {
		t.Errorf("unknown material fell back to %q, want plywood", got.Name)
	}
	if got := tables.MaterialOrDefault("mdf"); got.Name != "mdf" {
		t.Errorf("known material = %q, want mdf", got.Name)
	}
}
