package careinfo

import "testing"

func TestLookupMatchesEitherNameIgnoringCase(t *testing.T) {
	table := DefaultTable()

	byScientific := table.Lookup("monstera DELICIOSA")
	if byScientific == nil || byScientific.CommonName != "Swiss cheese plant" {
		t.Fatalf("scientific lookup = %+v", byScientific)
	}

	byCommon := table.Lookup("  snake plant ")
	if byCommon == nil || byCommon.Name != "Sansevieria trifasciata" {
		t.Fatalf("common lookup = %+v", byCommon)
	}
	if byCommon.WateringDays != 14 {
		t.Errorf("watering days = %d, want 14", byCommon.WateringDays)
	}

	if got := table.Lookup("Triffid"); got != nil {
		t.Errorf("unknown lookup = %+v, want nil", got)
	}
	if got := table.Lookup(""); got != nil {
		t.Errorf("blank lookup = %+v, want nil", got)
	}
}

func TestLookupReturnsFirstMatch(t *testing.T) {
	table := NewTable([]byte(`[
		{"name": "A", "commonName": "Shared", "wateringDays": 3, "sunlight": "sun"},
		{"name": "B", "commonName": "Shared", "wateringDays": 9, "sunlight": "shade"}
	]`))

	got := table.Lookup("shared")
	if got == nil || got.Name != "A" {
		t.Errorf("lookup = %+v, want first entry", got)
	}
}

func TestLookupReturnsCopy(t *testing.T) {
	table := DefaultTable()
	first := table.Lookup("Aloe")
	first.WateringDays = 99

	if again := table.Lookup("Aloe"); again.WateringDays == 99 {
		t.Error("mutating a lookup result changed the table")
	}
}

func TestBundledTableLoads(t *testing.T) {
	table := DefaultTable()
	if err := table.Load(); err != nil {
		t.Fatalf("load: %v", err)
	}
	all := table.All()
	if len(all) < 20 {
		t.Errorf("entries = %d, want at least 20", len(all))
	}
	for _, e := range all {
		if e.Name == "" || e.CommonName == "" || e.WateringDays <= 0 || e.Sunlight == "" {
			t.Errorf("incomplete entry %+v", e)
		}
	}
}

func TestBrokenTable(t *testing.T) {
	table := NewTable([]byte(`not json`))
	if err := table.Load(); err == nil {
		t.Fatal("expected parse error")
	}
	if got := table.Lookup("anything"); got != nil {
		t.Errorf("lookup = %+v, want nil", got)
	}
	if got := table.All(); len(got) != 0 {
		t.Errorf("all = %v, want empty", got)
	}
}
