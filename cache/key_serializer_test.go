package cache

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/goliatone/go-freightsync/pkg/testsupport"
)

// keyScenario is one fixture row from testdata/key_serializer_scenarios.json
type keyScenario struct {
	Name        string          `json:"name"`
	Resource    string          `json:"resource"`
	Operation   string          `json:"operation"`
	Params      json.RawMessage `json:"params"`
	ExpectedKey string          `json:"expectedKey"`
}

func joinWithSeparator(parts ...string) string {
	return strings.Join(parts, KeySeparator)
}

func TestDefaultKeySerializer_EmptyParams(t *testing.T) {
	serializer := NewDefaultKeySerializer()

	tests := []struct {
		name   string
		params any
	}{
		{name: "nil", params: nil},
		{name: "empty map", params: map[string]any{}},
		{name: "nil map", params: map[string]any(nil)},
		{name: "empty slice", params: []string{}},
		{name: "nil pointer", params: (*struct{ ID string })(nil)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := serializer.SerializeKey("Order", "list", tt.params)
			if got != joinWithSeparator("Order", "list") {
				t.Errorf("SerializeKey() = %v, want %v", got, joinWithSeparator("Order", "list"))
			}
		})
	}
}

func TestDefaultKeySerializer_BasicTypes(t *testing.T) {
	serializer := NewDefaultKeySerializer()

	tests := []struct {
		name   string
		params any
		want   string
	}{
		{
			name:   "string id",
			params: map[string]any{"id": "o-42"},
			want:   `{"id":"o-42"}`,
		},
		{
			name:   "zero is kept",
			params: map[string]any{"minWeight": 0},
			want:   `{"minWeight":0}`,
		},
		{
			name:   "float and int print the same",
			params: map[string]any{"a": 10.0, "b": 10},
			want:   `{"a":10,"b":10}`,
		},
		{
			name:   "bool and fraction",
			params: map[string]any{"urgent": true, "price": 12.5},
			want:   `{"price":12.5,"urgent":true}`,
		},
		{
			name:   "string with separator",
			params: map[string]any{"q": "Kyiv::Lviv"},
			want:   `{"q":"Kyiv::Lviv"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := serializer.SerializeKey("Order", "filter", tt.params)
			want := joinWithSeparator("Order", "filter", tt.want)
			if got != want {
				t.Errorf("SerializeKey() = %v, want %v", got, want)
			}
		})
	}
}

func TestDefaultKeySerializer_KeyOrderIndependent(t *testing.T) {
	serializer := NewDefaultKeySerializer()

	a := map[string]any{"country": "UA", "loadTypes": []string{"bulk", "pallet"}, "minWeight": 5}
	b := map[string]any{"minWeight": 5, "loadTypes": []string{"bulk", "pallet"}, "country": "UA"}

	if serializer.SerializeKey("Order", "filter", a) != serializer.SerializeKey("Order", "filter", b) {
		t.Error("maps with the same entries must produce the same key")
	}
}

func TestDefaultKeySerializer_ArrayOrderPreserved(t *testing.T) {
	serializer := NewDefaultKeySerializer()

	a := serializer.SerializeKey("Truck", "filter", map[string]any{"loadTypes": []string{"bulk", "pallet"}})
	b := serializer.SerializeKey("Truck", "filter", map[string]any{"loadTypes": []string{"pallet", "bulk"}})

	if a == b {
		t.Errorf("array order must be significant, both produced %v", a)
	}
}

func TestDefaultKeySerializer_Structs(t *testing.T) {
	serializer := NewDefaultKeySerializer()

	type filter struct {
		Country   string   `json:"country,omitempty"`
		MinWeight *float64 `json:"minWeight,omitempty"`
		LoadTypes []string `json:"loadTypes"`
		internal  string
		Ignored   string `json:"-"`
	}

	zero := 0.0
	got := serializer.SerializeKey("Order", "filter", filter{
		MinWeight: &zero,
		LoadTypes: []string{"bulk"},
		internal:  "secret",
		Ignored:   "x",
	})
	want := joinWithSeparator("Order", "filter", `{"loadTypes":["bulk"],"minWeight":0}`)
	if got != want {
		t.Errorf("SerializeKey() = %v, want %v", got, want)
	}

	fromMap := serializer.SerializeKey("Order", "filter", map[string]any{"loadTypes": []string{"bulk"}, "minWeight": 0})
	if got != fromMap {
		t.Errorf("struct and equivalent map should share a key: %v != %v", got, fromMap)
	}
}

func TestDefaultKeySerializer_NestedAndMarshalers(t *testing.T) {
	serializer := NewDefaultKeySerializer()

	day := time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)
	got := serializer.SerializeKey("Order", "filter", map[string]any{
		"pickup": map[string]any{"from": day, "to": nil},
		"ids":    [2]int{3, 1},
	})
	want := joinWithSeparator("Order", "filter", `{"ids":[3,1],"pickup":{"from":"2026-10-19T00:00:00Z","to":null}}`)
	if got != want {
		t.Errorf("SerializeKey() = %v, want %v", got, want)
	}
}

func TestDefaultKeySerializer_JSONNumbersMatchGoNumbers(t *testing.T) {
	serializer := NewDefaultKeySerializer()

	var decoded map[string]any
	dec := json.NewDecoder(strings.NewReader(`{"minWeight":0,"maxPrice":1500}`))
	dec.UseNumber()
	if err := dec.Decode(&decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}

	native := map[string]any{"minWeight": 0, "maxPrice": 1500}
	if serializer.SerializeKey("Order", "filter", decoded) != serializer.SerializeKey("Order", "filter", native) {
		t.Error("json.Number params should produce the same key as native numbers")
	}
}

func TestDefaultKeySerializer_FixtureScenarios(t *testing.T) {
	serializer := NewDefaultKeySerializer()

	var scenarios []keyScenario
	testsupport.LoadFixtureJSON(t, testsupport.FixturePath("key_serializer_scenarios.json"), &scenarios)

	if len(scenarios) == 0 {
		t.Fatal("expected fixture scenarios")
	}

	for _, sc := range scenarios {
		t.Run(sc.Name, func(t *testing.T) {
			var params any
			if len(sc.Params) > 0 {
				if err := json.Unmarshal(sc.Params, &params); err != nil {
					t.Fatalf("invalid params: %v", err)
				}
			}
			got := serializer.SerializeKey(sc.Resource, sc.Operation, params)
			if got != sc.ExpectedKey {
				t.Errorf("SerializeKey() = %v, want %v", got, sc.ExpectedKey)
			}
		})
	}
}

func BenchmarkDefaultKeySerializer(b *testing.B) {
	serializer := NewDefaultKeySerializer()
	params := map[string]any{"minWeight": 0, "country": "UA", "loadTypes": []string{"bulk", "pallet"}}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		serializer.SerializeKey("Order", "filter", params)
	}
}
