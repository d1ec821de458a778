package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrder_MarshalKeepsZeroAmounts(t *testing.T) {
	raw, err := json.Marshal(Order{Title: "empty run", Origin: RefID[Location]("loc-1")})
	require.NoError(t, err)

	var body map[string]any
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.Equal(t, 0.0, body["weight"])
	assert.Equal(t, 0.0, body["price"])
	assert.Equal(t, "loc-1", body["origin"])
	assert.NotContains(t, body, "id")
}

func TestTruck_MarshalKeepsZeroCapacity(t *testing.T) {
	raw, err := json.Marshal(Truck{Plate: "AA1234"})
	require.NoError(t, err)

	var body map[string]any
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.Equal(t, 0.0, body["capacity"])
}

func TestLocation_MarshalKeepsZeroCoordinates(t *testing.T) {
	raw, err := json.Marshal(Location{ID: "loc-0", Name: "Null Island"})
	require.NoError(t, err)

	assert.JSONEq(t, `{"id":"loc-0","name":"Null Island","lat":0,"lng":0}`, string(raw))
}
