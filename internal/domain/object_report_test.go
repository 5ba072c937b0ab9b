package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeObjectReports(t *testing.T) {
	reports, err := DecodeObjectReports([]byte(`[
		{"obj_id":"o1","type":"car","lat":13.7563,"lng":100.5018,"objective":"track","size":"small","color":"red"}
	]`))
	require.NoError(t, err)
	require.Len(t, reports, 1)

	r := reports[0]
	assert.Equal(t, "o1", r.ObjID)
	assert.Equal(t, "car", r.Type)
	assert.InDelta(t, 13.7563, r.Lat, 1e-9)
	assert.InDelta(t, 100.5018, r.Lng, 1e-9)
	assert.Equal(t, "track", r.Objective)
	assert.Equal(t, "small", r.Size)
	assert.Equal(t, map[string]any{"color": "red"}, r.Extra)
}

func TestDecodeObjectReportsSingleObject(t *testing.T) {
	reports, err := DecodeObjectReports([]byte(`{"obj_id":"o1","type":"car","lat":1,"lng":2,"objective":"x","size":"s"}`))
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Nil(t, reports[0].Extra)
}

func TestDecodeObjectReportsEmptyList(t *testing.T) {
	reports, err := DecodeObjectReports([]byte(`[]`))
	require.NoError(t, err)
	assert.Empty(t, reports)
}

func TestDecodeObjectReportsInvalid(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "empty", input: ""},
		{name: "null", input: "null"},
		{name: "not json", input: "objects please"},
		{name: "missing lat", input: `[{"obj_id":"o1","type":"car","lng":2,"objective":"x","size":"s"}]`},
		{name: "missing size", input: `[{"obj_id":"o1","type":"car","lat":1,"lng":2,"objective":"x"}]`},
		{name: "lat as string", input: `[{"obj_id":"o1","type":"car","lat":"1","lng":2,"objective":"x","size":"s"}]`},
		{name: "obj_id as number", input: `[{"obj_id":1,"type":"car","lat":1,"lng":2,"objective":"x","size":"s"}]`},
		{name: "element not object", input: `["car"]`},
		{name: "lat null", input: `[{"obj_id":"o1","type":"car","lat":null,"lng":2,"objective":"x","size":"s"}]`},
		{name: "lng null", input: `[{"obj_id":"o1","type":"car","lat":1,"lng":null,"objective":"x","size":"s"}]`},
		{name: "objective null", input: `[{"obj_id":"o1","type":"car","lat":1,"lng":2,"objective":null,"size":"s"}]`},
		{name: "size null", input: `[{"obj_id":"o1","type":"car","lat":1,"lng":2,"objective":"x","size":null}]`},
		{name: "coordinates and strings null", input: `[{"obj_id":"o1","type":"car","lat":null,"lng":null,"objective":null,"size":null}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeObjectReports([]byte(tt.input))
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}

func TestObjectReportMarshalKeepsExtraFields(t *testing.T) {
	in := `{"obj_id":"o1","type":"car","lat":1.5,"lng":2.5,"objective":"track","size":"small","speed":42,"tags":["a"]}`
	var r ObjectReport
	require.NoError(t, json.Unmarshal([]byte(in), &r))

	out, err := json.Marshal(r)
	require.NoError(t, err)
	assert.JSONEq(t, in, string(out))
}

func TestObjectReportValidate(t *testing.T) {
	valid := ObjectReport{ObjID: "o1", Type: "car", Lat: 13.7, Lng: 100.5, Objective: "track", Size: "small"}
	assert.NoError(t, valid.Validate())

	badLat := valid
	badLat.Lat = 91
	assert.ErrorIs(t, badLat.Validate(), ErrInvalidInput)

	badLng := valid
	badLng.Lng = -181
	assert.ErrorIs(t, badLng.Validate(), ErrInvalidInput)

	noID := valid
	noID.ObjID = ""
	assert.ErrorIs(t, noID.Validate(), ErrInvalidInput)
}

func TestObjectReportDetected(t *testing.T) {
	r := ObjectReport{ObjID: "o1", Type: "car", Lat: 13.75634567, Lng: 100.50181234, Objective: "track", Size: "small"}

	d := r.Detected()
	assert.Equal(t, 13.756346, d.Lat)
	assert.Equal(t, 100.501812, d.Lng)
	assert.Nil(t, d.Details, "no extra fields means no details")

	r.Extra = map[string]any{"color": "red"}
	d = r.Detected()
	assert.Equal(t, map[string]any{"color": "red"}, d.Details)
}
