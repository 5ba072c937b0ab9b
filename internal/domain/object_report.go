package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// ObjectReport is one object as submitted by a camera. Keys other than the
// fixed fields are kept in Extra and survive a marshal round trip unchanged.
type ObjectReport struct {
	ObjID     string
	Type      string
	Lat       float64
	Lng       float64
	Objective string
	Size      string
	Extra     map[string]any
}

var (
	reportStringFields = []string{"obj_id", "type", "objective", "size"}
	reportNumberFields = []string{"lat", "lng"}
)

// isNull reports whether a raw value is JSON null, which counts as absent.
func isNull(v json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(v), []byte("null"))
}

func (o *ObjectReport) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil || raw == nil {
		return fmt.Errorf("%w: each object must be a JSON object", ErrInvalidInput)
	}

	strs := make(map[string]string, len(reportStringFields))
	for _, key := range reportStringFields {
		v, ok := raw[key]
		if !ok || isNull(v) {
			return fmt.Errorf("%w: object is missing %q", ErrInvalidInput, key)
		}
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			return fmt.Errorf("%w: object field %q must be a string", ErrInvalidInput, key)
		}
		strs[key] = s
		delete(raw, key)
	}

	nums := make(map[string]float64, len(reportNumberFields))
	for _, key := range reportNumberFields {
		v, ok := raw[key]
		if !ok || isNull(v) {
			return fmt.Errorf("%w: object is missing %q", ErrInvalidInput, key)
		}
		var n float64
		if err := json.Unmarshal(v, &n); err != nil {
			return fmt.Errorf("%w: object field %q must be a number", ErrInvalidInput, key)
		}
		nums[key] = n
		delete(raw, key)
	}

	var extra map[string]any
	if len(raw) > 0 {
		extra = make(map[string]any, len(raw))
		for key, v := range raw {
			var val any
			if err := json.Unmarshal(v, &val); err != nil {
				return fmt.Errorf("%w: object field %q: %v", ErrInvalidInput, key, err)
			}
			extra[key] = val
		}
	}

	*o = ObjectReport{
		ObjID:     strs["obj_id"],
		Type:      strs["type"],
		Lat:       nums["lat"],
		Lng:       nums["lng"],
		Objective: strs["objective"],
		Size:      strs["size"],
		Extra:     extra,
	}
	return nil
}

func (o ObjectReport) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(o.Extra)+6)
	for k, v := range o.Extra {
		out[k] = v
	}
	out["obj_id"] = o.ObjID
	out["type"] = o.Type
	out["lat"] = o.Lat
	out["lng"] = o.Lng
	out["objective"] = o.Objective
	out["size"] = o.Size
	return json.Marshal(out)
}

// Validate checks the values of an already decoded report.
func (o ObjectReport) Validate() error {
	if o.ObjID == "" {
		return fmt.Errorf("%w: obj_id must not be empty", ErrInvalidInput)
	}
	if o.Type == "" {
		return fmt.Errorf("%w: type must not be empty", ErrInvalidInput)
	}
	if math.IsNaN(o.Lat) || o.Lat < -90 || o.Lat > 90 {
		return fmt.Errorf("%w: lat %v out of range", ErrInvalidInput, o.Lat)
	}
	if math.IsNaN(o.Lng) || o.Lng < -180 || o.Lng > 180 {
		return fmt.Errorf("%w: lng %v out of range", ErrInvalidInput, o.Lng)
	}
	return nil
}

// Detected converts the report into its stored form. Coordinates are kept to
// six decimal places.
func (o ObjectReport) Detected() DetectedObject {
	var details map[string]any
	if len(o.Extra) > 0 {
		details = make(map[string]any, len(o.Extra))
		for k, v := range o.Extra {
			details[k] = v
		}
	}
	return DetectedObject{
		ObjID:     o.ObjID,
		Type:      o.Type,
		Lat:       RoundCoordinate(o.Lat),
		Lng:       RoundCoordinate(o.Lng),
		Objective: o.Objective,
		Size:      o.Size,
		Details:   details,
	}
}

// RoundCoordinate rounds a latitude or longitude to six decimal places.
func RoundCoordinate(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}

// DecodeObjectReports parses an object list. A single JSON object is accepted
// as a list of one.
func DecodeObjectReports(data []byte) ([]ObjectReport, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: objects are required", ErrInvalidInput)
	}

	if data[0] == '{' {
		var one ObjectReport
		if err := json.Unmarshal(data, &one); err != nil {
			return nil, wrapInvalid(err)
		}
		return []ObjectReport{one}, nil
	}

	var list []ObjectReport
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, wrapInvalid(err)
	}
	if list == nil {
		return nil, fmt.Errorf("%w: objects must be a JSON array", ErrInvalidInput)
	}
	return list, nil
}

func wrapInvalid(err error) error {
	if errors.Is(err, ErrInvalidInput) {
		return err
	}
	return fmt.Errorf("%w: malformed objects: %v", ErrInvalidInput, err)
}
