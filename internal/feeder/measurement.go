package feeder

import (
	"encoding/json"
	"fmt"
	"math"
)

type MeasurementType string

const (
	MeasurementTap     MeasurementType = "TAP"
	MeasurementPower   MeasurementType = "POWER"
	MeasurementVoltage MeasurementType = "VOLTAGE"
	MeasurementPos     MeasurementType = "POS"
	MeasurementCurrent MeasurementType = "CURRENT"
)

// EquipmentACLineSegment is the conducting equipment type carried by line measurements.
const EquipmentACLineSegment = "ACLineSegment"

// Measurement is one live reading for a piece of conducting equipment.
type Measurement struct {
	MRID                    string          `json:"mRID,omitempty"`
	ConductingEquipmentMRID string          `json:"conductingEquipmentMRID"`
	ConductingEquipmentName string          `json:"conductingEquipmentName"`
	ConductingEquipmentType string          `json:"conductingEquipmentType"`
	Type                    MeasurementType `json:"type"`
	Phases                  string          `json:"phases,omitempty"`
	Value                   float64         `json:"value"`
	Magnitude               float64         `json:"magnitude"`
	Angle                   float64         `json:"angle"`
}

// HasMagnitude reports whether the magnitude is a usable finite number.
func (m Measurement) HasMagnitude() bool {
	return !math.IsNaN(m.Magnitude) && !math.IsInf(m.Magnitude, 0)
}

// DecodeMeasurements accepts either a JSON array of measurements or a single object.
func DecodeMeasurements(data []byte) ([]Measurement, error) {
	for _, c := range data {
		switch c {
		case ' ', '\t', '\r', '\n':
			continue
		case '[':
			var out []Measurement
			if err := json.Unmarshal(data, &out); err != nil {
				return nil, fmt.Errorf("decode measurements: %w", err)
			}
			return out, nil
		default:
			var m Measurement
			if err := json.Unmarshal(data, &m); err != nil {
				return nil, fmt.Errorf("decode measurement: %w", err)
			}
			return []Measurement{m}, nil
		}
	}
	return nil, fmt.Errorf("decode measurements: empty payload")
}

// CurrentLimit is the ampacity rating of a line, keyed by its mRID.
type CurrentLimit struct {
	MRID      string  `json:"mRID"`
	Normal    float64 `json:"normal"`
	Emergency float64 `json:"emergency"`
}
