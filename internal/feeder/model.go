package feeder

// Model is the raw topology payload delivered by the model collaborator for one line.
type Model struct {
	Feeders []Feeder `json:"feeders"`
}

// Feeder holds the equipment groups and line segments of a single distribution feeder.
type Feeder struct {
	Name         string        `json:"name"`
	Batteries    []Equipment   `json:"batteries"`
	Switches     []Switch      `json:"switches"`
	SolarPanels  []Equipment   `json:"solarpanels"`
	SwingNodes   []Equipment   `json:"swing_nodes"`
	Substations  []Equipment   `json:"substations,omitempty"`
	Transformers []Equipment   `json:"transformers"`
	Capacitors   []Capacitor   `json:"capacitors"`
	Regulators   []Regulator   `json:"regulators"`
	Lines        []LineSegment `json:"overhead_lines"`
}

// Equipment is the common shape of every placed piece of equipment.
// x2/y2 is the secondary terminal and is zero when the source does not set it.
type Equipment struct {
	Name string  `json:"name"`
	X1   float64 `json:"x1"`
	Y1   float64 `json:"y1"`
	X2   float64 `json:"x2"`
	Y2   float64 `json:"y2"`
}

type Switch struct {
	Equipment
	Open bool `json:"open"`
}

type Setpoint struct {
	Target   float64 `json:"target"`
	Deadband float64 `json:"deadband"`
}

type Capacitor struct {
	Equipment
	Open        bool      `json:"open"`
	Manual      bool      `json:"manual"`
	ControlMode string    `json:"controlMode"`
	Var         *Setpoint `json:"var,omitempty"`
	Volt        *Setpoint `json:"volt,omitempty"`
}

type PhaseValue struct {
	Tap       float64 `json:"tap"`
	LineDropR float64 `json:"lineDropR"`
	LineDropX float64 `json:"lineDropX"`
}

type Regulator struct {
	Equipment
	Manual      bool                  `json:"manual"`
	ControlMode string                `json:"controlMode"`
	PhaseValues map[string]PhaseValue `json:"phaseValues,omitempty"`
}

// LineSegment connects two named nodes. The coordinates locate each end for
// nodes that no equipment group declares.
type LineSegment struct {
	Name string  `json:"name"`
	From string  `json:"from"`
	To   string  `json:"to"`
	X1   float64 `json:"x1"`
	Y1   float64 `json:"y1"`
	X2   float64 `json:"x2"`
	Y2   float64 `json:"y2"`
}

// Primary returns the first feeder, or nil when the model carries none.
func (m *Model) Primary() *Feeder {
	if m == nil || len(m.Feeders) == 0 {
		return nil
	}
	return &m.Feeders[0]
}
