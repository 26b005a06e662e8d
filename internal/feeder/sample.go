package feeder

// NewSampleModel returns a small feeder in local engineering units. It covers
// every equipment group, a placeholder bus and one zero-length line.
func NewSampleModel() *Model {
	return &Model{
		Feeders: []Feeder{
			{
				Name: "sample_feeder",
				SwingNodes: []Equipment{
					{Name: "sourcebus", X1: 0, Y1: 100},
				},
				Regulators: []Regulator{
					{
						Equipment:   Equipment{Name: "reg1", X1: 10, Y1: 100, X2: 20, Y2: 100},
						ControlMode: "LINE_DROP_COMPENSATION",
						PhaseValues: map[string]PhaseValue{
							"A": {Tap: 4, LineDropR: 3, LineDropX: 9},
							"B": {Tap: 2, LineDropR: 3, LineDropX: 9},
							"C": {Tap: 3, LineDropR: 3, LineDropX: 9},
						},
					},
				},
				Switches: []Switch{
					{Equipment: Equipment{Name: "sw1", X1: 40, Y1: 100, X2: 50, Y2: 100}},
				},
				Transformers: []Equipment{
					{Name: "xfm1", X2: 60, Y2: 40},
				},
				Capacitors: []Capacitor{
					{
						Equipment:   Equipment{Name: "cap1", X1: 80, Y1: 100},
						ControlMode: "VOLT",
						Volt:        &Setpoint{Target: 120, Deadband: 2},
					},
				},
				SolarPanels: []Equipment{
					{Name: "pv1", X1: 80, Y1: 40},
				},
				Batteries: []Equipment{
					{Name: "bat1", X1: 100, Y1: 40},
				},
				Lines: []LineSegment{
					{Name: "l1", From: "sourcebus", To: "reg1", X1: 0, Y1: 100, X2: 20, Y2: 100},
					{Name: "l2", From: "reg1", To: "632", X1: 20, Y1: 100, X2: 40, Y2: 100},
					{Name: "l3", From: "632", To: "sw1", X1: 40, Y1: 100, X2: 50, Y2: 100},
					{Name: "l4", From: "sw1", To: "cap1", X1: 50, Y1: 100, X2: 80, Y2: 100},
					{Name: "l5", From: "632", To: "xfm1", X1: 40, Y1: 100, X2: 60, Y2: 40},
					{Name: "l6", From: "xfm1", To: "pv1", X1: 60, Y1: 40, X2: 80, Y2: 40},
					{Name: "l7", From: "pv1", To: "bat1", X1: 80, Y1: 40, X2: 100, Y2: 40},
					{Name: "l8", From: "cap1", To: "680", X1: 80, Y1: 100, X2: 100, Y2: 100},
					{Name: "l9", From: "680", To: "680b", X1: 100, Y1: 100, X2: 100, Y2: 100},
				},
			},
		},
	}
}

// NewSampleMaps returns the equipment-id and phase maps that go with NewSampleModel.
func NewSampleMaps() Maps {
	return Maps{
		EquipmentIDs: EquipmentIDMap{
			"sw1":  {"_SW1"},
			"cap1": {"_CAP1"},
			"reg1": {"_REG1A", "_REG1B", "_REG1C"},
			"xfm1": {"_XFM1"},
			"pv1":  {"_PV1"},
			"bat1": {"_BAT1"},
		},
		Phases: PhaseMap{
			"reg1": {"A", "B", "C"},
			"cap1": {"A", "B", "C"},
			"sw1":  {"A", "B", "C"},
		},
	}
}
