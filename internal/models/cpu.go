package models

// CPUTicks is a cumulative tick reading for one core.
type CPUTicks struct {
	CPU    string  `json:"cpu"`
	User   float64 `json:"user"`
	System float64 `json:"system"`
	Idle   float64 `json:"idle"`
	Nice   float64 `json:"nice"`
}

// Active returns the ticks spent doing work (user + system + nice).
func (t CPUTicks) Active() float64 {
	return t.User + t.System + t.Nice
}

// Total returns active plus idle ticks.
func (t CPUTicks) Total() float64 {
	return t.Active() + t.Idle
}
