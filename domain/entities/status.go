package entities

// OrbStatus is the small state enum the widget UI animates from. It carries
// no business logic; the engine drives every transition.
type OrbStatus string

const (
	StatusIdle      OrbStatus = "idle"
	StatusBuffering OrbStatus = "buffering"
	StatusSpeaking  OrbStatus = "speaking"
	StatusRecording OrbStatus = "recording"
	StatusError     OrbStatus = "error"
)

// Valid reports whether the status is one of the known values.
func (s OrbStatus) Valid() bool {
	switch s {
	case StatusIdle, StatusBuffering, StatusSpeaking, StatusRecording, StatusError:
		return true
	}
	return false
}
