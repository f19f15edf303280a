package ui

import "testing"

func TestDummyImplementsModel(t *testing.T) {
	var m Model = Dummy{}
	if pos := m.LivePosition(); pos.X != 0 {
		t.Fatalf("dummy position = %+v, want zero value", pos)
	}
	m.CancelAndClearQueue()
	m.EmergencyStop()
}
