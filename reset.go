// reset.go - reset orchestration across subsystems (spec.md §9)

package main

// HardReset restores every subsystem to its power-on state: CPU registers,
// scheduler queue and tstates, FDC controllers, and the RZX session. ROM
// page contents are untouched (they are never mutated in the first place);
// RAM page contents are left as-is, matching real hardware's "reset doesn't
// clear RAM" behaviour.
func (m *Machine) HardReset() {
	m.CPU.Reset()
	m.Scheduler.Reset()
	m.Scheduler.Add(m.tstatesPerFrame, m.interruptEventType, nil)

	if m.WDFDC != nil {
		m.WDFDC.MasterReset()
	}
	if m.UPDFDC != nil {
		m.UPDFDC.MasterReset()
	}
	for _, fdd := range m.FDDs {
		if fdd != nil {
			fdd.MotorOn(false)
		}
	}

	if m.RZX.Playing() {
		m.RZX.stopPlayback()
	}
	m.Debugger.Resume()
}

// SoftReset is a NMI-style reset some peripherals (Beta-128) expose; it
// leaves the scheduler's event queue intact so in-flight FDC/RZX timing
// survives.
func (m *Machine) SoftReset() {
	m.CPU.Reset()
}
