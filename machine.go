// machine.go - the owned aggregate bundling every subsystem (spec.md §9
// design note: convert module-level globals into a single owned struct)

package main

import "os"

// MachineModel selects timing/contention profile and ROM-trap addresses.
type MachineModel int

const (
	Model48K MachineModel = iota
	Model128K
	ModelPlus2
	ModelPlus3
	ModelPentagon1024
	ModelTS2068
	ModelSE // Spectrum SE: 48K timing defaults; no SE-specific paging
)

// Machine owns every subsystem named in SPEC_FULL.md's Domain Modules
// section and is the sole mutable state the emulation goroutine touches
// (spec.md §5).
type Machine struct {
	*MemoryMap

	Model MachineModel

	Scheduler  *Scheduler
	Contention *ContentionTables
	Ports      *PortDispatcher
	CPU        *Z80
	RZX        *RZX
	Debugger   *Debugger
	Commands   *CommandQueue
	Log        *Logger

	FDDs    [4]*FDD
	WDFDC   *WD177x
	UPDFDC  *UPD765

	interruptEventType EventTypeID
	tstatesPerFrame    uint32
	framesElapsed      uint64

	nmos             bool
	evenM1Contention bool

	floatingBusFn func(tstates uint32) byte

	tapeLoadTrapPC uint16
	tapeSaveTrapPC uint16
	tapeTrapsOn    bool
	ts2068         bool
}

// NewMachine wires up a complete, power-on machine for the given model. The
// caller still has to populate ROM/RAM page buffers via MapReadPage/
// MapWritePage and register peripheral port entries.
func NewMachine(model MachineModel) *Machine {
	var timing ContentionTiming
	switch model {
	case Model128K, ModelPlus2:
		timing = ContentionTiming48KLate
	case ModelPlus3:
		timing = ContentionTimingPlus3Late
	case ModelPentagon1024:
		timing = ContentionTimingNone
	default:
		timing = ContentionTiming48KLate
	}

	sched := NewScheduler()
	ct := NewContentionTables(timing)
	mem := NewMemoryMap(ct, sched)

	m := &Machine{
		MemoryMap:        mem,
		Model:            model,
		Scheduler:        sched,
		Contention:       ct,
		Log:              NewLogger(os.Stderr, 256),
		Commands:         NewCommandQueue(64),
		nmos:             true,
		evenM1Contention: model == ModelPlus3,
		tapeLoadTrapPC:   0x0556,
		tapeSaveTrapPC:   0x04D0,
		ts2068:           model == ModelTS2068,
	}
	m.Ports = NewPortDispatcher(sched, func(t uint32) byte { return m.floatingBusSample(t) })
	m.CPU = NewZ80(m)
	m.RZX = NewRZX(m.CPU, sched, m.Log)
	m.Ports.SetRZXRecorder(func(b byte) {
		if m.RZX.Recording() {
			m.RZX.StoreByte(b)
		}
	})
	m.Debugger = NewDebugger(sched)

	m.interruptEventType = sched.Register("machine_interrupt", m.onInterruptEvent)
	m.tstatesPerFrame = 69888
	if model == Model128K || model == ModelPlus2 || model == ModelPlus3 {
		m.tstatesPerFrame = 70908
	}
	sched.Add(m.tstatesPerFrame, m.interruptEventType, nil)

	for i := range m.FDDs {
		m.FDDs[i] = NewFDD(sched, newPRNG(uint32(i+1)*2654435761))
	}

	return m
}

// AttachWD177x installs a Beta-128-style WD controller bound to drive 0.
func (m *Machine) AttachWD177x(typ WDType, flags WDFlags) {
	m.WDFDC = NewWD177x(m.Scheduler, typ, flags)
	m.WDFDC.Drive = m.FDDs[0]
}

// AttachUPD765 installs a +3-style µPD765 controller bound to all 4 drives.
func (m *Machine) AttachUPD765(typ UPDType, clock UPDClock, speedlock int) {
	m.UPDFDC = NewUPD765(m.Scheduler, typ, clock, speedlock)
	for i := range m.FDDs {
		m.UPDFDC.Drives[i] = m.FDDs[i]
	}
}

// EnableTapeTraps turns on the LD/SAVE ROM trap consultation gate.
func (m *Machine) EnableTapeTraps(hook TapeTrapHook) {
	m.tapeTrapsOn = true
	m.CPU.TapeTrap = hook
}

func (m *Machine) floatingBusSample(tstates uint32) byte {
	// Without a wired ULA video engine the floating bus always reads high;
	// a display chip can override floatingBusFn to sample the real beam
	// position (spec.md §4.3).
	if m.floatingBusFn != nil {
		return m.floatingBusFn(tstates)
	}
	return 0xFF
}

// SetFloatingBusSource lets the ULA/video engine supply the real
// beam-position floating-bus sample.
func (m *Machine) SetFloatingBusSource(fn func(tstates uint32) byte) { m.floatingBusFn = fn }

// InPort/OutPort satisfy Z80Bus by delegating to the port dispatcher with
// the addr-contention flag derived from the live memory map (spec.md §4.2).
func (m *Machine) InPort(port uint16) byte {
	if m.RZX.Playing() {
		return m.RZX.NextInByte()
	}
	contended := m.ReadPageAt(port).Contended
	return m.Ports.ReadPort(port, m.Contention, contended)
}

func (m *Machine) OutPort(port uint16, v byte) {
	contended := m.ReadPageAt(port).Contended
	m.Ports.WritePort(port, v, m.Contention, contended)
}

// Tstates/AddTstates satisfy Z80Bus by delegating to the scheduler, the
// single owner of the T-state counter (spec.md §4.1).
func (m *Machine) Tstates() uint32        { return m.Scheduler.Tstates() }
func (m *Machine) AddTstates(n uint32)    { m.Scheduler.AddTstates(n) }

// EvenM1Contention/IsNMOS report machine-wide CPU quirks consulted by the
// core (spec.md §4.4).
func (m *Machine) EvenM1Contention() bool { return m.evenM1Contention }
func (m *Machine) IsNMOS() bool           { return m.nmos }

// PreFetchGates implements spec.md §4.4 step 1: RZX end-of-frame check,
// tape-trap interception, and (indirectly, via CheckExecuteBreakpoint a
// few lines later in Step) debugger consultation.
func (m *Machine) PreFetchGates(cpu *Z80) bool {
	if m.RZX.Playing() && m.RZX.ShouldEndFrame() {
		m.Scheduler.Add(m.Scheduler.Tstates(), m.interruptEventType, nil)
		return true
	}
	if m.tapeTrapsOn && cpu.TapeTrap != nil {
		cfg := TapeTrapConfig{Enabled: true, TS2068: m.ts2068}
		if cpu.PC == m.tapeLoadTrapPC {
			if cpu.CheckLoadTrap(cfg) {
				return true
			}
		} else if cpu.PC == m.tapeSaveTrapPC {
			if cpu.CheckSaveTrap(cfg) {
				return true
			}
		}
	}
	return false
}

// PostFetchGates runs after the opcode byte is fetched but before dispatch;
// this core has nothing further to gate at that point, but the hook exists
// so a future debugger "instruction trace" feature has a single seam.
func (m *Machine) PostFetchGates(cpu *Z80, opcode byte) {}

func (m *Machine) regSnapshot() RegisterSnapshot {
	c := m.CPU
	return RegisterSnapshot{
		A: c.A, F: c.F, B: c.B, C: c.C, D: c.D, E: c.E, H: c.H, L: c.L,
		A2: c.A2, F2: c.F2,
		IXh: byte(c.IX >> 8), IXl: byte(c.IX),
		IYh: byte(c.IY >> 8), IYl: byte(c.IY),
		SP: c.SP, PC: c.PC, I: c.I, R: c.visibleR(),
		IFF1: c.IFF1, IFF2: c.IFF2,
		Tstates: m.Scheduler.Tstates(),
	}
}

func (m *Machine) CheckExecuteBreakpoint(pc uint16) {
	if m.Debugger.Check(BreakExecute, uint64(pc), m.regSnapshot()) {
		m.Debugger.Wait()
	}
}

func (m *Machine) CheckReadBreakpoint(addr uint16) {
	if m.Debugger.Check(BreakMemRead, uint64(addr), m.regSnapshot()) {
		m.Debugger.Wait()
	}
}

func (m *Machine) CheckWriteBreakpoint(addr uint16) {
	if m.Debugger.Check(BreakMemWrite, uint64(addr), m.regSnapshot()) {
		m.Debugger.Wait()
	}
}

// onInterruptEvent fires once per frame: accepts the maskable interrupt,
// notifies the RZX recorder/player, reduces debugger time-breakpoint
// thresholds, and re-arms itself (spec.md §4.1/§4.8/§4.9).
func (m *Machine) onInterruptEvent(firedAt uint32, _ EventTypeID, _ any) {
	m.framesElapsed++
	m.CPU.Interrupt()

	if m.RZX.Recording() {
		m.RZX.RecordingFrame()
	} else if m.RZX.Playing() {
		m.RZX.PlaybackFrame()
	}

	m.Debugger.ReduceTstates(m.tstatesPerFrame)
	m.Scheduler.Frame(m.tstatesPerFrame)
	m.Scheduler.Add(m.Scheduler.Tstates()+m.tstatesPerFrame, m.interruptEventType, nil)
}

// RunFrame steps the CPU until the per-frame interrupt event has fired
// once, draining due events and UI commands as it goes (spec.md §4.1, §5).
// It tracks completion via framesElapsed rather than a cached tstates
// target, since the interrupt handler itself rebases the scheduler's
// counter (Scheduler.Frame) partway through the frame.
func (m *Machine) RunFrame() {
	start := m.framesElapsed
	for m.framesElapsed == start && m.Debugger.Mode() != DebugHalted {
		m.CPU.Step()
		m.Scheduler.DoEvents()
	}
	m.Commands.Drain(m)
}
