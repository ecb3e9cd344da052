// snapshot.go - Z80 + peripheral state capture/restore (spec.md §6)

package main

import (
	"bytes"
	"encoding/gob"
)

// Z80State is the serializable view of the CPU's registers, independent of
// the owning Machine. Actual file-format encoding (.z80/.sna) is an
// external collaborator's job (spec.md §1 Non-goals); this is the in-memory
// contract that collaborator reads and writes.
type Z80State struct {
	A, F, B, C, D, E, H, L byte
	A2, F2, B2, C2, D2, E2, H2, L2 byte
	IX, IY                 uint16
	SP, PC                 uint16
	I, R                   byte
	IFF1, IFF2             bool
	IM                     byte
	Halted                 bool
	MEMPTR                 uint16
	Q                      byte
}

// CaptureZ80State copies the live CPU registers into a Z80State.
func CaptureZ80State(z *Z80) Z80State {
	return Z80State{
		A: z.A, F: z.F, B: z.B, C: z.C, D: z.D, E: z.E, H: z.H, L: z.L,
		A2: z.A2, F2: z.F2, B2: z.B2, C2: z.C2, D2: z.D2, E2: z.E2, H2: z.H2, L2: z.L2,
		IX: z.IX, IY: z.IY, SP: z.SP, PC: z.PC,
		I: z.I, R: z.visibleR(),
		IFF1: z.IFF1, IFF2: z.IFF2, IM: z.IM, Halted: z.Halted,
		MEMPTR: z.MEMPTR, Q: z.Q,
	}
}

// RestoreZ80State writes a previously captured state back into the CPU.
func RestoreZ80State(z *Z80, s Z80State) {
	z.A, z.F, z.B, z.C, z.D, z.E, z.H, z.L = s.A, s.F, s.B, s.C, s.D, s.E, s.H, s.L
	z.A2, z.F2, z.B2, z.C2, z.D2, z.E2, z.H2, z.L2 = s.A2, s.F2, s.B2, s.C2, s.D2, s.E2, s.H2, s.L2
	z.IX, z.IY, z.SP, z.PC = s.IX, s.IY, s.SP, s.PC
	z.I = s.I
	z.SetR(s.R)
	z.IFF1, z.IFF2, z.IM, z.Halted = s.IFF1, s.IFF2, s.IM, s.Halted
	z.MEMPTR, z.Q = s.MEMPTR, s.Q
}

// MemoryPageState is a snapshot-worthy page: only pages with SaveToSnap set
// (RAM, not ROM) actually need their buffer persisted (spec.md §3/§6).
type MemoryPageState struct {
	PageNum int
	Buffer  []byte
}

// CaptureMemoryState copies every SaveToSnap read-page buffer.
func CaptureMemoryState(m *MemoryMap) []MemoryPageState {
	var out []MemoryPageState
	for i := range m.read {
		p := &m.read[i]
		if !p.SaveToSnap || p.Buffer == nil {
			continue
		}
		buf := make([]byte, len(p.Buffer))
		copy(buf, p.Buffer)
		out = append(out, MemoryPageState{PageNum: p.PageNum, Buffer: buf})
	}
	return out
}

// RestoreMemoryState writes captured page buffers back by PageNum, matching
// against whichever logical page currently holds that physical page number
// in the read table; the write table is not consulted.
func RestoreMemoryState(m *MemoryMap, pages []MemoryPageState) {
	for _, saved := range pages {
		for i := range m.read {
			if m.read[i].PageNum == saved.PageNum && m.read[i].Buffer != nil {
				copy(m.read[i].Buffer, saved.Buffer)
			}
		}
	}
}

// MachineSnapshot bundles everything spec.md §6 says a snapshot loader
// needs: CPU state, RAM page contents, and the scheduler's current tstates
// (so resuming mid-frame lands at the right contention offset).
type MachineSnapshot struct {
	CPU     Z80State
	Memory  []MemoryPageState
	Tstates uint32
}

// Capture builds a full snapshot of m's current state.
func (m *Machine) Capture() MachineSnapshot {
	return MachineSnapshot{
		CPU:     CaptureZ80State(m.CPU),
		Memory:  CaptureMemoryState(m.MemoryMap),
		Tstates: m.Scheduler.Tstates(),
	}
}

// Restore applies a previously captured snapshot to m.
func (m *Machine) Restore(s MachineSnapshot) {
	RestoreZ80State(m.CPU, s.CPU)
	RestoreMemoryState(m.MemoryMap, s.Memory)
	m.Scheduler.SetTstates(s.Tstates)
}

// CaptureBytes/RestoreBytes gob-encode a MachineSnapshot, giving the RZX
// recorder (spec.md §4.8) an opaque []byte to embed in an IRB without
// needing to know the Machine's internals.
func (m *Machine) CaptureBytes() []byte {
	var buf bytes.Buffer
	_ = gob.NewEncoder(&buf).Encode(m.Capture())
	return buf.Bytes()
}

func (m *Machine) RestoreBytes(data []byte) {
	var s MachineSnapshot
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		m.Log.Warning("snapshot restore failed: %v", err)
		return
	}
	m.Restore(s)
}
