// memory.go - logical memory map and timed access ([M] in SPEC_FULL.md)

package main

// PageShift/PageSize follow spec.md §3's "8 KiB (configurable) logical
// pages" default.
const (
	PageShift = 13
	PageSize  = 1 << PageShift // 8192
	NumPages  = 0x10000 / PageSize
)

// MemorySource tags where a page's backing buffer comes from, per spec.md §3.
type MemorySource int

const (
	SourceNone MemorySource = iota
	SourceROM
	SourceRAM
	SourceDock
	SourceExROM
	SourceDevice
	SourceAny
)

// MemoryPage is one 8 KiB logical page, per spec.md §3.
type MemoryPage struct {
	Source       MemorySource
	PageNum      int
	Offset       int
	Writable     bool
	Contended    bool
	Buffer       []byte // backing 8 KiB buffer; nil means unmapped
	SaveToSnap   bool
}

// MemoryMap covers the 64 KiB Z80 address space with independent read and
// write page tables, so shadow RAM / ROM-with-RAM-overlay configurations can
// route reads and writes to different buffers (spec.md §3).
type MemoryMap struct {
	read  [NumPages]MemoryPage
	write [NumPages]MemoryPage
	ct    *ContentionTables
	sched *Scheduler
}

// NewMemoryMap creates an unmapped memory map wired to the shared
// contention tables and scheduler (the latter supplies the live tstates
// counter contend_read/contend_write advance).
func NewMemoryMap(ct *ContentionTables, sched *Scheduler) *MemoryMap {
	return &MemoryMap{ct: ct, sched: sched}
}

// MapReadPage installs a page in the read table at logical page index idx.
func (m *MemoryMap) MapReadPage(idx int, p MemoryPage) { m.read[idx] = p }

// MapWritePage installs a page in the write table at logical page index idx.
func (m *MemoryMap) MapWritePage(idx int, p MemoryPage) { m.write[idx] = p }

// MapBoth installs the same page descriptor into both tables, the common
// case for plain RAM/ROM pages.
func (m *MemoryMap) MapBoth(idx int, p MemoryPage) {
	m.read[idx] = p
	m.write[idx] = p
}

// ReadPageAt returns the read-table page descriptor covering addr.
func (m *MemoryMap) ReadPageAt(addr uint16) *MemoryPage { return &m.read[addr>>PageShift] }

// WritePageAt returns the write-table page descriptor covering addr.
func (m *MemoryMap) WritePageAt(addr uint16) *MemoryPage { return &m.write[addr>>PageShift] }

// ReadByteInternal reads without timing or breakpoint checks (spec.md §4.2).
func (m *MemoryMap) ReadByteInternal(addr uint16) byte {
	p := &m.read[addr>>PageShift]
	if p.Buffer == nil {
		return 0xFF
	}
	off := p.Offset + int(addr&(PageSize-1))
	return p.Buffer[off%len(p.Buffer)]
}

// WriteByteInternal writes through the write table without timing or
// breakpoint checks; a write to an unmapped or non-Writable page (such as
// ROM) is dropped (spec.md §4.2).
func (m *MemoryMap) WriteByteInternal(addr uint16, v byte) {
	p := &m.write[addr>>PageShift]
	if p.Buffer == nil || !p.Writable {
		return
	}
	off := p.Offset + int(addr&(PageSize-1))
	p.Buffer[off%len(p.Buffer)] = v
}

// ContendRead spends the contention delay (if the target page is
// contended) followed by n T-states, per spec.md §4.2.
func (m *MemoryMap) ContendRead(addr uint16, n uint32) {
	if m.read[addr>>PageShift].Contended {
		t := m.sched.Tstates()
		m.sched.AddTstates(uint32(m.ct.DelayMREQ(t)))
	}
	m.sched.AddTstates(n)
}

// ContendReadNoMREQ is ContendRead's non-MREQ-table counterpart, used for
// index/opcode prefetch extension cycles.
func (m *MemoryMap) ContendReadNoMREQ(addr uint16, n uint32) {
	if m.read[addr>>PageShift].Contended {
		t := m.sched.Tstates()
		m.sched.AddTstates(uint32(m.ct.DelayNoMREQ(t)))
	}
	m.sched.AddTstates(n)
}

// ContendWriteNoMREQ mirrors ContendReadNoMREQ against the write map.
func (m *MemoryMap) ContendWriteNoMREQ(addr uint16, n uint32) {
	if m.write[addr>>PageShift].Contended {
		t := m.sched.Tstates()
		m.sched.AddTstates(uint32(m.ct.DelayNoMREQ(t)))
	}
	m.sched.AddTstates(n)
}

// ReadByte is the timed read: 3 T-states of contended MREQ cost then the
// plain internal read (spec.md §4.2). Breakpoint consultation is layered on
// by the CPU core via Machine.CheckReadBreakpoint so this stays a pure
// memory operation.
func (m *MemoryMap) ReadByte(addr uint16) byte {
	m.ContendRead(addr, 3)
	return m.ReadByteInternal(addr)
}

// WriteByte is the timed write: 3 T-states of contended MREQ cost (against
// the write map's Contended flag) then the plain internal write.
func (m *MemoryMap) WriteByte(addr uint16, v byte) {
	if m.write[addr>>PageShift].Contended {
		t := m.sched.Tstates()
		m.sched.AddTstates(uint32(m.ct.DelayMREQ(t)))
	}
	m.sched.AddTstates(3)
	m.WriteByteInternal(addr, v)
}
