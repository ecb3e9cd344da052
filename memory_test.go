package main

import "testing"

func newTestMemoryMap() (*MemoryMap, *Scheduler) {
	sched := NewScheduler()
	ct := NewContentionTables(ContentionTiming48KLate)
	mm := NewMemoryMap(ct, sched)
	return mm, sched
}

func TestMemoryMapReadWriteRoundTrip(t *testing.T) {
	mm, _ := newTestMemoryMap()
	buf := make([]byte, PageSize)
	mm.MapBoth(2, MemoryPage{Source: SourceRAM, PageNum: 2, Buffer: buf, Writable: true})

	mm.WriteByte(0x4000, 0x42)
	if got := mm.ReadByte(0x4000); got != 0x42 {
		t.Fatalf("ReadByte(0x4000) = %#x, want 0x42", got)
	}
}

func TestMemoryMapUnmappedPageReadsFF(t *testing.T) {
	mm, _ := newTestMemoryMap()
	if got := mm.ReadByteInternal(0x0000); got != 0xFF {
		t.Fatalf("ReadByteInternal on unmapped page = %#x, want 0xFF", got)
	}
}

func TestMemoryMapWriteIgnoredWhenNotWritable(t *testing.T) {
	mm, _ := newTestMemoryMap()
	rom := make([]byte, PageSize)
	rom[0] = 0xAA
	mm.MapBoth(0, MemoryPage{Source: SourceROM, PageNum: 0, Buffer: rom, Writable: false})

	mm.WriteByteInternal(0x0000, 0x55)
	if rom[0] != 0xAA {
		t.Fatalf("ROM page was written through despite Writable=false: %#x", rom[0])
	}
}

func TestMemoryMapContendedReadSpendsDelay(t *testing.T) {
	mm, sched := newTestMemoryMap()
	buf := make([]byte, PageSize)
	mm.MapBoth(2, MemoryPage{Source: SourceRAM, PageNum: 2, Buffer: buf, Writable: true, Contended: true})

	// 14336 is the first contended tstate of the 48K late table (delay 6).
	sched.SetTstates(14336)
	before := sched.Tstates()
	mm.ReadByte(0x4000)
	after := sched.Tstates()

	if after-before != 9 {
		t.Fatalf("ReadByte advanced tstates by %d, want 9 (6 contention + 3)", after-before)
	}
}

func TestMemoryMapReadWritePageTablesAreIndependent(t *testing.T) {
	mm, _ := newTestMemoryMap()
	romBuf := make([]byte, PageSize)
	ramBuf := make([]byte, PageSize)
	romBuf[0] = 0x11

	mm.MapReadPage(0, MemoryPage{Source: SourceROM, PageNum: 0, Buffer: romBuf, Writable: false})
	mm.MapWritePage(0, MemoryPage{Source: SourceRAM, PageNum: 0, Buffer: ramBuf, Writable: true})

	mm.WriteByteInternal(0x0000, 0x99)
	if ramBuf[0] != 0x99 {
		t.Fatalf("write-table RAM buffer = %#x, want 0x99", ramBuf[0])
	}
	if got := mm.ReadByteInternal(0x0000); got != 0x11 {
		t.Fatalf("read-table ROM buffer read back %#x, want 0x11 (shadow config)", got)
	}
}
