package main

import "testing"

func TestContentionTimingNoneIsAllZero(t *testing.T) {
	ct := NewContentionTables(ContentionTimingNone)
	for _, i := range []uint32{0, 14335, 40000, ULAContentionSize - 1} {
		if got := ct.DelayMREQ(i); got != 0 {
			t.Fatalf("DelayMREQ(%d) = %d, want 0 for ContentionTimingNone", i, got)
		}
	}
}

func TestContentionDelayFollowsPeriod8ShapeWithinContendedLine(t *testing.T) {
	ct := NewContentionTables(ContentionTiming48KLate)
	const firstLineStart = 14336
	want := [8]byte{6, 5, 4, 3, 2, 1, 0, 0}
	for t8 := uint32(0); t8 < 8; t8++ {
		got := ct.DelayMREQ(firstLineStart + t8)
		if got != want[t8] {
			t.Fatalf("DelayMREQ(%d) = %d, want %d", firstLineStart+t8, got, want[t8])
		}
	}
}

func TestContentionZeroOutsideDisplayLines(t *testing.T) {
	ct := NewContentionTables(ContentionTiming48KLate)
	if got := ct.DelayMREQ(0); got != 0 {
		t.Fatalf("DelayMREQ(0) = %d, want 0 (before first display line)", got)
	}
}

func TestContentionDelayOutOfRangeIsZero(t *testing.T) {
	ct := NewContentionTables(ContentionTiming48KLate)
	if got := ct.DelayMREQ(ULAContentionSize); got != 0 {
		t.Fatalf("DelayMREQ(ULAContentionSize) = %d, want 0", got)
	}
	if got := ct.DelayNoMREQ(ULAContentionSize + 1000); got != 0 {
		t.Fatalf("DelayNoMREQ beyond table = %d, want 0", got)
	}
}

func TestContentionChecksumIsDeterministicAndTimingDependent(t *testing.T) {
	a := NewContentionTables(ContentionTiming48KLate).Checksum()
	b := NewContentionTables(ContentionTiming48KLate).Checksum()
	if a != b {
		t.Fatalf("Checksum() not deterministic: %d vs %d", a, b)
	}
	if a == 0 {
		t.Fatal("Checksum() of a contended profile must be non-zero")
	}

	none := NewContentionTables(ContentionTimingNone).Checksum()
	if none != 0 {
		t.Fatalf("Checksum() for ContentionTimingNone = %d, want 0", none)
	}

	early := NewContentionTables(ContentionTiming48KEarly).Checksum()
	late := NewContentionTables(ContentionTiming48KLate).Checksum()
	if early == late {
		t.Fatal("48K early and late profiles produced identical checksums; expected the 1-tstate start offset to differ")
	}
}

// TestContention48KLateChecksumMatchesPublishedConstant guards against the
// off-by-one against fuse's tabulated per-machine checksums (spec.md §8).
func TestContention48KLateChecksumMatchesPublishedConstant(t *testing.T) {
	const want = 2308927488
	if got := NewContentionTables(ContentionTiming48KLate).Checksum(); got != want {
		t.Fatalf("Checksum() for 48K late = %d, want %d", got, want)
	}
}
