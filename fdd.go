// fdd.go - floppy drive model ([D] in SPEC_FULL.md)

package main

// FDDType selects the drive's physical interface wiring, per spec.md §3.
type FDDType int

const (
	FDDNone FDDType = iota
	FDDShugart
	FDDIBMPC
)

// markFM and markWeak name the bits of Disk.marks (spec.md §4.5: FM bit0, weak bit1),
// resolved from _examples/original_source/cores/fuse/peripherals/disk/fdd.h.
const (
	markFM   = 1 << 0
	markWeak = 1 << 1
)

// Disk is the media side of a drive: a byte-oriented track buffer plus the
// clock-bits / mark / weak-sector bitmaps spec.md §3 describes.
type Disk struct {
	Sides         int
	Cylinders     int
	BytesPerTrack int

	// track[cyl][side] is a raw byte buffer of length BytesPerTrack.
	track [][][]byte
	// marks[cyl][side][i] carries the FM/weak bits for byte i of that track.
	marks [][][]byte

	i int // current read/write position on the active track

	WriteProtect bool
	Density      int // 0 = FM, 1 = MFM
	Dirty        bool
	HaveWeak     bool

	rng *prng
}

// NewDisk allocates a blank (all zero) disk of the given geometry.
func NewDisk(sides, cylinders, bytesPerTrack int, rng *prng) *Disk {
	d := &Disk{
		Sides: sides, Cylinders: cylinders, BytesPerTrack: bytesPerTrack,
		rng: rng,
	}
	d.track = make([][][]byte, cylinders)
	d.marks = make([][][]byte, cylinders)
	for c := 0; c < cylinders; c++ {
		d.track[c] = make([][]byte, sides)
		d.marks[c] = make([][]byte, sides)
		for s := 0; s < sides; s++ {
			d.track[c][s] = make([]byte, bytesPerTrack)
			d.marks[c][s] = make([]byte, bytesPerTrack)
		}
	}
	return d
}

// FDD is one physical drive: geometry, current head position, and the
// loaded Disk (if any), per spec.md §3.
type FDD struct {
	Type      FDDType
	Heads     int
	Cylinders int

	curHead     int
	curCylinder int
	indexPulse  bool
	tr00        bool
	wrprotLine  bool

	dataWord uint16 // bits 7..0 = last byte, bit 8 = clock-mark indicator
	marks    byte

	disk       *Disk
	loaded     bool
	upsideDown bool
	selected   bool
	ready      bool
	dskchg     bool
	hdout      bool
	status     byte

	motorOn    bool
	headLoaded bool

	indexPulseToggle bool
	indexPulsesSeen  int

	fdcIndexCallback func()
	sched            *Scheduler
	readyEventType   EventTypeID
	indexEventType   EventTypeID
	motorOffTimer    EventTypeID

	rng *prng

	curTrackUnreadable bool
}

// NewFDD creates a drive in the NONE state; Init fixes geometry afterwards
// (spec.md §3 Lifecycle).
func NewFDD(sched *Scheduler, rng *prng) *FDD {
	f := &FDD{Type: FDDNone, sched: sched, rng: rng}
	f.readyEventType = sched.Register("fdd_ready", f.onReadyEvent)
	f.indexEventType = sched.Register("fdd_index", f.onIndexEvent)
	f.motorOffTimer = sched.Register("fdd_motor_off", f.onMotorOffEvent)
	return f
}

// Init fixes the drive's physical geometry.
func (f *FDD) Init(typ FDDType, heads, cylinders int) {
	f.Type = typ
	f.Heads = heads
	f.Cylinders = cylinders
}

// Load populates the disk sub-object and sets loaded, per spec.md §3.
func (f *FDD) Load(disk *Disk, flipped bool) {
	f.disk = disk
	f.loaded = true
	f.upsideDown = flipped
	f.wrprotLine = disk.WriteProtect
	f.dskchg = true
}

// Unload clears loaded/ready/dskchg/hdout and raises write-protect
// (spec.md §3 Lifecycle).
func (f *FDD) Unload() {
	f.disk = nil
	f.loaded = false
	f.ready = false
	f.dskchg = false
	f.hdout = false
	f.wrprotLine = true
}

// Select toggles selection; on a Shugart-style interface, selection couples
// head-load (spec.md §3/§Glossary).
func (f *FDD) Select(on bool) {
	f.selected = on
	if f.Type == FDDShugart {
		f.headLoaded = on
	}
}

// SetHead sets the active side. If the disk has only one side and the
// logical head is 1, the track becomes unreadable (spec.md §4.5).
func (f *FDD) SetHead(head int) {
	f.curHead = head
	f.hdout = head != 0
	f.refreshTrackPointer(0)
}

const revolutionTstates = uint32(200 * 3500) // ~200ms/rev at 3.5MHz

// MotorOn schedules the READY-arming event (2 revolutions) and the
// alternating index-pulse event (10ms pulse / 190ms gap), per spec.md §4.5's
// TEAC FD-55 protocol.
func (f *FDD) MotorOn(on bool) {
	if on == f.motorOn {
		return
	}
	f.motorOn = on
	if on {
		f.sched.RemoveTypeUserData(f.motorOffTimer, f)
		f.indexPulsesSeen = 0
		f.sched.Add(f.sched.Tstates()+2*revolutionTstates, f.readyEventType, f)
		f.armIndexPulse(true)
	} else {
		f.sched.Add(f.sched.Tstates()+uint32(1.5*float64(revolutionTstates)), f.motorOffTimer, f)
	}
}

func (f *FDD) armIndexPulse(pulsePhase bool) {
	f.indexPulseToggle = pulsePhase
	var delay uint32
	if pulsePhase {
		delay = uint32(10 * 3500) // 10ms pulse width
	} else {
		delay = uint32(190 * 3500) // 190ms gap
	}
	f.sched.Add(f.sched.Tstates()+delay, f.indexEventType, f)
}

func (f *FDD) onReadyEvent(_ uint32, _ EventTypeID, userData any) {
	if userData != any(f) {
		return
	}
	if f.loaded && f.motorOn {
		f.ready = true
	}
}

func (f *FDD) onMotorOffEvent(_ uint32, _ EventTypeID, userData any) {
	if userData != any(f) {
		return
	}
	f.ready = false
}

func (f *FDD) onIndexEvent(_ uint32, _ EventTypeID, userData any) {
	if userData != any(f) {
		return
	}
	f.indexPulse = f.indexPulseToggle
	if f.indexPulseToggle {
		f.indexPulsesSeen++
	}
	if f.motorOn {
		f.armIndexPulse(!f.indexPulseToggle)
	}
	if f.indexPulse && f.fdcIndexCallback != nil {
		cb := f.fdcIndexCallback
		f.fdcIndexCallback = nil
		cb()
	}
}

// WaitIndex arms the one-shot callback the FDC consults to implement
// "wait one revolution" primitives without busy-polling (spec.md §4.5).
func (f *FDD) WaitIndex(cb func()) { f.fdcIndexCallback = cb }

// Ready reports the drive's documented readiness invariant: loaded AND
// motor-on AND two index pulses counted.
func (f *FDD) Ready() bool { return f.loaded && f.motorOn && f.indexPulsesSeen >= 2 && f.ready }

func (f *FDD) refreshTrackPointer(slipFraction float64) {
	if f.disk == nil {
		f.curTrackUnreadable = true
		return
	}
	side := f.curHead
	if f.upsideDown {
		side = f.disk.Sides - 1 - side
	}
	if side < 0 || side >= f.disk.Sides {
		f.curTrackUnreadable = true
		return
	}
	f.curTrackUnreadable = false
	if f.disk.BytesPerTrack > 0 {
		slip := int(float64(f.disk.BytesPerTrack) * slipFraction)
		f.disk.i = ((f.disk.i + slip) % f.disk.BytesPerTrack + f.disk.BytesPerTrack) % f.disk.BytesPerTrack
	}
}

// Step moves the head one cylinder in dir (+1 or -1), clamped to
// [0,Cylinders), refreshing tr00 and applying the ±10% rotational slip
// spec.md §4.5 documents.
func (f *FDD) Step(dir int) {
	f.curCylinder += dir
	if f.curCylinder < 0 {
		f.curCylinder = 0
	}
	if f.curCylinder >= f.Cylinders {
		f.curCylinder = f.Cylinders - 1
	}
	f.tr00 = f.curCylinder == 0

	slip := (f.rng.next()%21 - 10) // -10..+10 percent
	f.refreshTrackPointer(float64(slip) / 100.0)
}

// ReadData advances the read position and returns the 16-bit data word:
// bits 7..0 the raw byte, bit 8 set for a mark byte. A weak sector mangles
// the bits with two PRNG bytes, per spec.md §4.5.
func (f *FDD) ReadData() uint16 {
	if f.curTrackUnreadable || f.disk == nil || f.disk.BytesPerTrack == 0 {
		return 0x100
	}
	side := f.currentSide()
	track := f.disk.track[f.curCylinder][side]
	marks := f.disk.marks[f.curCylinder][side]
	i := f.disk.i
	b := track[i]
	m := marks[i]

	var word uint16 = uint16(b)
	if m&markFM != 0 {
		word |= 0x100
	}
	if m&markWeak != 0 {
		r1 := byte(f.rng.next())
		r2 := byte(f.rng.next())
		word = uint16((byte(word) & r1) | r2)
	}

	f.disk.i++
	if f.disk.i >= f.disk.BytesPerTrack {
		f.disk.i = 0
		f.indexPulse = true
	} else {
		f.indexPulse = false
	}
	return word
}

// ReadIDField scans forward from the current head position for the next ID
// address mark (three FM-marked 0xA1 sync bytes followed by an unmarked
// 0xFE, per the write-track encoding processFormatByte lays down) and
// returns its four header bytes, leaving the head positioned just past the
// ID field's CRC. ok is false if no ID field is found within one full
// revolution (spec.md §4.6).
func (f *FDD) ReadIDField() (track, head, sector, length byte, ok bool) {
	if f.disk == nil || f.disk.BytesPerTrack == 0 {
		return 0, 0, 0, 0, false
	}
	sync := 0
	for i := 0; i < f.disk.BytesPerTrack; i++ {
		word := f.ReadData()
		b := byte(word)
		marked := word&0x100 != 0
		if marked && b == 0xA1 {
			sync++
			continue
		}
		if sync >= 3 && !marked && b == 0xFE {
			track = byte(f.ReadData())
			head = byte(f.ReadData())
			sector = byte(f.ReadData())
			length = byte(f.ReadData())
			f.ReadData() // CRC high byte
			f.ReadData() // CRC low byte
			return track, head, sector, length, true
		}
		sync = 0
	}
	return 0, 0, 0, 0, false
}

// WriteData writes the next byte (and its mark bit) and advances.
func (f *FDD) WriteData(value byte, mark bool) {
	if f.curTrackUnreadable || f.disk == nil || f.disk.WriteProtect || f.disk.BytesPerTrack == 0 {
		return
	}
	side := f.currentSide()
	track := f.disk.track[f.curCylinder][side]
	marks := f.disk.marks[f.curCylinder][side]
	i := f.disk.i
	track[i] = value
	if mark {
		marks[i] |= markFM
	} else {
		marks[i] &^= markFM
	}
	f.disk.Dirty = true

	f.disk.i++
	if f.disk.i >= f.disk.BytesPerTrack {
		f.disk.i = 0
		f.indexPulse = true
	} else {
		f.indexPulse = false
	}
}

func (f *FDD) currentSide() int {
	side := f.curHead
	if f.upsideDown {
		side = f.disk.Sides - 1 - side
	}
	return side
}

// Index reports whether the head is currently over the index hole.
func (f *FDD) Index() bool { return f.indexPulse }

// Cylinder/Track00/WriteProtected/Loaded are read accessors the FDCs poll.
func (f *FDD) Cylinder() int        { return f.curCylinder }
func (f *FDD) Track00() bool        { return f.tr00 }
func (f *FDD) WriteProtected() bool { return f.wrprotLine }
func (f *FDD) Loaded() bool         { return f.loaded }
