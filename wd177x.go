// wd177x.go - WD177x/FD179x floppy disk controller (spec.md §4.6)

package main

// WDType selects the exact chip variant, which affects step rates and the
// optional alternate sector-length code set (WD2797).
type WDType int

const (
	WD1773 WDType = iota
	FD1793
	WD1770
	WD1772
	WD2797
)

// WDFlags are interface-specific wiring options (spec.md §4.5/§4.6).
type WDFlags uint

const (
	WDFlagNone    WDFlags = 0
	WDFlagBeta128 WDFlags = 1 << iota
	WDFlagDRQ
	WDFlagRDY
	WDFlagNoHLT
)

// Status register bits, shared across all WD177x commands (spec.md §4.6).
const (
	wdSRMotorOn = 1 << 7
	wdSRWrprot  = 1 << 6
	wdSRSpinup  = 1 << 5
	wdSRRNF     = 1 << 4
	wdSRCRCErr  = 1 << 3
	wdSRLost    = 1 << 2
	wdSRIdxDRQ  = 1 << 1
	wdSRBusy    = 1 << 0
)

type wdState int

const (
	wdStateNone wdState = iota
	wdStateSeek
	wdStateSeekDelay
	wdStateVerify
	wdStateRead
	wdStateWrite
	wdStateReadTrack
	wdStateWriteTrack
	wdStateReadID
)

type wdStatusType int

const (
	wdStatusType1 wdStatusType = iota
	wdStatusType2
)

// WD177x is a Western Digital-family floppy disk controller, driving a
// shared *FDD the way the Beta-128/+3-style interfaces do (spec.md §4.5).
type WD177x struct {
	Drive *FDD

	Type  WDType
	Rates [4]uint32 // per-chip step-rate table, in T-states
	Flags WDFlags

	direction int // 0 = spindlewards (toward 0), 1 = rimwards
	dden      bool
	intrq     bool
	datarq    bool
	headLoad  bool
	hlt       bool

	state      wdState
	statusType wdStatusType
	readID     bool

	idMark   int
	idTrack  int
	idHead   int
	idSector int
	idLength int
	sectorSz int
	ddam     bool
	rev      int

	dataCheckHead   int
	dataMultisector bool
	dataOffset      int

	CR, SR, TR, Sec, DR byte
	crc                 uint16

	sched           *Scheduler
	eventType       EventTypeID
	motorOffType    EventTypeID
	timeoutType     EventTypeID
	SetIntrq        func()
	ResetIntrqFn    func()
	SetDatarq       func()
	ResetDatarqFn   func()

	formatBuf []byte // pending write-track stream

	busy bool
}

// NewWD177x constructs a controller bound to a drive and scheduler.
func NewWD177x(sched *Scheduler, typ WDType, flags WDFlags) *WD177x {
	w := &WD177x{Type: typ, Flags: flags, sched: sched}
	switch typ {
	case WD1772:
		w.Rates = [4]uint32{2 * 3500000 / 1000, 3 * 3500000 / 1000, 5 * 3500000 / 1000, 6 * 3500000 / 1000}
	default:
		w.Rates = [4]uint32{6 * 3500000 / 1000, 12 * 3500000 / 1000, 20 * 3500000 / 1000, 30 * 3500000 / 1000}
	}
	w.eventType = sched.Register("wd_fdc_event", w.onFDCEvent)
	w.motorOffType = sched.Register("wd_fdc_motor_off", w.onMotorOffEvent)
	w.timeoutType = sched.Register("wd_fdc_timeout", w.onTimeoutEvent)
	return w
}

// MasterReset puts the controller into its power-on idle state.
func (w *WD177x) MasterReset() {
	w.state = wdStateNone
	w.SR = 0
	w.TR = 0
	w.Sec = 1
	w.DR = 0
	w.intrq = false
	w.datarq = false
	w.busy = false
}

func (w *WD177x) raiseIntrq() {
	w.intrq = true
	if w.SetIntrq != nil {
		w.SetIntrq()
	}
}

func (w *WD177x) lowerIntrq() {
	w.intrq = false
	if w.ResetIntrqFn != nil {
		w.ResetIntrqFn()
	}
}

func (w *WD177x) raiseDatarq() {
	w.datarq = true
	w.SR |= wdSRIdxDRQ
	if w.SetDatarq != nil {
		w.SetDatarq()
	}
}

func (w *WD177x) lowerDatarq() {
	w.datarq = false
	w.SR &^= wdSRIdxDRQ
	if w.ResetDatarqFn != nil {
		w.ResetDatarqFn()
	}
}

// SRRead returns the status register, composing the drive-derived bits.
func (w *WD177x) SRRead() byte {
	sr := w.SR
	if w.Drive != nil && w.Drive.Ready() {
		sr |= wdSRMotorOn
	}
	if w.statusType == wdStatusType1 {
		if w.Drive != nil && w.Drive.Track00() {
			sr |= wdSRLost
		}
		if w.Drive != nil && w.Drive.Index() {
			sr |= wdSRIdxDRQ
		}
	}
	if w.Drive != nil && w.Drive.WriteProtected() {
		sr |= wdSRWrprot
	}
	w.lowerIntrqOnRead()
	return sr
}

func (w *WD177x) lowerIntrqOnRead() { w.lowerIntrq() }

// CRWrite dispatches a new command by the high nibble of the command
// register, per the table in spec.md §4.6.
func (w *WD177x) CRWrite(b byte) {
	w.CR = b
	w.lowerIntrq()
	w.lowerDatarq()
	w.SR &^= wdSRCRCErr | wdSRRNF | wdSRIdxDRQ

	switch {
	case b&0xF0 == 0x00: // Restore
		w.statusType = wdStatusType1
		w.startType1(0xFF, 0)
	case b&0xF0 == 0x10: // Seek
		w.statusType = wdStatusType1
		dir := 0
		if w.DR > w.TR {
			dir = 1
		}
		w.startType1(int(w.DR), dir)
	case b&0xE0 == 0x20: // Step
		w.statusType = wdStatusType1
		target := int(w.TR - 1)
		if w.direction != 0 {
			target = int(w.TR + 1)
		}
		w.startType1(target, w.direction)
	case b&0xE0 == 0x40: // Step-in
		w.direction = 1
		w.statusType = wdStatusType1
		w.startType1(int(w.TR)+1, 1)
	case b&0xE0 == 0x60: // Step-out
		w.direction = 0
		w.statusType = wdStatusType1
		w.startType1(int(w.TR)-1, 0)
	case b&0xE0 == 0x80: // Read sector
		w.statusType = wdStatusType2
		w.startType2(false)
	case b&0xE0 == 0xA0: // Write sector
		w.statusType = wdStatusType2
		w.startType2(true)
	case b&0xF8 == 0xC0: // Read address
		w.statusType = wdStatusType2
		w.startReadID()
	case b&0xF8 == 0xE0: // Read track
		w.statusType = wdStatusType2
		w.startReadTrack()
	case b&0xF8 == 0xF0: // Write track
		w.statusType = wdStatusType2
		w.startWriteTrack()
	case b&0xF0 == 0xD0: // Force interrupt
		w.forceInterrupt(b)
	}
}

func (w *WD177x) startSpinup(cont func()) {
	if w.Drive != nil && !w.Drive.motorOn && w.CR&0x08 == 0 {
		w.Drive.MotorOn(true)
		w.sched.Add(w.sched.Tstates()+6*revolutionTstates, w.eventType, cont)
		return
	}
	cont()
}

func (w *WD177x) startType1(target int, dir int) {
	w.busy = true
	w.SR |= wdSRBusy
	w.rev = 5
	w.startSpinup(func() { w.type1Step(target, dir) })
}

func (w *WD177x) type1Step(target int, dir int) {
	if w.Drive == nil {
		w.finishType1(false)
		return
	}
	if int(w.TR) != target {
		if dir != 0 {
			w.Drive.Step(1)
			w.TR++
		} else {
			w.Drive.Step(-1)
			w.TR--
		}
		rate := w.Rates[w.CR&3]
		w.sched.Add(w.sched.Tstates()+rate, w.eventType, func() { w.type1Step(target, dir) })
		return
	}
	if w.CR&0x04 != 0 { // verify
		w.verifyTrack()
		return
	}
	w.finishType1(false)
}

func (w *WD177x) verifyTrack() {
	if w.Drive == nil || w.rev <= 0 {
		w.finishType1(true)
		return
	}
	found := w.scanIDMatchingTrack()
	if found {
		w.finishType1(false)
		return
	}
	w.rev--
	w.sched.Add(w.sched.Tstates()+revolutionTstates, w.eventType, func() { w.verifyTrack() })
}

func (w *WD177x) scanIDMatchingTrack() bool {
	if w.Drive == nil || w.Drive.disk == nil {
		return false
	}
	track, head, sector, length, ok := w.Drive.ReadIDField()
	if !ok {
		return false
	}
	w.idTrack, w.idHead, w.idSector, w.idLength = int(track), int(head), int(sector), int(length)
	return int(track) == int(w.TR)
}

func (w *WD177x) finishType1(rnf bool) {
	w.busy = false
	w.SR &^= wdSRBusy
	if rnf {
		w.SR |= wdSRRNF
	}
	if w.Drive != nil && w.Drive.Track00() {
		w.TR = 0
	}
	w.raiseIntrq()
}

func (w *WD177x) startType2(write bool) {
	if w.Flags&WDFlagRDY != 0 && (w.Drive == nil || !w.Drive.Ready()) {
		w.raiseIntrq()
		return
	}
	w.busy = true
	w.SR |= wdSRBusy
	w.SR &^= wdSRLost
	w.rev = 5
	w.startSpinup(func() { w.type2Scan(write) })
}

func (w *WD177x) type2Scan(write bool) {
	if w.rev <= 0 {
		w.busy = false
		w.SR &^= wdSRBusy
		w.SR |= wdSRRNF
		w.raiseIntrq()
		return
	}
	if w.scanIDMatchingSector() {
		if write {
			w.beginWriteSector()
		} else {
			w.beginReadSector()
		}
		return
	}
	w.rev--
	w.sched.Add(w.sched.Tstates()+revolutionTstates/10, w.eventType, func() { w.type2Scan(write) })
}

func (w *WD177x) scanIDMatchingSector() bool {
	if w.Drive == nil || w.Drive.disk == nil {
		return false
	}
	track, head, sector, length, ok := w.Drive.ReadIDField()
	if !ok {
		return false
	}
	w.idTrack, w.idHead, w.idSector, w.idLength = int(track), int(head), int(sector), int(length)
	return int(track) == int(w.TR) && int(sector) == int(w.Sec)
}

func (w *WD177x) beginReadSector() {
	w.state = wdStateRead
	w.sectorSz = 128 << uint(w.idLength&3)
	w.dataOffset = 0
	w.sched.Add(w.sched.Tstates()+5*revolutionTstates, w.timeoutType, nil)
	w.raiseDatarq()
}

func (w *WD177x) beginWriteSector() {
	if w.Drive != nil && w.Drive.WriteProtected() {
		w.busy = false
		w.SR &^= wdSRBusy
		w.SR |= wdSRWrprot
		w.raiseIntrq()
		return
	}
	w.state = wdStateWrite
	w.sectorSz = 128 << uint(w.idLength&3)
	w.dataOffset = 0
	w.raiseDatarq()
}

func (w *WD177x) startReadID() {
	w.busy = true
	w.SR |= wdSRBusy
	w.state = wdStateReadID
	w.dataOffset = 0
	if w.Drive != nil {
		if track, head, sector, length, ok := w.Drive.ReadIDField(); ok {
			w.idTrack, w.idHead, w.idSector, w.idLength = int(track), int(head), int(sector), int(length)
		} else {
			w.SR |= wdSRRNF
		}
	}
	w.raiseDatarq()
}

func (w *WD177x) startReadTrack() {
	w.busy = true
	w.SR |= wdSRBusy
	w.state = wdStateReadTrack
	w.dataOffset = 0
	w.raiseDatarq()
}

func (w *WD177x) startWriteTrack() {
	if w.Drive != nil && w.Drive.WriteProtected() {
		w.busy = false
		w.SR |= wdSRWrprot
		w.raiseIntrq()
		return
	}
	w.busy = true
	w.SR |= wdSRBusy
	w.state = wdStateWriteTrack
	w.formatBuf = w.formatBuf[:0]
	w.raiseDatarq()
}

func (w *WD177x) forceInterrupt(b byte) {
	w.state = wdStateNone
	w.busy = false
	w.SR &^= wdSRBusy | wdSRWrprot | wdSRCRCErr
	w.lowerDatarq()
	if b&0x08 != 0 {
		w.raiseIntrq()
		return
	}
	if b&0x04 != 0 && w.Drive != nil {
		w.Drive.WaitIndex(func() { w.raiseIntrq() })
	}
}

// DRRead services a DRQ-driven data transfer read cycle (spec.md §4.6).
func (w *WD177x) DRRead() byte {
	if !w.datarq || w.Drive == nil {
		return w.DR
	}
	switch w.state {
	case wdStateRead:
		v := byte(w.Drive.ReadData())
		w.DR = v
		w.dataOffset++
		if w.dataOffset >= w.sectorSz {
			w.lowerDatarq()
			w.busy = false
			w.SR &^= wdSRBusy
			if w.dataMultisector {
				w.Sec++
				w.startType2(false)
			} else {
				w.raiseIntrq()
			}
		}
	case wdStateReadID:
		ids := []byte{byte(w.idTrack), byte(w.idHead), byte(w.idSector), byte(w.idLength), 0, 0}
		w.DR = ids[w.dataOffset%len(ids)]
		w.dataOffset++
		if w.dataOffset >= len(ids) {
			w.lowerDatarq()
			w.busy = false
			w.SR &^= wdSRBusy
			w.raiseIntrq()
		}
	case wdStateReadTrack:
		v := byte(w.Drive.ReadData())
		w.DR = v
		w.dataOffset++
		if w.Drive.Index() && w.dataOffset > 1 {
			w.lowerDatarq()
			w.busy = false
			w.SR &^= wdSRBusy
			w.raiseIntrq()
		}
	}
	return w.DR
}

// DRWrite services a DRQ-driven data transfer write cycle, or buffers a
// write-track format byte.
func (w *WD177x) DRWrite(v byte) {
	w.DR = v
	if !w.datarq || w.Drive == nil {
		return
	}
	switch w.state {
	case wdStateWrite:
		w.Drive.WriteData(v, w.dden)
		w.dataOffset++
		if w.dataOffset >= w.sectorSz {
			w.lowerDatarq()
			w.busy = false
			w.SR &^= wdSRBusy
			if w.dataMultisector {
				w.Sec++
				w.startType2(true)
			} else {
				w.raiseIntrq()
			}
		}
	case wdStateWriteTrack:
		w.processFormatByte(v)
		if w.Drive.Index() && len(w.formatBuf) > 0 {
			w.lowerDatarq()
			w.busy = false
			w.SR &^= wdSRBusy
			w.raiseIntrq()
		}
	}
}

// processFormatByte implements the write-track format-byte grammar of
// spec.md §4.6: 0xF5 resets CRC and queues a clock-marked 0xA1, 0xF6 queues
// a clock-marked 0xC2, 0xF7 emits the current CRC, everything else is
// passed through with CRC accumulation.
func (w *WD177x) processFormatByte(b byte) {
	switch b {
	case 0xF5:
		w.crc = 0xCDB4 // CRC state after three pre-accumulated 0xA1 marks
		w.Drive.WriteData(0xA1, true)
	case 0xF6:
		w.Drive.WriteData(0xC2, true)
	case 0xF7:
		w.Drive.WriteData(byte(w.crc>>8), false)
		w.Drive.WriteData(byte(w.crc), false)
	default:
		w.Drive.WriteData(b, false)
		w.crc = crcCCITTStep(w.crc, b)
	}
	w.formatBuf = append(w.formatBuf, b)
}

func crcCCITTStep(crc uint16, b byte) uint16 {
	crc ^= uint16(b) << 8
	for i := 0; i < 8; i++ {
		if crc&0x8000 != 0 {
			crc = (crc << 1) ^ 0x1021
		} else {
			crc <<= 1
		}
	}
	return crc
}

func (w *WD177x) onFDCEvent(_ uint32, _ EventTypeID, userData any) {
	if cont, ok := userData.(func()); ok && cont != nil {
		cont()
	}
}

func (w *WD177x) onMotorOffEvent(_ uint32, _ EventTypeID, _ any) {
	if w.Drive != nil {
		w.Drive.MotorOn(false)
	}
}

func (w *WD177x) onTimeoutEvent(_ uint32, _ EventTypeID, _ any) {
	if w.datarq {
		w.SR |= wdSRLost
		w.lowerDatarq()
		w.busy = false
		w.SR &^= wdSRBusy
		w.raiseIntrq()
	}
}

// TRRead/TRWrite, SecRead/SecWrite expose the raw registers directly.
func (w *WD177x) TRRead() byte       { return w.TR }
func (w *WD177x) TRWrite(b byte)     { w.TR = b }
func (w *WD177x) SecRead() byte      { return w.Sec }
func (w *WD177x) SecWrite(b byte)    { w.Sec = b }
