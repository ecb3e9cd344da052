// upd765.go - NEC µPD765 floppy disk controller (spec.md §4.6, +3 wiring)

package main

// UPDType distinguishes the 765A/765B silicon revisions (result-byte
// cosmetics only for this core).
type UPDType int

const (
	UPD765A UPDType = iota
	UPD765B
)

type UPDClock int

const (
	UPDClock4MHz UPDClock = iota
	UPDClock8MHz
)

type updCmdID int

const (
	updCmdReadData updCmdID = iota
	updCmdReadDiag
	updCmdWriteData
	updCmdWriteID
	updCmdScan
	updCmdReadID
	updCmdRecalibrate
	updCmdSenseInt
	updCmdSpecify
	updCmdSenseDrive
	updCmdVersion
	updCmdSeek
	updCmdInvalid
)

type updCommand struct {
	id        updCmdID
	mask, val byte
	cmdLen    int
	resLen    int
}

// updCommandTable mirrors the mask/match dispatch table of the original
// controller (spec.md §4.6 table plus the NEC-specific opcodes).
var updCommandTable = []updCommand{
	{updCmdReadData, 0x1F, 0x06, 9, 7},
	{updCmdReadDiag, 0x1F, 0x0C, 9, 7},
	{updCmdWriteData, 0x3F, 0x05, 9, 7},
	{updCmdWriteID, 0xBF, 0x0D, 6, 7},
	{updCmdScan, 0x1F, 0x11, 9, 7},
	{updCmdReadID, 0xBF, 0x0A, 2, 7},
	{updCmdRecalibrate, 0xFF, 0x07, 2, 0},
	{updCmdSenseInt, 0xFF, 0x08, 1, 2},
	{updCmdSpecify, 0xFF, 0x03, 3, 0},
	{updCmdSenseDrive, 0xFF, 0x04, 2, 1},
	{updCmdVersion, 0xFF, 0x10, 1, 1},
	{updCmdSeek, 0xFF, 0x0F, 3, 0},
}

type updState int

const (
	updStateCmd updState = iota
	updStateExe
	updStateRes
)

// UPD765 is the µPD765/8272-compatible disk controller wired to up to 4
// shared *FDD drives (spec.md §4.6).
type UPD765 struct {
	Drives [4]*FDD
	us     int // currently selected unit 0-3

	Type  UPDType
	Clock UPDClock

	stpRate int
	hutTime int
	hldTime int
	nonDMA  bool

	direction int

	state updState
	cmd   *updCommand

	cmdBuf [9]byte
	cmdLen int
	resBuf [7]byte
	resLen int
	resPos int

	mainStatus byte

	idTrack, idHead, idSector, idLength int
	eot                                 int
	mt, mf, sk                          bool
	hd, rlen                            int
	rev                                 int
	dataOffset                          int
	cycle                               int

	pcn [4]int
	ncn [4]int

	lastSectorRead uint
	Speedlock      int // -1 disables the Speedlock "random sector" quirk

	sched        *Scheduler
	eventType    EventTypeID
	SetIntrq     func()
	ResetIntrqFn func()
	SetDatarq    func()
	ResetDatarqF func()

	intrqPending bool
	seekDone     [4]bool
	seekAbnormal [4]bool
}

// Main status register bits.
const (
	updMSQM  = 1 << iota // command byte not understood
	updMSD0B             // drive 0 busy
	updMSD1B
	updMSD2B
	updMSD3B
	updMSExm // execution phase
	updMSDio // direction: 1 = controller->CPU
	updMSRqm // request for master (ready for data transfer)
)

// NewUPD765 constructs a controller. Any speedlock value other than -1
// enables the historical "last sector returns garbage on repeated reads"
// quirk some protections rely on (the field then serves as the per-read
// counter); speedlock=-1 disables it entirely (spec.md §9 Open Questions).
func NewUPD765(sched *Scheduler, typ UPDType, clock UPDClock, speedlock int) *UPD765 {
	u := &UPD765{Type: typ, Clock: clock, sched: sched, Speedlock: speedlock}
	u.eventType = sched.Register("upd_fdc_event", u.onEvent)
	u.MasterReset()
	return u
}

// MasterReset returns the controller to its idle command-phase state.
func (u *UPD765) MasterReset() {
	u.state = updStateCmd
	u.cmdLen = 0
	u.mainStatus = updMSRqm
	u.stpRate = 6
	u.hutTime = 240
	u.hldTime = 2
	for i := range u.pcn {
		u.pcn[i] = 0
		u.ncn[i] = 0
	}
}

func (u *UPD765) currentDrive() *FDD { return u.Drives[u.us] }

// ReadStatus returns the main status register.
func (u *UPD765) ReadStatus() byte { return u.mainStatus }

// WriteData accepts a command/parameter byte in command phase, or a data
// byte during a WRITE-phase execution.
func (u *UPD765) WriteData(b byte) {
	switch u.state {
	case updStateCmd:
		u.feedCommandByte(b)
	case updStateExe:
		if u.cmd != nil && (u.cmd.id == updCmdWriteData || u.cmd.id == updCmdWriteID) {
			u.writeExecByte(b)
		}
	}
}

func (u *UPD765) feedCommandByte(b byte) {
	if u.cmdLen == 0 {
		cmd := lookupUPDCommand(b)
		if cmd == nil {
			u.mainStatus |= updMSQM
			u.beginResult([]byte{0x80})
			return
		}
		u.cmd = cmd
	}
	u.cmdBuf[u.cmdLen] = b
	u.cmdLen++
	if u.cmdLen >= u.cmd.cmdLen {
		u.executeCommand()
	}
}

func lookupUPDCommand(b byte) *updCommand {
	for i := range updCommandTable {
		if b&updCommandTable[i].mask == updCommandTable[i].val {
			return &updCommandTable[i]
		}
	}
	return nil
}

func (u *UPD765) executeCommand() {
	c := u.cmdBuf
	switch u.cmd.id {
	case updCmdSpecify:
		u.stpRate = int(c[1] >> 4)
		u.hutTime = int(c[1] & 0x0F)
		u.nonDMA = c[2]&1 != 0
		u.reset()
	case updCmdSenseDrive:
		u.us = int(c[1] & 3)
		st3 := byte(u.us)
		if u.currentDrive() != nil {
			if u.currentDrive().Track00() {
				st3 |= 1 << 4
			}
			if u.currentDrive().WriteProtected() {
				st3 |= 1 << 6
			}
			st3 |= 1 << 5 // ready
		}
		u.beginResult([]byte{st3})
	case updCmdVersion:
		u.beginResult([]byte{0x80})
	case updCmdSenseInt:
		u.handleSenseInterrupt()
	case updCmdRecalibrate:
		u.us = int(c[1] & 3)
		u.startSeek(0)
	case updCmdSeek:
		u.us = int(c[1] & 3)
		u.startSeek(int(c[2]))
	case updCmdReadID:
		u.us = int(c[1] & 3)
		u.hd = int(c[1]>>2) & 1
		u.startReadID()
	case updCmdReadData, updCmdReadDiag:
		u.us = int(c[1] & 3)
		u.mt = c[0]&0x80 != 0
		u.mf = c[0]&0x40 != 0
		u.sk = c[0]&0x20 != 0
		u.hd = int(c[1]>>2) & 1
		u.idTrack = int(c[2])
		u.idHead = int(c[3])
		u.idSector = int(c[4])
		u.idLength = int(c[5])
		u.eot = int(c[6])
		u.startRead()
	case updCmdWriteData:
		u.us = int(c[1] & 3)
		u.mt = c[0]&0x80 != 0
		u.mf = c[0]&0x40 != 0
		u.hd = int(c[1]>>2) & 1
		u.idTrack = int(c[2])
		u.idHead = int(c[3])
		u.idSector = int(c[4])
		u.idLength = int(c[5])
		u.startWrite()
	default:
		u.beginResult([]byte{0x80})
	}
	u.cmdLen = 0
}

func (u *UPD765) reset() {}

func (u *UPD765) startSeek(cylinder int) {
	drive := u.currentDrive()
	if drive == nil {
		u.seekAbnormal[u.us] = true
		u.seekDone[u.us] = true
		u.raiseSeekIntrq()
		return
	}
	dir := 1
	if cylinder < drive.Cylinder() {
		dir = -1
	}
	u.ncn[u.us] = cylinder
	u.seekStep(dir)
}

func (u *UPD765) seekStep(dir int) {
	drive := u.currentDrive()
	if drive.Cylinder() == u.ncn[u.us] {
		u.pcn[u.us] = drive.Cylinder()
		u.seekDone[u.us] = true
		u.raiseSeekIntrq()
		return
	}
	drive.Step(dir)
	rateTstates := uint32(u.stpRate) * 3500
	u.sched.Add(u.sched.Tstates()+rateTstates, u.eventType, func() { u.seekStep(dir) })
}

func (u *UPD765) raiseSeekIntrq() {
	u.intrqPending = true
	if u.SetIntrq != nil {
		u.SetIntrq()
	}
}

func (u *UPD765) handleSenseInterrupt() {
	u.intrqPending = false
	st0 := byte(u.us)
	if u.seekAbnormal[u.us] {
		st0 |= 0x40
	}
	if u.seekDone[u.us] {
		st0 |= 0x20
	}
	u.seekDone[u.us] = false
	u.seekAbnormal[u.us] = false
	u.beginResult([]byte{st0, byte(u.pcn[u.us])})
	if u.ResetIntrqFn != nil {
		u.ResetIntrqFn()
	}
}

func (u *UPD765) startReadID() {
	drive := u.currentDrive()
	u.state = updStateExe
	u.mainStatus |= updMSExm
	if drive == nil {
		u.finishResultFail()
		return
	}
	u.beginResult([]byte{
		u.st0(), u.st1(), 0,
		byte(drive.Cylinder()), byte(u.hd), 1, 2,
	})
}

func (u *UPD765) startRead() {
	drive := u.currentDrive()
	u.state = updStateExe
	u.mainStatus |= updMSExm | updMSDio
	u.dataOffset = 0
	if drive == nil {
		u.finishResultFail()
		return
	}

	// Speedlock hack, ported verbatim from upd_fdc.c's READ_DATA command
	// dispatch: some loaders re-issue READ_DATA for the same (H,C,R) with
	// EOT==R to detect whether the FDC returns identical bytes on a repeat
	// read; real silicon (lacking a sector buffer) scrambles every 29th
	// byte on the second and later reads, which this reproduces rather than
	// "fixing" (spec.md §9 Open Questions).
	if u.Speedlock != -1 {
		magic := (u.idHead & 1) + (u.idTrack << 1) + (u.idSector << 8)
		if u.idSector == u.eot && magic == 0x200 {
			if uint(magic) == u.lastSectorRead {
				u.Speedlock++
			} else {
				u.Speedlock = 0
				u.lastSectorRead = uint(magic)
			}
		} else {
			u.lastSectorRead = 0
			u.Speedlock = 0
		}
	}

	u.setDatarqReadable()
}

func (u *UPD765) setDatarqReadable() {
	u.mainStatus |= updMSRqm
	if u.SetDatarq != nil {
		u.SetDatarq()
	}
}

// ReadData services the execution-phase data transfer for READ commands,
// and the result-phase byte stream once execution completes.
func (u *UPD765) ReadData() byte {
	switch u.state {
	case updStateExe:
		drive := u.currentDrive()
		if drive == nil {
			return 0
		}
		v := byte(drive.ReadData())
		u.dataOffset++
		if u.Speedlock > 0 {
			if u.dataOffset < 64 && v != 0xE5 {
				u.Speedlock = 2 // W.E.C Le Mans-style loader detected
			} else if (u.Speedlock > 1 || u.dataOffset < 64) && u.dataOffset%29 == 0 {
				v ^= byte(u.dataOffset)
			}
		}
		sz := 128 << uint(u.idLength&3)
		if u.dataOffset >= sz {
			u.idSector++
			if u.mt && u.idSector > 2 {
				u.hd ^= 1
				u.idSector = 1
			}
			u.finishReadResult()
		}
		return v
	case updStateRes:
		return u.takeResultByte()
	}
	return 0
}

func (u *UPD765) finishReadResult() {
	u.beginResult([]byte{u.st0(), u.st1(), u.st2(), byte(u.idTrack), byte(u.idHead), byte(u.idSector), byte(u.idLength)})
}

func (u *UPD765) finishResultFail() {
	u.beginResult([]byte{u.st0() | 0x40, u.st1() | 0x01, 0, byte(u.idTrack), byte(u.idHead), byte(u.idSector), byte(u.idLength)})
}

func (u *UPD765) startWrite() {
	drive := u.currentDrive()
	u.state = updStateExe
	u.mainStatus |= updMSExm
	u.mainStatus &^= updMSDio
	u.dataOffset = 0
	if drive == nil || drive.WriteProtected() {
		u.finishResultFail()
		return
	}
	u.mainStatus |= updMSRqm
}

func (u *UPD765) writeExecByte(b byte) {
	drive := u.currentDrive()
	if drive == nil {
		return
	}
	drive.WriteData(b, u.mf)
	u.dataOffset++
	sz := 128 << uint(u.idLength&3)
	if u.dataOffset >= sz {
		u.idSector++
		u.finishReadResult()
	}
}

func (u *UPD765) st0() byte {
	var v byte
	if u.currentDrive() == nil {
		v |= 0x08
	}
	return v | byte(u.us) | byte(u.hd<<2)
}

func (u *UPD765) st1() byte {
	var v byte
	if u.currentDrive() == nil {
		v |= 0x01 // no data / missing address mark
	}
	return v
}

func (u *UPD765) st2() byte { return 0 }

func (u *UPD765) beginResult(bytes []byte) {
	u.state = updStateRes
	u.resLen = len(bytes)
	copy(u.resBuf[:], bytes)
	u.resPos = 0
	u.mainStatus |= updMSRqm | updMSDio
	u.mainStatus &^= updMSExm
}

func (u *UPD765) takeResultByte() byte {
	if u.resPos >= u.resLen {
		u.state = updStateCmd
		u.mainStatus &^= updMSDio
		return 0
	}
	v := u.resBuf[u.resPos]
	u.resPos++
	if u.resPos >= u.resLen {
		u.state = updStateCmd
		u.mainStatus &^= updMSDio
	}
	return v
}

func (u *UPD765) onEvent(_ uint32, _ EventTypeID, userData any) {
	if cont, ok := userData.(func()); ok && cont != nil {
		cont()
	}
}
