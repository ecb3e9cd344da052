// rzx.go - RZX input recording / playback (spec.md §4.8)

package main

// RZXSentinelTime bounds how long a frame may run during playback before
// the sentinel event forces a time-base correction (spec.md §4.8).
const RZXSentinelTime = uint32(ULAContentionSize) - 1000

// RZXSnapshotFn captures or restores the machine's full state for embedding
// in, or loading from, an RZX chunk. The core never serializes snapshot
// bytes itself (spec.md §1 Non-goals); these are supplied by the owner.
type RZXSnapshotFn func() []byte
type RZXRestoreFn func(snapshot []byte)

// RZXFrame is one recorded interrupt-to-interrupt frame: how many
// instructions it covers and the IN bytes consumed during it.
type RZXFrame struct {
	InstructionCount uint32
	InBytes          []byte
	Snapshot         []byte // non-nil at an autosave/embedded-snapshot boundary
}

// RZXIRB is an input recording block: a contiguous run of frames.
type RZXIRB struct {
	Frames []RZXFrame
}

type rzxMode int

const (
	rzxIdle rzxMode = iota
	rzxRecording
	rzxPlaying
)

// RZX coordinates record/playback of a deterministic input stream against
// the Z80 core and scheduler (spec.md §4.8).
type RZX struct {
	z     *Z80
	sched *Scheduler
	log   *Logger

	mode rzxMode

	irbs []RZXIRB

	// recording state
	curFrame        RZXFrame
	instructionsOff int32 // rzx_instructions_offset
	framesSinceSave int
	capture         func() []byte

	// playback state
	playIRB      int
	playFrame    int
	playByteIdx  int
	restore      RZXRestoreFn
	sentinelType EventTypeID
	frameType    EventTypeID

	warnedSentinel bool

	OnStop func()
}

// NewRZX binds the recorder/player to a CPU, scheduler, and the machine's
// diagnostic logger (spec.md §4.8's sentinel warning is emitted through it).
func NewRZX(z *Z80, sched *Scheduler, log *Logger) *RZX {
	r := &RZX{z: z, sched: sched, log: log}
	r.sentinelType = sched.Register("rzx_sentinel", r.onSentinel)
	r.frameType = sched.Register("rzx_frame", r.onPlaybackFrameEvent)
	return r
}

// StartRecording begins a new IRB, optionally capturing an initial
// snapshot via capture (spec.md §4.8 Record).
func (r *RZX) StartRecording(capture func() []byte, embedSnapshot bool) {
	r.mode = rzxRecording
	r.capture = capture
	r.irbs = append(r.irbs, RZXIRB{})
	r.framesSinceSave = 0
	if embedSnapshot && capture != nil {
		r.irbs[len(r.irbs)-1].Frames = append(r.irbs[len(r.irbs)-1].Frames, RZXFrame{Snapshot: capture()})
	}
	r.beginFrame()
}

func (r *RZX) beginFrame() {
	r.curFrame = RZXFrame{}
}

// RecordingFrame is called on every accepted interrupt while recording: it
// stores R+offset as the instruction count, normalises R, and starts a new
// in-flight frame (spec.md §4.8).
func (r *RZX) RecordingFrame() {
	if r.mode != rzxRecording {
		return
	}
	count := uint32(int32(r.z.visibleR()) + r.instructionsOff)
	r.curFrame.InstructionCount = count
	irb := &r.irbs[len(r.irbs)-1]
	irb.Frames = append(irb.Frames, r.curFrame)

	r.z.SetR(r.z.visibleR() & 0x7F)
	r.instructionsOff = -int32(r.z.visibleR())

	r.framesSinceSave++
	if r.framesSinceSave >= 5*50 {
		r.autosave()
		r.framesSinceSave = 0
	}
	r.beginFrame()
	r.pruneAutosaves()
}

// StoreByte appends an IN byte to the in-flight frame, growing the buffer
// geometrically (doubling, minimum 50), per spec.md §4.8.
func (r *RZX) StoreByte(b byte) {
	if r.mode != rzxRecording {
		return
	}
	if cap(r.curFrame.InBytes) == len(r.curFrame.InBytes) {
		newCap := cap(r.curFrame.InBytes) * 2
		if newCap < 50 {
			newCap = 50
		}
		grown := make([]byte, len(r.curFrame.InBytes), newCap)
		copy(grown, r.curFrame.InBytes)
		r.curFrame.InBytes = grown
	}
	r.curFrame.InBytes = append(r.curFrame.InBytes, b)
}

func (r *RZX) autosave() {
	if r.capture == nil {
		return
	}
	r.irbs = append(r.irbs, RZXIRB{Frames: []RZXFrame{{Snapshot: r.capture()}}})
}

// pruneAutosaves keeps only the autosave IRBs nearest ~15s, ~60s and ~300s
// before "now" (spec.md §4.8), dropping everything older or redundant.
func (r *RZX) pruneAutosaves() {
	keepFrames := []int{15 * 50, 60 * 50, 300 * 50}
	totalFrames := 0
	for _, irb := range r.irbs {
		totalFrames += len(irb.Frames)
	}
	var kept []RZXIRB
	for i, irb := range r.irbs {
		if i == len(r.irbs)-1 {
			kept = append(kept, irb)
			continue
		}
		isAutosaveBoundary := len(irb.Frames) == 1 && irb.Frames[0].Snapshot != nil
		if !isAutosaveBoundary {
			kept = append(kept, irb)
			continue
		}
		age := totalFrames
		keep := false
		for _, target := range keepFrames {
			if age >= target-25 && age <= target+25 {
				keep = true
			}
		}
		if keep {
			kept = append(kept, irb)
		}
	}
	r.irbs = kept
}

// StopRecording finalizes the current IRB.
func (r *RZX) StopRecording() {
	if r.mode != rzxRecording {
		return
	}
	irb := &r.irbs[len(r.irbs)-1]
	irb.Frames = append(irb.Frames, r.curFrame)
	r.mode = rzxIdle
}

// StartPlaying begins replaying a previously recorded (or loaded) session.
func (r *RZX) StartPlaying(irbs []RZXIRB, restore RZXRestoreFn) {
	r.irbs = irbs
	r.restore = restore
	r.mode = rzxPlaying
	r.playIRB = 0
	r.playFrame = 0
	r.playByteIdx = 0

	if len(irbs) > 0 && len(irbs[0].Frames) > 0 && irbs[0].Frames[0].Snapshot != nil && restore != nil {
		restore(irbs[0].Frames[0].Snapshot)
		r.playFrame = 1
	}

	r.sched.RemoveType(r.frameType)
	r.sched.Add(RZXSentinelTime, r.sentinelType, nil)
	r.warnedSentinel = false

	if f := r.currentPlayFrame(); f != nil {
		r.z.SetR(0)
		r.instructionsOff = 0
	}
}

func (r *RZX) currentPlayFrame() *RZXFrame {
	if r.playIRB >= len(r.irbs) {
		return nil
	}
	irb := &r.irbs[r.playIRB]
	if r.playFrame >= len(irb.Frames) {
		return nil
	}
	return &irb.Frames[r.playFrame]
}

// ShouldEndFrame is consulted before every instruction fetch during
// playback: returns true once R+offset reaches the recorded instruction
// count for this frame (spec.md §4.8).
func (r *RZX) ShouldEndFrame() bool {
	if r.mode != rzxPlaying {
		return false
	}
	f := r.currentPlayFrame()
	if f == nil {
		return false
	}
	return uint32(int32(r.z.visibleR())+r.instructionsOff) >= f.InstructionCount
}

// PlaybackFrame advances to the next recorded frame on interrupt
// acceptance, loading an embedded snapshot if present; stops playback once
// the RZX session ends.
func (r *RZX) PlaybackFrame() {
	if r.mode != rzxPlaying {
		return
	}
	r.playFrame++
	r.playByteIdx = 0
	r.advanceIRBIfNeeded()

	f := r.currentPlayFrame()
	if f == nil {
		r.stopPlayback()
		return
	}
	if f.Snapshot != nil && r.restore != nil {
		r.restore(f.Snapshot)
	}
	r.z.SetR(r.z.visibleR() & 0x7F)
	r.instructionsOff = -int32(r.z.visibleR())
}

func (r *RZX) advanceIRBIfNeeded() {
	for r.playIRB < len(r.irbs) && r.playFrame >= len(r.irbs[r.playIRB].Frames) {
		r.playIRB++
		r.playFrame = 0
	}
}

func (r *RZX) stopPlayback() {
	r.mode = rzxIdle
	r.sched.RemoveType(r.sentinelType)
	if r.OnStop != nil {
		r.OnStop()
	}
}

// NextInByte is consulted instead of the peripheral layer for every port
// read while playback is active (spec.md §4.8).
func (r *RZX) NextInByte() byte {
	f := r.currentPlayFrame()
	if f == nil || r.playByteIdx >= len(f.InBytes) {
		return 0xFF
	}
	b := f.InBytes[r.playByteIdx]
	r.playByteIdx++
	return b
}

// Playing/Recording report the current mode.
func (r *RZX) Playing() bool   { return r.mode == rzxPlaying }
func (r *RZX) Recording() bool { return r.mode == rzxRecording }

// onSentinel fires if a frame overruns RZX_SENTINEL_TIME T-states: it warns
// once, rebases tstates/interrupts_enabled_at by 8000, and re-arms
// (spec.md §4.8).
func (r *RZX) onSentinel(firedAt uint32, _ EventTypeID, _ any) {
	if !r.warnedSentinel {
		r.warnedSentinel = true
		if r.log != nil {
			r.log.Warning("RZX frame is longer than %d tstates", RZXSentinelTime)
		}
	}
	r.sched.SetTstates(r.sched.Tstates() - 8000)
	r.z.interruptsEnabledAt -= 8000
	r.sched.Add(r.sched.Tstates()+RZXSentinelTime, r.sentinelType, nil)
}

func (r *RZX) onPlaybackFrameEvent(_ uint32, _ EventTypeID, _ any) {
	r.PlaybackFrame()
}

// RollbackTo rewinds to the given auto-snapshot (or a user-chosen one):
// restores it, starts a fresh IRB, and resets the instruction counter
// (spec.md §4.8 Rollback).
func (r *RZX) RollbackTo(snapshot []byte, restore RZXRestoreFn) {
	restore(snapshot)
	r.irbs = []RZXIRB{{Frames: []RZXFrame{{Snapshot: snapshot}}}}
	r.mode = rzxRecording
	r.framesSinceSave = 0
	r.z.SetR(0)
	r.instructionsOff = 0
	r.beginFrame()
}
