// ports.go - peripheral port dispatch and floating-bus merge ([P] in SPEC_FULL.md)

package main

// PeripheralPresence mirrors the teacher's present-flag vocabulary
// (OPTIONAL peripherals consult an external settings flag).
type PeripheralPresence int

const (
	PresenceNever PeripheralPresence = iota
	PresenceOptional
	PresenceAlways
)

// PortReadFn reads a port. It returns the byte the peripheral drove and a
// mask of the bits it actually drove (0xff if it drives the full byte).
type PortReadFn func(port uint16) (value byte, attached byte)

// PortWriteFn writes a port.
type PortWriteFn func(port uint16, value byte)

// PortEntry is one registered peripheral port-decode rule, per spec.md §3/§6:
// port p matches iff p&Mask == Match.
type PortEntry struct {
	Mask      uint16
	Match     uint16
	Read      PortReadFn
	Write     PortWriteFn
	OwnerType string
	Presence  PeripheralPresence
	enabled   *bool // backing flag for PresenceOptional
}

// PortDispatcher owns the active peripheral port list and the floating-bus
// source (spec.md §4.3).
type PortDispatcher struct {
	entries      []PortEntry
	floatingBus  func(tstates uint32) byte
	sched        *Scheduler
	rzxRecording func(byte) // appends an IN byte to the active RZX frame buffer, nil when not recording
}

// NewPortDispatcher wires the dispatcher to the scheduler (for ULA strobe
// timing) and a floating-bus source function supplied by the ULA engine.
func NewPortDispatcher(sched *Scheduler, floatingBus func(tstates uint32) byte) *PortDispatcher {
	return &PortDispatcher{sched: sched, floatingBus: floatingBus}
}

// Activate registers or unregisters a peripheral's full port list
// atomically (spec.md §4.3 periph_activate_type).
func (d *PortDispatcher) Activate(entries []PortEntry, on bool) {
	if on {
		d.entries = append(d.entries, entries...)
		return
	}
	owners := make(map[string]bool, len(entries))
	for _, e := range entries {
		owners[e.OwnerType] = true
	}
	filtered := d.entries[:0]
	for _, e := range d.entries {
		if !owners[e.OwnerType] {
			filtered = append(filtered, e)
		}
	}
	d.entries = filtered
}

// SetRZXRecorder installs the callback used to append IN bytes to the
// active RZX frame while recording; nil disables recording capture.
func (d *PortDispatcher) SetRZXRecorder(fn func(byte)) { d.rzxRecording = fn }

// floatingBusMerge implements spec.md §4.3's law: bits no peripheral drove
// are pulled down by the floating-bus value. merge(v,0xff,*)==v,
// merge(v,0,f) == v&f, and merge(v,m,f) == v&(f|m) in general.
func floatingBusMerge(value, attached, floating byte) byte {
	return value & (floating | attached)
}

// contendPortEarly/Late model the ULA's 1+3 T-state port-access shaping
// described in spec.md §4.2: 1 T-state unconditional for the strobe, then 3
// further T-states shaped by whether the port is in the contended region
// (0x4000-0x7fff) and whether A0 (the ULA-select bit) is low.
func (d *PortDispatcher) contendPortEarly(port uint16, ct *ContentionTables, contended bool) {
	if contended {
		t := d.sched.Tstates()
		d.sched.AddTstates(uint32(ct.DelayNoMREQ(t)))
	}
	d.sched.AddTstates(1)
}

func (d *PortDispatcher) contendPortLate(port uint16, ct *ContentionTables, contended bool) {
	isULA := port&0x0001 == 0
	if contended {
		if isULA {
			for i := 0; i < 3; i++ {
				t := d.sched.Tstates()
				d.sched.AddTstates(1 + uint32(ct.DelayNoMREQ(t)))
			}
			return
		}
		t := d.sched.Tstates()
		d.sched.AddTstates(uint32(ct.DelayNoMREQ(t)))
		d.sched.AddTstates(2)
		return
	}
	d.sched.AddTstates(3)
}

// ReadPort performs the full timed, contended, merged port read described in
// spec.md §4.2-§4.3. addrContended tells the dispatcher whether the port
// address falls in the 0x4000-0x7fff contended region (supplied by the
// caller, which knows the current memory map).
func (d *PortDispatcher) ReadPort(port uint16, ct *ContentionTables, addrContended bool) byte {
	d.contendPortEarly(port, ct, addrContended)
	d.contendPortLate(port, ct, addrContended)

	var accum byte = 0xFF
	var attached byte
	for _, e := range d.entries {
		if e.Presence == PresenceOptional && (e.enabled == nil || !*e.enabled) {
			continue
		}
		if port&e.Mask != e.Match || e.Read == nil {
			continue
		}
		val, a := e.Read(port)
		accum &= val
		attached |= a
	}

	result := accum
	if attached != 0xFF {
		floating := byte(0xFF)
		if d.floatingBus != nil {
			floating = d.floatingBus(d.sched.Tstates())
		}
		result = floatingBusMerge(accum, attached, floating)
	}

	if d.rzxRecording != nil {
		d.rzxRecording(result)
	}
	return result
}

// WritePort performs the timed, non-merging port write.
func (d *PortDispatcher) WritePort(port uint16, value byte, ct *ContentionTables, addrContended bool) {
	d.contendPortEarly(port, ct, addrContended)
	d.contendPortLate(port, ct, addrContended)

	for _, e := range d.entries {
		if e.Presence == PresenceOptional && (e.enabled == nil || !*e.enabled) {
			continue
		}
		if port&e.Mask != e.Match || e.Write == nil {
			continue
		}
		e.Write(port, value)
	}
}
