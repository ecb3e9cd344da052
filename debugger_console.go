// debugger_console.go - interactive stdin console for the debugger
// (spec.md §4.9). Only instantiated in main.go for interactive use — never
// in tests.

package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/term"
)

// DebuggerConsole puts stdin into raw line-edited mode and turns lines of
// text into debugger commands: "break <addr> [expr]", "delete <id>",
// "continue", "regs". A condition can only be given when the breakpoint is
// created with "break"; there is no command that changes it afterwards.
type DebuggerConsole struct {
	dbg     *Debugger
	regs    func() RegisterSnapshot
	fd      int
	oldTerm *term.State
	stopCh  chan struct{}
	done    chan struct{}
	stopped sync.Once
}

// NewDebuggerConsole binds a console to a debugger and a register-snapshot
// accessor (typically the owning Machine's current Z80 state).
func NewDebuggerConsole(dbg *Debugger, regs func() RegisterSnapshot) *DebuggerConsole {
	return &DebuggerConsole{
		dbg: dbg, regs: regs,
		stopCh: make(chan struct{}), done: make(chan struct{}),
	}
}

// Start puts the terminal into raw mode and begins reading commands in a
// goroutine.
func (c *DebuggerConsole) Start() {
	c.fd = int(os.Stdin.Fd())
	oldState, err := term.MakeRaw(c.fd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "debugger_console: failed to set raw mode: %v\n", err)
		close(c.done)
		return
	}
	c.oldTerm = oldState

	go func() {
		defer close(c.done)
		reader := bufio.NewReader(os.Stdin)
		for {
			select {
			case <-c.stopCh:
				return
			default:
			}
			line, err := reader.ReadString('\n')
			if err != nil {
				return
			}
			c.handleLine(strings.TrimSpace(line))
		}
	}()
}

// Stop restores the terminal to its previous mode.
func (c *DebuggerConsole) Stop() {
	c.stopped.Do(func() { close(c.stopCh) })
	<-c.done
	if c.oldTerm != nil {
		_ = term.Restore(c.fd, c.oldTerm)
		c.oldTerm = nil
	}
}

func (c *DebuggerConsole) handleLine(line string) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return
	}
	switch fields[0] {
	case "break", "b":
		if len(fields) < 2 {
			return
		}
		addr, err := strconv.ParseUint(strings.TrimPrefix(fields[1], "0x"), 16, 16)
		if err != nil {
			fmt.Fprintf(os.Stderr, "debugger_console: bad address %q\n", fields[1])
			return
		}
		cond := ""
		if len(fields) > 2 {
			cond = strings.Join(fields[2:], " ")
		}
		if _, err := c.dbg.AddBreakpoint(BreakExecute, addr, 0, false, cond); err != nil {
			fmt.Fprintf(os.Stderr, "debugger_console: %v\n", err)
		}
	case "delete", "d":
		if len(fields) < 2 {
			return
		}
		id, err := strconv.Atoi(fields[1])
		if err == nil {
			c.dbg.RemoveBreakpoint(id)
		}
	case "continue", "c":
		c.dbg.Resume()
	case "regs", "r":
		r := c.regs()
		fmt.Fprintf(os.Stdout, "PC=%04X SP=%04X AF=%02X%02X BC=%02X%02X DE=%02X%02X HL=%02X%02X\r\n",
			r.PC, r.SP, r.A, r.F, r.B, r.C, r.D, r.E, r.H, r.L)
	}
}
