// main.go - headless CLI harness driving the emulation core

package main

import (
	"flag"
	"fmt"
	"os"
)

func main() {
	romPath := flag.String("rom", "", "path to a ROM image")
	model := flag.String("model", "48k", "machine model: 48k|128k|plus2|plus3|pentagon|ts2068|se")
	frames := flag.Int("frames", 50, "number of frames to run")
	interactive := flag.Bool("debug", false, "start the interactive debugger console")
	flag.Parse()

	if *romPath == "" {
		fmt.Fprintln(os.Stderr, "usage: spectrum-core -rom <path> [-model 48k|128k|plus2|plus3|pentagon|ts2068|se] [-frames N] [-debug]")
		os.Exit(1)
	}

	m, err := buildMachine(*model, *romPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "spectrum-core: %v\n", err)
		os.Exit(1)
	}

	var console *DebuggerConsole
	if *interactive {
		console = NewDebuggerConsole(m.Debugger, m.regSnapshot)
		console.Start()
		defer console.Stop()
	}

	for i := 0; i < *frames; i++ {
		m.RunFrame()
		if m.Debugger.Mode() == DebugHalted {
			m.Log.Info("halted at breakpoint, frame %d", i)
			if console == nil {
				break
			}
		}
	}

	m.Log.Info("ran %d frames, tstates=%d", *frames, m.Scheduler.Tstates())
}

func modelFromFlag(s string) (MachineModel, error) {
	switch s {
	case "48k":
		return Model48K, nil
	case "128k":
		return Model128K, nil
	case "plus2":
		return ModelPlus2, nil
	case "plus3":
		return ModelPlus3, nil
	case "pentagon":
		return ModelPentagon1024, nil
	case "ts2068":
		return ModelTS2068, nil
	case "se":
		return ModelSE, nil
	default:
		return 0, fmt.Errorf("unknown model %q", s)
	}
}

// buildMachine constructs a Machine for model, maps the ROM image read-only
// across as many logical pages as it spans, fills the remainder with RAM
// (page 2, the classic 0x4000-0x5fff screen page, marked contended), and
// attaches the model-appropriate floppy controller.
func buildMachine(modelFlag, romPath string) (*Machine, error) {
	model, err := modelFromFlag(modelFlag)
	if err != nil {
		return nil, err
	}

	rom, err := os.ReadFile(romPath)
	if err != nil {
		return nil, fmt.Errorf("reading ROM: %w", err)
	}
	if len(rom) < PageSize {
		return nil, fmt.Errorf("ROM image too small: %d bytes", len(rom))
	}

	m := NewMachine(model)

	romPages := len(rom) / PageSize
	if romPages > NumPages {
		romPages = NumPages
	}
	for i := 0; i < romPages; i++ {
		m.MapBoth(i, MemoryPage{
			Source: SourceROM, PageNum: i,
			Buffer:   rom[i*PageSize : (i+1)*PageSize],
			Writable: false, Contended: false,
		})
	}
	for i := romPages; i < NumPages; i++ {
		m.MapBoth(i, MemoryPage{
			Source: SourceRAM, PageNum: i,
			Buffer: make([]byte, PageSize), Writable: true,
			Contended: i == 2, SaveToSnap: true,
		})
	}

	if model == ModelPlus3 {
		m.AttachUPD765(UPD765A, UPDClock8MHz, -1)
	} else {
		m.AttachWD177x(WD1773, WDFlagBeta128)
	}

	return m, nil
}
