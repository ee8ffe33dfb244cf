// SPVM CLI - assembles, persists, and runs SPVM programs
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/spvm/spvm/asm"
	"github.com/spvm/spvm/manifest"
	"github.com/spvm/spvm/vm"
)

var log = commonlog.GetLogger("spvm")

func main() {
	assemble := flag.Bool("a", false, "Treat the input file as assembly source (default: binary)")
	run := flag.Bool("r", false, "Run the program")
	verbose := flag.Bool("v", false, "Verbose output (disassembly, interactive breakpoints)")
	output := flag.String("o", "", "Write the program to a binary file")
	sidecar := flag.Bool("g", false, "Write/read the .dbg debug-info sidecar")
	logLevel := flag.Int("log", 0, "Log verbosity")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: spvm [options] <file>\n\n")
		fmt.Fprintf(os.Stderr, "Assembles, runs, or persists an SPVM program.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  spvm -a -r prog.svm           # Assemble and run\n")
		fmt.Fprintf(os.Stderr, "  spvm -a -o prog.bin prog.svm  # Assemble to a binary file\n")
		fmt.Fprintf(os.Stderr, "  spvm -r prog.bin              # Run a saved binary\n")
		fmt.Fprintf(os.Stderr, "  spvm -a -r -v prog.svm        # Run with disassembly and breakpoints\n")
	}
	flag.Parse()

	commonlog.Configure(*logLevel, nil)

	path := flag.Arg(0)
	if path == "" {
		flag.Usage()
		os.Exit(1)
	}

	var instructions []vm.Instruction
	var debug *vm.DebugInfo
	var mf *manifest.Manifest

	if *assemble {
		parser := asm.NewParser(path)
		var err error
		instructions, err = parser.AssembleFile()
		if err != nil {
			die(err)
		}
		debug = parser.DebugInfo()
		log.Debugf("assembled %d instructions from %s", len(instructions), path)

		mf, err = manifest.FindAndLoad(filepath.Dir(path))
		if err != nil {
			die(err)
		}
		if mf != nil {
			log.Infof("using manifest in %s", mf.Dir)
			if err := mf.Apply(debug, parser.Labels()); err != nil {
				die(err)
			}
		}
	} else {
		bin, err := vm.LoadBinaryFile(path)
		if err != nil {
			die(err)
		}
		instructions = bin.Instructions()
		debug = loadSidecar(path, *sidecar)
	}

	if *verbose {
		debug.SetVerbose(true)
	}

	if *run {
		machine := vm.NewStackMachine(debug)
		exitCode, err := machine.Run(instructions)
		if err != nil {
			die(err)
		}
		fmt.Printf("[simulation exited with code %d]\n", exitCode)
		return
	}

	outPath := *output
	if outPath == "" && mf != nil {
		outPath = mf.Output.Binary
	}
	if outPath == "" {
		return
	}

	if err := vm.NewBinary(instructions).SaveFile(outPath); err != nil {
		die(err)
	}
	log.Infof("wrote %d instructions to %s", len(instructions), outPath)

	if *sidecar || (mf != nil && mf.Debug.Sidecar) {
		dbgPath := outPath + ".dbg"
		if err := debug.SaveFile(dbgPath); err != nil {
			die(err)
		}
		log.Infof("wrote debug info to %s", dbgPath)
	}
}

// loadSidecar returns the .dbg sidecar next to a binary when sidecar mode
// is on and the file exists, otherwise empty debug info.
func loadSidecar(binPath string, enabled bool) *vm.DebugInfo {
	if !enabled {
		return vm.NewDebugInfo()
	}

	dbgPath := binPath + ".dbg"
	debug, err := vm.LoadDebugFile(dbgPath)
	if err != nil {
		if !os.IsNotExist(err) {
			die(err)
		}
		return vm.NewDebugInfo()
	}
	log.Infof("loaded debug info from %s", dbgPath)
	return debug
}

func die(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
