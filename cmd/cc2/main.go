// Command cc2 is the driver for the single-file bootstrap compiler:
// it reads a source file, preprocesses it, compiles it to a 32-bit
// x86 ELF executable, and writes the result (spec.md §6).
//
// Grounded on the teacher's cmd/bfcc driver shape (flag.NewFlagSet per
// invocation, a usage() helper that exits 1, a readSource helper) —
// cc2 has no subcommands, so the flag set is built once in run().
package main

import (
	"bytes"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/cupidthecat/cc2/internal/compiler"
	"github.com/cupidthecat/cc2/internal/diag"
	"github.com/cupidthecat/cc2/internal/host"
	"github.com/cupidthecat/cc2/internal/preproc"
)

func usage() {
	fmt.Fprintln(os.Stderr, `usage: cc2 [-o out.elf] [-full] <source.cc>

  -o path   output ELF path (default: source with .cc replaced by .elf)
  -full     enable function-like macros, #include, and #ifndef/#else/#endif`)
	os.Exit(1)
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("cc2", flag.ExitOnError)
	out := fs.String("o", "", "output ELF path")
	full := fs.Bool("full", false, "enable the full preprocessor")
	fs.Usage = usage
	fs.Parse(args)

	// The original source's argv scanner tolerates its own argv[0]
	// reappearing among the positional arguments; rather than assume
	// a fixed position, take the last argument that looks like a .cc
	// source file, falling back to the last positional argument.
	src := pickSourceArg(fs.Args())
	if src == "" {
		usage()
	}

	svc := host.OS{}
	rep := diag.New(os.Stderr)

	data, err := readSourceYielding(src, svc)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	mode := preproc.Lite
	if *full {
		mode = preproc.Full
	}
	pp := preproc.New(mode)
	pp.Include = includeReader(filepath.Dir(src))
	pre, _ := pp.Run(data)
	if pp.Failures > 0 {
		rep.FAIL("pp", "%d preprocessor failure(s)", pp.Failures)
	}

	comp := compiler.New(pre,
		compiler.WithDiag(rep),
		compiler.WithBuiltins(host.DefaultBuiltins()),
		compiler.WithPreprocessedMacros(pp.Macros),
		compiler.WithServices(svc),
	)
	result := comp.Compile()

	if !rep.OK() || result.Failures > 0 {
		rep.Status()
		return 1
	}

	outPath := *out
	if outPath == "" {
		outPath = deriveOutputPath(src)
	}
	if err := svc.WriteFile(outPath, result.ELF); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	rep.Status()
	return 0
}

// pickSourceArg finds the source file among the positional arguments,
// preferring a .cc-suffixed one over a bare trailing argument.
func pickSourceArg(args []string) string {
	var last string
	for _, a := range args {
		if strings.HasSuffix(a, ".cc") {
			last = a
		}
	}
	if last != "" {
		return last
	}
	if len(args) > 0 {
		return args[len(args)-1]
	}
	return ""
}

// deriveOutputPath replaces a trailing .cc with .elf, or appends .elf
// when the source has no .cc suffix (spec.md §6).
func deriveOutputPath(src string) string {
	if strings.HasSuffix(src, ".cc") {
		return strings.TrimSuffix(src, ".cc") + ".elf"
	}
	return src + ".elf"
}

func includeReader(dir string) preproc.IncludeReader {
	return func(path string) ([]byte, error) {
		return os.ReadFile(filepath.Join(dir, path))
	}
}

// readSourceYielding reads path in fixed-size chunks, invoking the
// host's cooperative yield every host.YieldEvery bytes: the source
// this was bootstrapped from yields from its own file-read loop
// (cc2_read_file), a detail spec.md's distillation omits but keeps
// alongside the lexer/parser main-loop yield.
func readSourceYielding(path string, svc host.Services) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if info, err := f.Stat(); err == nil && info.Size() > preproc.MaxSourceBytes {
		return nil, fmt.Errorf("%s: source exceeds %d bytes", path, preproc.MaxSourceBytes)
	}

	var buf bytes.Buffer
	chunk := make([]byte, 4096)
	sinceYield := 0
	for {
		n, rerr := f.Read(chunk)
		if n > 0 {
			buf.Write(chunk[:n])
			sinceYield += n
			if sinceYield >= host.YieldEvery {
				svc.Yield()
				sinceYield = 0
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return nil, rerr
		}
	}
	return buf.Bytes(), nil
}
