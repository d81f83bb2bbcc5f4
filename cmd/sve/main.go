// Command sve is a thin demo driver: it is not the subject of this
// repository (CLI/option parsing and the top-level link driver are out of
// scope), but wires the synthetic-section engine together end to end so it
// is directly runnable, the way rvld.go exercises the teacher's pipeline.
package main

import (
	"fmt"
	"os"

	"github.com/synthlink/sve/pkg/config"
	"github.com/synthlink/sve/pkg/obj"
	"github.com/synthlink/sve/pkg/synth"
	"github.com/synthlink/sve/pkg/target"
)

func main() {
	output := "a.out"
	for i := 1; i < len(os.Args)-1; i++ {
		if os.Args[i] == "-o" {
			output = os.Args[i+1]
		}
	}

	cfg := config.Default()
	cfg.BuildID = config.BuildIDFast
	cfg.DynamicLinker = "/lib64/ld-linux-x86-64.so.2"
	ctx := synth.NewContext(cfg, target.X86_64{})

	file := obj.NewFile("demo.o")
	sym := obj.NewSymbol("demo_func")
	sym.Binding = obj.Global
	sym.Type = obj.Func
	sym.DefKind = obj.Regular
	sym.File = file
	ctx.Symbols.Add(sym)
	ctx.Objs = append(ctx.Objs, file)

	ctx.Dynsym.AddSymbol(sym)
	ctx.Got.AddEntry(ctx, sym)

	ctx.FinalizeAll()

	var addr uint64 = 0x1000
	var off uint64
	sizes := map[string]uint64{}
	for _, s := range ctx.AllSections() {
		if s == nil || s.Empty() {
			continue
		}
		sizes[s.Name()] = s.Size()
		fmt.Fprintf(os.Stderr, "%-20s size=%d\n", s.Name(), s.Size())
		addr += s.Align()
		off += s.Size()
	}

	buf := make([]byte, off)
	if err := os.WriteFile(output, buf, 0644); err != nil {
		fmt.Fprintln(os.Stderr, "sve:", err)
		os.Exit(1)
	}
}
