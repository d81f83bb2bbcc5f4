// Package config holds the resolved, already-parsed settings the
// synthetic-section engine consumes. Building this struct from argv is
// explicitly someone else's job (the link driver); this package only
// defines the shape and a test-convenience environment overlay.
package config

import (
	"debug/elf"

	"github.com/xyproto/env/v2"
)

type BuildIDKind int

const (
	BuildIDNone BuildIDKind = iota
	BuildIDFast
	BuildIDMd5
	BuildIDSha1
	BuildIDUuid
	BuildIDHexstring
)

// VersionDef describes one entry the caller wants in .gnu.version_d beyond
// the implicit file-level base definition.
type VersionDef struct {
	Name string
}

type Config struct {
	Machine    elf.Machine
	Is64       bool
	IsLE       bool
	WordSize   int // 4 or 8, derived from Is64 but kept explicit per spec's data model

	Pic          bool
	Pie          bool
	Shared       bool
	Static       bool
	Relocatable  bool
	Rodynamic    bool

	BuildID       BuildIDKind
	BuildIDHex    []byte

	SoName      string
	RPath       string
	RunPath     bool // true: emit DT_RUNPATH, false: DT_RPATH
	Needed      []string
	Auxiliary   []string

	InitSymbol string
	FiniSymbol string

	VersionDefs []VersionDef

	CombReloc bool
	Symbolic  bool
	BindNow   bool
	ZOrigin   bool
	ZNodelete bool
	ZNoopen   bool

	MipsGotSize uint64

	DynamicLinker string
	OutputFile    string

	// CapRelocsUndefinedIsWarning is carried in the configuration but no
	// code reads it: CapRelocsSection.Write always reports an unknown
	// __cap_relocs target size as a warning and uses the fallback size, and
	// undefined targets are not diagnosed at all. Default leaves it false.
	CapRelocsUndefinedIsWarning bool
}

// Default returns a little-endian, 64-bit, dynamically linked baseline
// configuration; callers override the fields they care about.
func Default() *Config {
	return &Config{
		Is64:        true,
		IsLE:        true,
		WordSize:    8,
		CombReloc:   true,
		MipsGotSize: 0x10000,
	}
}

// FromEnv overlays a handful of settings from the environment, using
// github.com/xyproto/env/v2 the same way xyproto-vibe67 does for its
// environment-driven toggles. This exists purely for test/demo
// convenience; production configuration should come from the driver.
func FromEnv(c *Config) *Config {
	if env.Has("SVE_SONAME") {
		c.SoName = env.Str("SVE_SONAME")
	}
	if env.Has("SVE_COMBRELOC") {
		c.CombReloc = env.Bool("SVE_COMBRELOC")
	}
	if env.Has("SVE_BIND_NOW") {
		c.BindNow = env.Bool("SVE_BIND_NOW")
	}
	return c
}

// Verbose reports whether informational trace output should be printed,
// read through the same environment helper used elsewhere in this package.
func Verbose() bool {
	return env.Bool("SVE_VERBOSE")
}
