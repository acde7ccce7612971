package config

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Arch identifies the machine/OS flavor a daemon or process is built for.
type Arch int

const (
	ArchUnknown Arch = iota
	ArchX86
	ArchX86_64
	ArchARM
	ArchARM64
	ArchSPARC
	ArchHPPA
	ArchRS6000
	ArchAlpha
	ArchMIPS
	ArchPower
	ArchCM5
	ArchPVM
)

var archNames = [...]string{
	ArchUnknown: "unknown",
	ArchX86:     "x86",
	ArchX86_64:  "x86_64",
	ArchARM:     "arm",
	ArchARM64:   "arm64",
	ArchSPARC:   "sparc",
	ArchHPPA:    "hppa",
	ArchRS6000:  "rs6000",
	ArchAlpha:   "alpha",
	ArchMIPS:    "mips",
	ArchPower:   "power",
	ArchCM5:     "cm5",
	ArchPVM:     "pvm",
}

func (a Arch) String() string {
	if a < 0 || int(a) >= len(archNames) {
		return fmt.Sprintf("arch(%d)", int(a))
	}
	return archNames[a]
}

// MarshalJSON encodes the architecture by keyword.
func (a Arch) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// ParseArch resolves an architecture keyword, ignoring case.
func ParseArch(s string) (Arch, bool) {
	s = strings.ToLower(s)
	for i := ArchX86; int(i) < len(archNames); i++ {
		if archNames[i] == s {
			return i, true
		}
	}
	return ArchUnknown, false
}

// Archs returns every known architecture keyword.
func Archs() []string {
	return append([]string(nil), archNames[1:]...)
}
