package layout

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"fortio.org/safecast"
)

// Target describes the data layout of a code generation target.
// Alignments are in bytes.
type Target struct {
	Triple     string
	DataLayout string
	BigEndian  bool
	PtrSize    int
	PtrAlign   int
	AggAlign   int

	intAlign   map[uint32]int // bit width -> ABI alignment
	floatAlign map[uint32]int
}

// Default alignments used when a datalayout string does not override them.
func defaultTarget() Target {
	return Target{
		PtrSize:  8,
		PtrAlign: 8,
		AggAlign: 1,
		intAlign: map[uint32]int{
			1: 1, 8: 1, 16: 2, 32: 4, 64: 4,
		},
		floatAlign: map[uint32]int{
			16: 2, 32: 4, 64: 8, 128: 16,
		},
	}
}

// X86_64LinuxGNU is the layout of the most common host target.
func X86_64LinuxGNU() Target {
	t, err := ParseDataLayout("e-m:e-p270:32:32-p271:32:32-p272:64:64-i64:64-i128:128-f80:128-n8:16:32:64-S128")
	if err != nil {
		panic(err)
	}
	t.Triple = "x86_64-unknown-linux-gnu"
	return t
}

var tripleLayouts = []struct {
	arch   string
	layout string
}{
	{"x86_64", "e-m:e-p270:32:32-p271:32:32-p272:64:64-i64:64-i128:128-f80:128-n8:16:32:64-S128"},
	{"i386", "e-m:e-p:32:32-p270:32:32-p271:32:32-p272:64:64-i128:128-f64:32:64-f80:32-n8:16:32-S128"},
	{"i686", "e-m:e-p:32:32-p270:32:32-p271:32:32-p272:64:64-i128:128-f64:32:64-f80:32-n8:16:32-S128"},
	{"aarch64", "e-m:e-i8:8:32-i16:16:32-i64:64-i128:128-n32:64-S128"},
	{"arm64", "e-m:o-i64:64-i128:128-n32:64-S128"},
	{"riscv64", "e-m:e-p:64:64-i64:64-i128:128-n32:64-S128"},
	{"riscv32", "e-m:e-p:32:32-i64:64-n32-S128"},
	{"powerpc64le", "e-m:e-i64:64-n32:64-S128-v256:256:256-v512:512:512"},
	{"powerpc64", "E-m:e-i64:64-n32:64-S128-v256:256:256-v512:512:512"},
	{"mips64", "E-m:e-i8:8:32-i16:16:32-i64:64-n32:64-S128"},
	{"wasm32", "e-m:e-p:32:32-p10:8:8-p20:8:8-i64:64-n32:64-S128"},
}

// TargetForTriple returns the layout known for the architecture of triple.
func TargetForTriple(triple string) (Target, bool) {
	arch, _, _ := strings.Cut(triple, "-")
	for _, tl := range tripleLayouts {
		if tl.arch == arch {
			t, err := ParseDataLayout(tl.layout)
			if err != nil {
				return Target{}, false
			}
			t.Triple = triple
			return t, true
		}
	}
	return Target{}, false
}

// Resolve picks the target model of a module: an explicit datalayout wins,
// otherwise the triple table is consulted.
func Resolve(triple, dataLayout string) (Target, error) {
	if dataLayout != "" {
		t, err := ParseDataLayout(dataLayout)
		if err != nil {
			return Target{}, err
		}
		t.Triple = triple
		return t, nil
	}
	if triple == "" {
		return Target{}, &LayoutError{Kind: LayoutErrMissingTarget}
	}
	t, ok := TargetForTriple(triple)
	if !ok {
		return Target{}, &LayoutError{Kind: LayoutErrMissingTarget, Spelling: triple}
	}
	return t, nil
}

// ParseDataLayout parses an LLVM datalayout string such as
// "e-m:e-p:64:64-i64:64-f80:128-n8:16:32:64-S128".
// Components the layout engine does not need are accepted and ignored.
func ParseDataLayout(s string) (Target, error) {
	t := defaultTarget()
	t.DataLayout = s
	if s == "" {
		return t, nil
	}
	for _, comp := range strings.Split(s, "-") {
		if comp == "" {
			continue
		}
		if err := t.applyComponent(comp); err != nil {
			return Target{}, &LayoutError{Kind: LayoutErrBadDataLayout, Spelling: comp, Err: err}
		}
	}
	return t, nil
}

func (t *Target) applyComponent(comp string) error {
	switch comp[0] {
	case 'e':
		t.BigEndian = false
		return nil
	case 'E':
		t.BigEndian = true
		return nil
	case 'p':
		fields := strings.Split(comp[1:], ":")
		// Only the default address space describes "ptr".
		if fields[0] != "" && fields[0] != "0" {
			return nil
		}
		if len(fields) < 3 {
			return errors.New("pointer spec needs size and alignment")
		}
		size, err := bitsToBytes(fields[1])
		if err != nil {
			return err
		}
		align, err := bitsToBytes(fields[2])
		if err != nil {
			return err
		}
		t.PtrSize, t.PtrAlign = size, align
		return nil
	case 'i', 'f':
		fields := strings.Split(comp[1:], ":")
		if len(fields) < 2 {
			return errors.New("type spec needs an alignment")
		}
		width, err := strconv.ParseUint(fields[0], 10, 32)
		if err != nil {
			return err
		}
		align, err := bitsToBytes(fields[1])
		if err != nil {
			return err
		}
		w, err := safecast.Conv[uint32](width)
		if err != nil {
			return err
		}
		if comp[0] == 'i' {
			t.intAlign[w] = align
		} else {
			t.floatAlign[w] = align
		}
		return nil
	case 'a':
		fields := strings.Split(comp[1:], ":")
		if len(fields) < 2 {
			return nil
		}
		align, err := bitsToBytes(fields[1])
		if err != nil {
			return err
		}
		t.AggAlign = max(align, 1)
		return nil
	case 'm', 'n', 'S', 'v', 'A', 'P', 'G', 'F', 'N':
		return nil
	default:
		return fmt.Errorf("unknown specifier %q", comp[0])
	}
}

func bitsToBytes(s string) (int, error) {
	bits, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, err
	}
	if bits%8 != 0 {
		return 0, fmt.Errorf("%d bits is not a whole number of bytes", bits)
	}
	return safecast.Conv[int](bits / 8)
}

// intABIAlign follows LLVM: an exact entry wins, otherwise the smallest
// larger listed width, otherwise the largest listed width.
func (t Target) intABIAlign(width uint32) int {
	if a, ok := t.intAlign[width]; ok {
		return a
	}
	best, bestWidth := 0, uint32(0)
	largest, largestWidth := 1, uint32(0)
	for w, a := range t.intAlign {
		if w > width && (bestWidth == 0 || w < bestWidth) {
			best, bestWidth = a, w
		}
		if w > largestWidth {
			largest, largestWidth = a, w
		}
	}
	if bestWidth != 0 {
		return best
	}
	return largest
}

func (t Target) floatABIAlign(width uint32) int {
	if a, ok := t.floatAlign[width]; ok {
		return a
	}
	// Unlisted widths such as x86_fp80 align to the next power of two.
	a := 1
	for a*8 < int(width) {
		a *= 2
	}
	return a
}
