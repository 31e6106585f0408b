package fuzztests

import (
	"bytes"
	"testing"

	"faultline/internal/diag"
	"faultline/internal/ir"
	"faultline/internal/irbin"
	"faultline/internal/irtext"
)

func FuzzDecodeBinary(f *testing.F) {
	f.Add([]byte{})
	f.Add([]byte{0x80})
	f.Add([]byte("not msgpack at all"))
	for _, src := range append(testdataSeeds(), []byte(inlineSeeds[2])) {
		m, err := irtext.Parse("seed.ll", src, diag.NopReporter{})
		if err != nil || ir.Validate(m) != nil {
			continue
		}
		var buf bytes.Buffer
		if err := irbin.Encode(&buf, m); err != nil {
			f.Fatalf("Encode seed: %v", err)
		}
		f.Add(buf.Bytes())
	}
	f.Fuzz(func(t *testing.T, data []byte) {
		m, err := irbin.Decode(bytes.NewReader(clampInput(data)))
		if err != nil || ir.Validate(m) != nil {
			return
		}
		_ = m.String()
	})
}
