package fuzztests

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"
)

const (
	maxSeedBytes = 64 << 10 // 64 KiB, ограничение для тестового корпуса
)

var inlineSeeds = []string{
	"",
	"define void @f() {\nentry:\n  ret void\n}\n",
	"define i32 @f(i32 %0) {\n  %2 = add i32 %0, 1, !index 1\n  ret i32 %2\n}\n",
	"@g = global [3 x i8] c\"ab\\00\"\n",
	"define void @f() {\nentry:\n  br label %entry\n}\n",
	"declare i32 @printf(ptr, ...)\n",
	"define { i32, float } @f() {\nentry:\n  ret { i32, float } undef\n}\n",
	"define void @f(ptr %p) {\nentry:\n  call void %p(ptr %p)\n  unreachable\n}\n",
}

// testdataSeeds returns the repository's sample modules.
func testdataSeeds() [][]byte {
	root := filepath.Join("..", "..", "testdata")
	if _, err := os.Stat(root); err != nil {
		return nil
	}
	var out [][]byte
	// проходим по дереву testdata, добавляем все *.ll файлы
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil || d.IsDir() || filepath.Ext(path) != ".ll" {
			return nil
		}
		// #nosec G304 -- path comes from repository testdata walk
		src, err := os.ReadFile(path)
		if err != nil {
			return nil
		}
		out = append(out, clampSeed(src))
		return nil
	})
	return out
}

func addTextSeeds(f *testing.F) {
	for _, s := range inlineSeeds {
		f.Add([]byte(s))
	}
	for _, s := range testdataSeeds() {
		f.Add(s)
	}
}

func clampSeed(src []byte) []byte {
	if len(src) <= maxSeedBytes {
		return append([]byte(nil), src...)
	}
	return append([]byte(nil), src[:maxSeedBytes]...)
}
