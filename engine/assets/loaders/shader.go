package loaders

import (
	"fmt"
	"os"

	"github.com/gogpu/naga"
)

// ShaderLoader reads WGSL source from disk and compiles it to SPIR-V.
type ShaderLoader struct{}

func (sl *ShaderLoader) Load(path string) ([]uint32, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	code, err := CompileWGSL(string(source))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return code, nil
}

// CompileWGSL compiles WGSL source to SPIR-V words.
func CompileWGSL(source string) ([]uint32, error) {
	spirvBytes, err := naga.Compile(source)
	if err != nil {
		return nil, fmt.Errorf("failed to compile shader: %w", err)
	}
	return BytesToBytecode(spirvBytes)
}
