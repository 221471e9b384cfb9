package assets

import (
	_ "embed"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/spaghettifunk/framestamp/engine/assets/loaders"
	"github.com/spaghettifunk/framestamp/engine/core"
	"github.com/spaghettifunk/framestamp/engine/stamp"
)

//go:embed shaders/stamp.wgsl
var stampShaderWGSL string

// StampShaderSource returns the built-in WGSL stamp program.
func StampShaderSource() string {
	return stampShaderWGSL
}

type AssetType int

const (
	AssetTypeNone AssetType = iota
	AssetTypeSPIRV
	AssetTypeWGSL
)

// ShaderManager resolves the stamp program for device contexts. Compiled
// code is cached per path so every device shares one compilation.
type ShaderManager struct {
	loaders map[AssetType]Loader

	mutex sync.Mutex
	cache map[string][]uint32
}

func NewShaderManager() *ShaderManager {
	sm := &ShaderManager{
		loaders: make(map[AssetType]Loader),
		cache:   make(map[string][]uint32),
	}
	sm.registerLoader(AssetTypeSPIRV, &loaders.BinaryLoader{})
	sm.registerLoader(AssetTypeWGSL, &loaders.ShaderLoader{})
	return sm
}

func (sm *ShaderManager) registerLoader(assetType AssetType, loader Loader) {
	sm.loaders[assetType] = loader
}

// Source returns a loader for the program at path. An empty path selects the
// built-in program.
func (sm *ShaderManager) Source(path string) stamp.ShaderLoader {
	return func() ([]uint32, error) {
		return sm.Load(path)
	}
}

func (sm *ShaderManager) Load(path string) ([]uint32, error) {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()

	if code, ok := sm.cache[path]; ok {
		return code, nil
	}

	var (
		code []uint32
		err  error
	)
	if path == "" {
		code, err = loaders.CompileWGSL(stampShaderWGSL)
	} else {
		assetType := determineAssetType(path)
		loader, exists := sm.loaders[assetType]
		if !exists {
			return nil, fmt.Errorf("no loader registered for shader %s", path)
		}
		code, err = loader.Load(path)
	}
	if err != nil {
		return nil, err
	}

	core.LogDebug("stamp shader %q loaded (%d words)", path, len(code))
	sm.cache[path] = code
	return code, nil
}

// Forget drops the cached program for path so the next Load reads it again.
func (sm *ShaderManager) Forget(path string) {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()

	delete(sm.cache, path)
}

func determineAssetType(path string) AssetType {
	switch filepath.Ext(path) {
	case ".spv":
		return AssetTypeSPIRV
	case ".wgsl":
		return AssetTypeWGSL
	default:
		return AssetTypeNone
	}
}
