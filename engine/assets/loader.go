package assets

// Loader turns a shader asset on disk into SPIR-V words.
type Loader interface {
	Load(path string) ([]uint32, error)
}
