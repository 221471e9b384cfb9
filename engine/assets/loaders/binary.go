package loaders

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// SPIRVMagic is the first word of every SPIR-V module.
const SPIRVMagic uint32 = 0x07230203

var ErrNotSPIRV = errors.New("not a SPIR-V module")

// BinaryLoader reads a precompiled SPIR-V module from disk.
type BinaryLoader struct{}

func (bl *BinaryLoader) Load(path string) ([]uint32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	buf, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	code, err := BytesToBytecode(buf)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return code, nil
}

// BytesToBytecode converts a little-endian SPIR-V byte stream into words.
func BytesToBytecode(b []byte) ([]uint32, error) {
	if len(b) < 4 || len(b)%4 != 0 {
		return nil, fmt.Errorf("%w: size %d is not a positive multiple of 4", ErrNotSPIRV, len(b))
	}

	byteCode := make([]uint32, len(b)/4)
	for i := 0; i < len(byteCode); i++ {
		byteIndex := i * 4
		byteCode[i] = 0
		byteCode[i] |= uint32(b[byteIndex])
		byteCode[i] |= uint32(b[byteIndex+1]) << 8
		byteCode[i] |= uint32(b[byteIndex+2]) << 16
		byteCode[i] |= uint32(b[byteIndex+3]) << 24
	}

	if byteCode[0] != SPIRVMagic {
		return nil, fmt.Errorf("%w: magic %#08x", ErrNotSPIRV, byteCode[0])
	}
	return byteCode, nil
}
