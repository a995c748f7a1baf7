package encoder

import (
	"fmt"
	"os"
)

// EncodeFloat32 compresses mono float32 samples in [-1, 1] to FLAC.
func EncodeFloat32(samples []float32) ([]byte, error) {
	enc, err := NewFlac()
	if err != nil {
		return nil, err
	}

	block := make([]int16, 0, BlockSize)
	flush := func() error {
		if len(block) == 0 {
			return nil
		}
		if err := enc.EncodeBlock(block); err != nil {
			return err
		}
		block = block[:0]
		return nil
	}

	for _, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		block = append(block, int16(s*32767))
		if len(block) == BlockSize {
			if err := flush(); err != nil {
				return nil, err
			}
		}
	}
	if err := flush(); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return enc.Bytes(), nil
}

// WriteFile encodes samples and writes the result to path.
func WriteFile(path string, samples []float32) error {
	data, err := EncodeFloat32(samples)
	if err != nil {
		return fmt.Errorf("encoding dump: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing dump: %w", err)
	}
	return nil
}
