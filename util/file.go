package util

import (
	"io"
	"os"
)

// Size returns the size in bytes of an open file
func Size(f *os.File) (int64, error) {
	fi, err := f.Stat()
	if err != nil {
		return 0, err
	}
	return fi.Size(), nil
}

// Seek moves the read offset of f to pos, measured from the start
func Seek(f *os.File, pos int64) error {
	_, err := f.Seek(pos, io.SeekStart)
	return err
}
