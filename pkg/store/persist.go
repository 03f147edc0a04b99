package store

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/xhad/hybridrag/internal/models"
)

// Index file layout:
//
//	0..7   magic "HRAGIDX1"
//	8..15  dim (uint64, little endian)
//	16..23 count (uint64, little endian)
//	24..   count*dim float32, little endian, row major
const headerSize = 24

var fileMagic = [8]byte{'H', 'R', 'A', 'G', 'I', 'D', 'X', '1'}

var errBadIndexFile = errors.New("invalid index file")

func writeVectors(path string, dim, count int, data []float32) error {
	return writeFileAtomic(path, func(w io.Writer) error {
		if _, err := w.Write(fileMagic[:]); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, [2]uint64{uint64(dim), uint64(count)}); err != nil {
			return err
		}
		if dim*count == 0 {
			return nil
		}
		return binary.Write(w, binary.LittleEndian, data[:dim*count])
	})
}

func readVectors(path string) (dim, count int, data []float32, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, nil, fmt.Errorf("open index file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return 0, 0, nil, err
	}

	r := bufio.NewReader(f)

	var magic [8]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil || magic != fileMagic {
		return 0, 0, nil, fmt.Errorf("%w: bad magic", errBadIndexFile)
	}
	var header [2]uint64
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return 0, 0, nil, fmt.Errorf("%w: %v", errBadIndexFile, err)
	}
	dim, count = int(header[0]), int(header[1])

	if want := int64(headerSize) + int64(dim)*int64(count)*4; info.Size() != want {
		return 0, 0, nil, fmt.Errorf("%w: size %d, header implies %d", errBadIndexFile, info.Size(), want)
	}

	data = make([]float32, dim*count)
	if len(data) == 0 {
		return dim, count, data, nil
	}
	if err := binary.Read(r, binary.LittleEndian, data); err != nil {
		return 0, 0, nil, fmt.Errorf("%w: %v", errBadIndexFile, err)
	}
	return dim, count, data, nil
}

func writeMetadata(path string, entries []models.Entry) error {
	if entries == nil {
		entries = []models.Entry{}
	}
	return writeFileAtomic(path, func(w io.Writer) error {
		return json.NewEncoder(w).Encode(entries)
	})
}

func readMetadata(path string) ([]models.Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var entries []models.Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	return entries, nil
}

// writeFileAtomic writes to a temp file in the target directory and renames
// it over path.
func writeFileAtomic(path string, write func(w io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	bw := bufio.NewWriter(tmp)
	if err := write(bw); err != nil {
		tmp.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
