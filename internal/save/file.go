package save

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/zstd"
)

const (
	fileExt       = ".save.zst"
	formatVersion = 1
)

// Header is the first line of a save file, readable without decoding the
// rest of the record.
type Header struct {
	Version int    `json:"version"`
	Slot    string `json:"slot"`
	RunID   string `json:"run_id"`
	Day     int    `json:"day"`
}

// FileStore writes one zstd-compressed JSON file per slot under Dir.
type FileStore struct {
	Dir string
}

func NewFileStore(dir string) *FileStore { return &FileStore{Dir: dir} }

func (f *FileStore) path(slot string) string {
	return filepath.Join(f.Dir, slot+fileExt)
}

func (f *FileStore) Put(ctx context.Context, r Record) error {
	r, err := prepare(r)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(f.Dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(f.Dir, "."+r.Slot+"-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := writeRecord(tmp, r); err != nil {
		tmp.Close()
		return fmt.Errorf("write slot %s: %w", r.Slot, err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), f.path(r.Slot))
}

func writeRecord(w *os.File, r Record) error {
	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(enc)

	hb, _ := json.Marshal(Header{Version: formatVersion, Slot: r.Slot, RunID: r.RunID, Day: r.Day})
	if _, err := bw.Write(hb); err != nil {
		enc.Close()
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		enc.Close()
		return err
	}
	if err := json.NewEncoder(bw).Encode(r); err != nil {
		enc.Close()
		return fmt.Errorf("json encode: %w", err)
	}
	if err := bw.Flush(); err != nil {
		enc.Close()
		return err
	}
	return enc.Close()
}

func (f *FileStore) Get(ctx context.Context, slot string) (Record, error) {
	if err := checkSlot(slot); err != nil {
		return Record{}, err
	}
	r, err := readRecord(f.path(slot))
	if errors.Is(err, fs.ErrNotExist) {
		return Record{}, fmt.Errorf("%w: %q", ErrNotFound, slot)
	}
	return r, err
}

func readRecord(path string) (Record, error) {
	var r Record
	file, err := os.Open(path)
	if err != nil {
		return r, err
	}
	defer file.Close()

	dec, err := zstd.NewReader(file)
	if err != nil {
		return r, err
	}
	defer dec.Close()

	br := bufio.NewReader(dec)
	line, err := br.ReadBytes('\n')
	if err != nil {
		return r, fmt.Errorf("%s: read header: %w", filepath.Base(path), err)
	}
	var h Header
	if err := json.Unmarshal(line, &h); err != nil {
		return r, fmt.Errorf("%s: header: %w", filepath.Base(path), err)
	}
	if h.Version != formatVersion {
		return r, fmt.Errorf("%s: unsupported save version %d", filepath.Base(path), h.Version)
	}

	if err := json.NewDecoder(br).Decode(&r); err != nil {
		return r, fmt.Errorf("%s: json decode: %w", filepath.Base(path), err)
	}
	return r, nil
}

func (f *FileStore) List(ctx context.Context) ([]Record, error) {
	entries, err := os.ReadDir(f.Dir)
	if errors.Is(err, fs.ErrNotExist) {
		return []Record{}, nil
	}
	if err != nil {
		return nil, err
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), fileExt) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	out := make([]Record, 0, len(names))
	for _, name := range names {
		r, err := readRecord(filepath.Join(f.Dir, name))
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slot < out[j].Slot })
	return out, nil
}

func (f *FileStore) Delete(ctx context.Context, slot string) error {
	if err := checkSlot(slot); err != nil {
		return err
	}
	err := os.Remove(f.path(slot))
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %q", ErrNotFound, slot)
	}
	return err
}
