package opc

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/beevik/etree"
)

// ErrCorruptArchive is returned when the zip container itself is unreadable.
var ErrCorruptArchive = errors.New("opc: corrupt archive")

// sourceEntry keeps the zip entry a part was read from so an untouched part
// can be copied to the new archive without recompression.
type sourceEntry struct {
	file *zip.File
}

// Store owns every part of one package.  Lookups are case-insensitive, as
// OPC part names are.
type Store struct {
	parts map[string]*Part // key: lower-cased name
	order []string         // part names in archive order
}

// NewStore returns an empty store for building a package from scratch.
func NewStore() *Store {
	return &Store{parts: make(map[string]*Part)}
}

// Open reads every entry of the zip archive in data.  Part contents stay Raw
// until requested.
func Open(data []byte) (*Store, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptArchive, err)
	}
	s := NewStore()
	for _, f := range zr.File {
		if strings.HasSuffix(f.Name, "/") {
			continue // directory entry
		}
		name := normalize(f.Name)
		key := strings.ToLower(name)
		if _, dup := s.parts[key]; dup {
			return nil, fmt.Errorf("%w: duplicate entry %q", ErrCorruptArchive, f.Name)
		}
		b, err := readEntry(f)
		if err != nil {
			return nil, fmt.Errorf("%w: entry %q: %v", ErrCorruptArchive, f.Name, err)
		}
		s.parts[key] = &Part{name: name, state: Raw, raw: b, src: &sourceEntry{file: f}}
		s.order = append(s.order, name)
	}
	return s, nil
}

// readEntry reads one zip entry, surfacing checksum errors reported on Close.
func readEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	data, readErr := io.ReadAll(rc)
	closeErr := rc.Close()
	if readErr != nil {
		return nil, readErr
	}
	if closeErr != nil {
		return nil, closeErr
	}
	return data, nil
}

func normalize(name string) string {
	return strings.TrimPrefix(name, "/")
}

// Part returns the named part.  The boolean is false when the part is
// absent; optional parts are common, so absence is not an error.
func (s *Store) Part(name string) (*Part, bool) {
	p, ok := s.parts[strings.ToLower(normalize(name))]
	return p, ok
}

// Has reports whether the named part exists.
func (s *Store) Has(name string) bool {
	_, ok := s.Part(name)
	return ok
}

// Names returns all part names in archive order.
func (s *Store) Names() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Len returns the number of parts.
func (s *Store) Len() int { return len(s.order) }

// PutXML stores doc under name, creating the part if needed, and marks it
// dirty.
func (s *Store) PutXML(name string, doc *etree.Document) *Part {
	p := s.ensure(name)
	p.setTree(doc)
	return p
}

// PutBytes stores b under name as a Raw part.
func (s *Store) PutBytes(name string, b []byte) *Part {
	p := s.ensure(name)
	p.setBytes(b)
	return p
}

func (s *Store) ensure(name string) *Part {
	name = normalize(name)
	key := strings.ToLower(name)
	if p, ok := s.parts[key]; ok {
		return p
	}
	p := &Part{name: name}
	s.parts[key] = p
	s.order = append(s.order, name)
	return p
}

// Remove deletes the named part and reports whether it existed.
func (s *Store) Remove(name string) bool {
	key := strings.ToLower(normalize(name))
	p, ok := s.parts[key]
	if !ok {
		return false
	}
	delete(s.parts, key)
	for i, n := range s.order {
		if n == p.name {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

// SetDirty marks the named part for re-serialization.  It reports false when
// the part does not exist or has not been materialized.
func (s *Store) SetDirty(name string) bool {
	p, ok := s.Part(name)
	if !ok || p.state != Materialized {
		return false
	}
	p.MarkDirty()
	return true
}

// DirtyNames returns the names of parts whose trees were mutated.
func (s *Store) DirtyNames() []string {
	var out []string
	for _, n := range s.order {
		if p, _ := s.Part(n); p.Dirty() {
			out = append(out, n)
		}
	}
	return out
}

// Save writes every part into a new zip archive and returns its bytes.
//
// overrides supplies freshly rendered bytes for parts whose content is
// produced outside the store (sheets, shared strings, styles); a part named
// in overrides that does not exist yet is created.  Untouched parts read
// from the source archive are copied as raw compressed entries.
//
// Store state changes only when the archive was written successfully: each
// dirty or overridden part then becomes Raw with its new bytes.
func (s *Store) Save(overrides map[string][]byte) ([]byte, error) {
	names := s.Names()
	for name := range overrides {
		if !s.Has(name) {
			names = append(names, normalize(name))
		}
	}
	// New parts go last in name order, so equal content gives equal archives.
	slices.Sort(names[len(s.order):])

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	written := make(map[string][]byte)
	for _, name := range names {
		b, override := lookup(overrides, name)
		if override {
			if err := writeDeflated(zw, name, b); err != nil {
				return nil, err
			}
			written[name] = b
			continue
		}
		p, _ := s.Part(name)
		if p.src != nil && !p.Dirty() {
			if err := copyRaw(zw, p.src.file); err != nil {
				return nil, fmt.Errorf("opc: copy %s: %w", name, err)
			}
			continue
		}
		b, err := p.Bytes()
		if err != nil {
			return nil, err
		}
		if err := writeDeflated(zw, name, b); err != nil {
			return nil, err
		}
		if p.Dirty() {
			written[name] = b
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("opc: finish archive: %w", err)
	}

	for name, b := range written {
		s.ensure(name).setBytes(b)
	}
	return buf.Bytes(), nil
}

// lookup finds name in overrides case-insensitively.
func lookup(overrides map[string][]byte, name string) ([]byte, bool) {
	if b, ok := overrides[name]; ok {
		return b, true
	}
	for k, b := range overrides {
		if strings.EqualFold(normalize(k), name) {
			return b, true
		}
	}
	return nil, false
}

func writeDeflated(zw *zip.Writer, name string, b []byte) error {
	w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate})
	if err != nil {
		return fmt.Errorf("opc: create %s: %w", name, err)
	}
	if _, err := w.Write(b); err != nil {
		return fmt.Errorf("opc: write %s: %w", name, err)
	}
	return nil
}

// copyRaw transfers a source entry without decompressing it, so the output
// entry is byte-identical to the input.
func copyRaw(zw *zip.Writer, f *zip.File) error {
	r, err := f.OpenRaw()
	if err != nil {
		return err
	}
	fh := f.FileHeader
	w, err := zw.CreateRaw(&fh)
	if err != nil {
		return err
	}
	_, err = io.Copy(w, r)
	return err
}
