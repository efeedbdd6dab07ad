package dataset

import (
	"sort"
	"strings"
	"sync/atomic"

	"github.com/c360/sttp/errors"
	"github.com/c360/sttp/wire"
	"github.com/google/uuid"
)

// Row is one record in a Table. Keys are case-insensitive: Get folds
// case on lookup, matching the filter-expression evaluator's expected
// column-name semantics even though that evaluator itself is out of
// scope here.
type Row map[string]string

// NewRow builds a Row from arbitrary-case field names, normalizing keys
// to lower case so Get is a plain map lookup.
func NewRow(fields map[string]string) Row {
	r := make(Row, len(fields))
	for k, v := range fields {
		r[strings.ToLower(k)] = v
	}
	return r
}

// Get returns the value for a column name, case-insensitively.
func (r Row) Get(column string) (string, bool) {
	v, ok := r[strings.ToLower(column)]
	return v, ok
}

// Table is a named collection of rows, e.g. "ActiveMeasurements".
type Table struct {
	Name string
	Rows []Row
}

// Predicate selects rows matching a subscription filter. The
// filter-expression language itself is out of scope (spec.md §1); a
// Predicate is whatever an embedding application compiles that language
// down to.
type Predicate func(Row) bool

// Snapshot is an immutable view of the full metadata dataset. A
// publisher never mutates a Snapshot in place: DefineMetadata builds a
// new one and installs it atomically, so a subscription resolution that
// is mid-flight against an old Snapshot is unaffected (spec.md §5,
// copy-on-write).
type Snapshot struct {
	Generation uint64
	tables     map[string]*Table // keyed by lower-cased table name
}

// NewSnapshot builds a Snapshot from tables, assigning it generation as
// its copy-on-write version number.
func NewSnapshot(generation uint64, tables []Table) *Snapshot {
	s := &Snapshot{Generation: generation, tables: make(map[string]*Table, len(tables))}
	for i := range tables {
		t := tables[i]
		s.tables[strings.ToLower(t.Name)] = &t
	}
	return s
}

// Table returns the named table, case-insensitively.
func (s *Snapshot) Table(name string) (*Table, bool) {
	t, ok := s.tables[strings.ToLower(name)]
	return t, ok
}

// TableNames returns all table names in the snapshot, sorted.
func (s *Snapshot) TableNames() []string {
	names := make([]string, 0, len(s.tables))
	for _, t := range s.tables {
		names = append(names, t.Name)
	}
	sort.Strings(names)
	return names
}

// Resolve evaluates pred against every row of the named table and
// returns the parsed SignalID (from idColumn) of each matching row. A
// row whose idColumn is missing or not a valid UUID is skipped rather
// than failing the whole resolution: a single bad metadata row should
// not prevent a subscriber from receiving everything else it asked for.
func (s *Snapshot) Resolve(tableName, idColumn string, pred Predicate) ([]uuid.UUID, error) {
	table, ok := s.Table(tableName)
	if !ok {
		return nil, errors.WrapInvalid(errUnknownTable(tableName), "dataset", "Resolve", "table lookup")
	}

	var ids []uuid.UUID
	for _, row := range table.Rows {
		if pred != nil && !pred(row) {
			continue
		}
		raw, ok := row.Get(idColumn)
		if !ok {
			continue
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Encode serializes the snapshot as a length-prefixed sequence of
// tables, each a length-prefixed sequence of rows, each a
// length-prefixed sequence of key/value string pairs. This stands in
// for the out-of-scope XML metadata wire format (spec.md §1): the
// layout is internal to this module and never needs to interoperate
// with another STTP implementation's metadata encoding.
func (s *Snapshot) Encode() []byte {
	names := s.TableNames()
	w := wire.NewWriter(1024)
	w.WriteUint32(uint32(len(names)))
	for _, name := range names {
		t := s.tables[strings.ToLower(name)]
		w.WriteString(t.Name, wire.UTF8)
		w.WriteUint32(uint32(len(t.Rows)))
		for _, row := range t.Rows {
			w.WriteUint32(uint32(len(row)))
			keys := make([]string, 0, len(row))
			for k := range row {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				w.WriteString(k, wire.UTF8)
				w.WriteString(row[k], wire.UTF8)
			}
		}
	}
	return w.Bytes()
}

// Decode parses the wire format produced by Encode into a Snapshot with
// the given generation (the generation is not itself carried on the
// wire; it is assigned by whichever side is tracking metadata versions).
func Decode(generation uint64, buf []byte) (*Snapshot, error) {
	r := wire.NewReader(buf)
	tableCount, err := r.Uint32()
	if err != nil {
		return nil, errors.Wrap(err, "dataset", "Decode", "read table count")
	}

	tables := make([]Table, 0, tableCount)
	for i := uint32(0); i < tableCount; i++ {
		name, err := r.String(wire.UTF8)
		if err != nil {
			return nil, errors.Wrap(err, "dataset", "Decode", "read table name")
		}
		rowCount, err := r.Uint32()
		if err != nil {
			return nil, errors.Wrap(err, "dataset", "Decode", "read row count")
		}
		rows := make([]Row, 0, rowCount)
		for j := uint32(0); j < rowCount; j++ {
			fieldCount, err := r.Uint32()
			if err != nil {
				return nil, errors.Wrap(err, "dataset", "Decode", "read field count")
			}
			fields := make(map[string]string, fieldCount)
			for k := uint32(0); k < fieldCount; k++ {
				key, err := r.String(wire.UTF8)
				if err != nil {
					return nil, errors.Wrap(err, "dataset", "Decode", "read field key")
				}
				val, err := r.String(wire.UTF8)
				if err != nil {
					return nil, errors.Wrap(err, "dataset", "Decode", "read field value")
				}
				fields[key] = val
			}
			rows = append(rows, NewRow(fields))
		}
		tables = append(tables, Table{Name: name, Rows: rows})
	}
	return NewSnapshot(generation, tables), nil
}

// Manager holds the publisher's current metadata Snapshot behind an
// atomic pointer: DefineMetadata installs a new Snapshot without ever
// mutating the one any in-flight Subscribe resolution is reading
// (spec.md §5, copy-on-write).
type Manager struct {
	ptr        atomic.Pointer[Snapshot]
	generation atomic.Uint64
}

// NewManager returns a Manager holding an empty Snapshot.
func NewManager() *Manager {
	m := &Manager{}
	m.ptr.Store(NewSnapshot(0, nil))
	return m
}

// Define installs tables as a fresh Snapshot and returns it. Each call
// increments the generation regardless of whether the content actually
// changed, since callers (the metadata compression cache, §4.9) key on
// generation rather than diffing content.
func (m *Manager) Define(tables []Table) *Snapshot {
	gen := m.generation.Add(1)
	snap := NewSnapshot(gen, tables)
	m.ptr.Store(snap)
	return snap
}

// Current returns the Snapshot currently installed.
func (m *Manager) Current() *Snapshot {
	return m.ptr.Load()
}

func errUnknownTable(name string) error {
	return &unknownTableError{name: name}
}

type unknownTableError struct{ name string }

func (e *unknownTableError) Error() string { return "dataset: unknown table " + e.name }
