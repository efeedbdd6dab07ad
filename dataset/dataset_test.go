package dataset

import (
	"testing"

	"github.com/google/uuid"
)

func TestRowCaseInsensitiveGet(t *testing.T) {
	row := NewRow(map[string]string{"SignalID": "abc", "PointTag": "X1"})

	if v, ok := row.Get("signalid"); !ok || v != "abc" {
		t.Fatalf("Get(signalid) = %q, %v", v, ok)
	}
	if v, ok := row.Get("POINTTAG"); !ok || v != "X1" {
		t.Fatalf("Get(POINTTAG) = %q, %v", v, ok)
	}
	if _, ok := row.Get("missing"); ok {
		t.Fatal("Get(missing) should not be found")
	}
}

func TestSnapshotResolve(t *testing.T) {
	idA, idB := uuid.New(), uuid.New()
	snap := NewSnapshot(1, []Table{
		{
			Name: "ActiveMeasurements",
			Rows: []Row{
				NewRow(map[string]string{"SignalID": idA.String(), "PointTag": "a"}),
				NewRow(map[string]string{"SignalID": idB.String(), "PointTag": "b"}),
				NewRow(map[string]string{"PointTag": "c"}), // missing SignalID, must be skipped
			},
		},
	})

	all, err := snap.Resolve("activemeasurements", "signalid", nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 resolved ids, got %d", len(all))
	}

	onlyA, err := snap.Resolve("ActiveMeasurements", "SignalID", func(r Row) bool {
		tag, _ := r.Get("pointtag")
		return tag == "a"
	})
	if err != nil {
		t.Fatalf("Resolve with predicate: %v", err)
	}
	if len(onlyA) != 1 || onlyA[0] != idA {
		t.Fatalf("expected [%s], got %v", idA, onlyA)
	}
}

func TestSnapshotResolveUnknownTable(t *testing.T) {
	snap := NewSnapshot(1, nil)
	if _, err := snap.Resolve("NoSuchTable", "signalid", nil); err == nil {
		t.Fatal("expected error for unknown table")
	}
}

func TestSnapshotEncodeDecodeRoundTrip(t *testing.T) {
	id := uuid.New()
	snap := NewSnapshot(7, []Table{
		{Name: "ActiveMeasurements", Rows: []Row{
			NewRow(map[string]string{"SignalID": id.String(), "PointTag": "a.b.c"}),
		}},
		{Name: "Empty", Rows: nil},
	})

	decoded, err := Decode(7, snap.Encode())
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	ids, err := decoded.Resolve("ActiveMeasurements", "SignalID", nil)
	if err != nil || len(ids) != 1 || ids[0] != id {
		t.Fatalf("round trip resolve mismatch: ids=%v err=%v", ids, err)
	}
	if _, ok := decoded.Table("empty"); !ok {
		t.Fatal("expected empty table to survive round trip")
	}
}

func TestManagerCopyOnWrite(t *testing.T) {
	m := NewManager()
	first := m.Current()

	id := uuid.New()
	second := m.Define([]Table{
		{Name: "ActiveMeasurements", Rows: []Row{NewRow(map[string]string{"SignalID": id.String()})}},
	})

	// The snapshot captured before Define must be unaffected by the new one.
	if first == m.Current() {
		t.Fatal("Current() should return the new snapshot after Define")
	}
	if _, ok := first.Table("ActiveMeasurements"); ok {
		t.Fatal("snapshot captured before Define must not see the new table")
	}
	if second.Generation != first.Generation+1 {
		t.Fatalf("expected generation to increment, got %d -> %d", first.Generation, second.Generation)
	}
}

func TestCompressedCacheRoundTrip(t *testing.T) {
	snap := NewSnapshot(1, []Table{
		{Name: "T", Rows: []Row{NewRow(map[string]string{"a": "b"})}},
	})

	c, err := NewCompressedCache(8)
	if err != nil {
		t.Fatalf("NewCompressedCache: %v", err)
	}

	blob, err := c.Get(snap, "utf-8")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	blobAgain, err := c.Get(snap, "utf-8")
	if err != nil {
		t.Fatalf("Get (cached): %v", err)
	}
	if string(blob) != string(blobAgain) {
		t.Fatal("cached blob should be identical across calls")
	}

	raw, err := Decompress(blob)
	if err != nil {
		t.Fatalf("Decompress: %v", err)
	}
	decoded, err := Decode(snap.Generation, raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if _, ok := decoded.Table("T"); !ok {
		t.Fatal("expected table T after round trip through compression")
	}
}
