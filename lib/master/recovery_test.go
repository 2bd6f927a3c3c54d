package master

import (
	"context"
	"fmt"
	"math"
	"testing"

	"github.com/ValentinKolb/tabkv/lib/cluster"
	"github.com/ValentinKolb/tabkv/lib/seglog"
	"github.com/ValentinKolb/tabkv/lib/tablet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --------------------------------------------------------------------------
// Test Helpers
// --------------------------------------------------------------------------

type segEntry struct {
	t       seglog.EntryType
	payload []byte
}

func objEntry(tableID uint32, objectID, version uint64, data string) segEntry {
	o := seglog.Object{TableID: tableID, ObjectID: objectID, Version: version, Data: []byte(data)}
	return segEntry{t: seglog.EntryTypeObject, payload: o.Marshal()}
}

func tombEntry(tableID uint32, objectID, objectVersion uint64) segEntry {
	tb := seglog.Tombstone{TableID: tableID, ObjectID: objectID, ObjectVersion: objectVersion}
	return segEntry{t: seglog.EntryTypeTombstone, payload: tb.Marshal()}
}

// buildSegment assembles a closed recovery segment from the given entries.
func buildSegment(t *testing.T, segmentID uint64, entries ...segEntry) []byte {
	t.Helper()
	s := seglog.NewSegment(99, segmentID, 64*1024)
	for _, e := range entries {
		_, ok := s.Append(e.t, e.payload)
		require.True(t, ok)
	}
	s.Close()
	return append([]byte(nil), s.Bytes()...)
}

func replay(t *testing.T, m *Master, segmentID uint64, entries ...segEntry) {
	t.Helper()
	require.NoError(t, m.RecoverSegment(context.Background(), segmentID, buildSegment(t, segmentID, entries...)))
}

func readString(t *testing.T, m *Master, tableID uint32, objectID uint64) (string, uint64) {
	t.Helper()
	value, version, err := m.Read(context.Background(), tableID, objectID, nil)
	require.NoError(t, err)
	return string(value), version
}

// --------------------------------------------------------------------------
// Segment Replay (merge rules)
// --------------------------------------------------------------------------

func TestReplayObjectVsObject(t *testing.T) {
	// Newer object already there; older replayed object is ignored,
	// regardless of arrival order.
	m := newTestMaster(t)
	replay(t, m, 1, objEntry(0, 2000, 1, "newer"))
	replay(t, m, 2, objEntry(0, 2000, 0, "older"))
	value, version := readString(t, m, 0, 2000)
	assert.Equal(t, "newer", value)
	assert.Equal(t, uint64(1), version)

	m = newTestMaster(t)
	replay(t, m, 2, objEntry(0, 2000, 0, "older"))
	replay(t, m, 1, objEntry(0, 2000, 1, "newer"))
	value, version = readString(t, m, 0, 2000)
	assert.Equal(t, "newer", value)
	assert.Equal(t, uint64(1), version)
}

func TestReplayObjectVsTombstone(t *testing.T) {
	// Equal tombstone shadows the object.
	m := newTestMaster(t)
	replay(t, m, 1, tombEntry(0, 2002, 1))
	replay(t, m, 2, objEntry(0, 2002, 1, "equal"), objEntry(0, 2002, 0, "older"))
	m.RemoveTombstones()
	_, _, err := m.Read(context.Background(), 0, 2002, nil)
	assertStatus(t, err, StatusObjectDoesntExist)

	// A strictly newer object replaces the tombstone.
	m = newTestMaster(t)
	replay(t, m, 1, tombEntry(0, 2003, 10))
	replay(t, m, 2, objEntry(0, 2003, 11, "newer"))
	value, version := readString(t, m, 0, 2003)
	assert.Equal(t, "newer", value)
	assert.Equal(t, uint64(11), version)
}

func TestReplayObjectOntoEmptySlot(t *testing.T) {
	m := newTestMaster(t)
	replay(t, m, 1, objEntry(0, 2004, 0, "only"))
	value, _ := readString(t, m, 0, 2004)
	assert.Equal(t, "only", value)
}

func TestReplayTombstoneVsObject(t *testing.T) {
	// Newer object survives an older tombstone.
	m := newTestMaster(t)
	replay(t, m, 1, objEntry(0, 2005, 1, "newer"))
	replay(t, m, 2, tombEntry(0, 2005, 0))
	value, _ := readString(t, m, 0, 2005)
	assert.Equal(t, "newer", value)

	// A tombstone at the same version deterministically removes.
	m = newTestMaster(t)
	replay(t, m, 1, objEntry(0, 2006, 0, "equal"))
	replay(t, m, 2, tombEntry(0, 2006, 0))
	m.RemoveTombstones()
	_, _, err := m.Read(context.Background(), 0, 2006, nil)
	assertStatus(t, err, StatusObjectDoesntExist)

	// And so does a strictly newer one.
	m = newTestMaster(t)
	replay(t, m, 1, objEntry(0, 2007, 0, "older"))
	replay(t, m, 2, tombEntry(0, 2007, 1))
	m.RemoveTombstones()
	_, _, err = m.Read(context.Background(), 0, 2007, nil)
	assertStatus(t, err, StatusObjectDoesntExist)
}

func TestReplayTombstoneVsTombstone(t *testing.T) {
	// The newer tombstone wins either way around.
	m := newTestMaster(t)
	replay(t, m, 1, tombEntry(0, 2008, 1))
	replay(t, m, 2, tombEntry(0, 2008, 0))
	replay(t, m, 3, objEntry(0, 2008, 1, "shadowed"))
	m.RemoveTombstones()
	_, _, err := m.Read(context.Background(), 0, 2008, nil)
	assertStatus(t, err, StatusObjectDoesntExist)

	m = newTestMaster(t)
	replay(t, m, 1, tombEntry(0, 2009, 0))
	replay(t, m, 2, tombEntry(0, 2009, 1))
	// An object newer than the first tombstone but not the second stays
	// dead.
	replay(t, m, 3, objEntry(0, 2009, 1, "shadowed"))
	m.RemoveTombstones()
	_, _, err = m.Read(context.Background(), 0, 2009, nil)
	assertStatus(t, err, StatusObjectDoesntExist)
}

func TestReplayTombstoneOntoEmptySlot(t *testing.T) {
	m := newTestMaster(t)
	replay(t, m, 1, tombEntry(0, 2010, 0))

	// The tombstone shadows a later-arriving object at the same version.
	replay(t, m, 2, objEntry(0, 2010, 0, "late"))
	m.RemoveTombstones()
	_, _, err := m.Read(context.Background(), 0, 2010, nil)
	assertStatus(t, err, StatusObjectDoesntExist)
}

func TestReplayIsIdempotent(t *testing.T) {
	m := newTestMaster(t)
	entries := []segEntry{
		objEntry(0, 1, 1, "a"),
		objEntry(0, 2, 2, "b"),
		tombEntry(0, 3, 1),
	}
	replay(t, m, 7, entries...)
	replay(t, m, 7, entries...)

	value, version := readString(t, m, 0, 1)
	assert.Equal(t, "a", value)
	assert.Equal(t, uint64(1), version)
	value, version = readString(t, m, 0, 2)
	assert.Equal(t, "b", value)
	assert.Equal(t, uint64(2), version)
}

func TestReplayConvergesUnderAnyPermutation(t *testing.T) {
	segments := [][]segEntry{
		{objEntry(0, 100, 1, "a1"), objEntry(0, 101, 2, "b2"), tombEntry(0, 102, 1)},
		{objEntry(0, 100, 3, "a3"), tombEntry(0, 101, 2), objEntry(0, 102, 1, "c1")},
		{objEntry(0, 100, 2, "a2"), objEntry(0, 101, 1, "b1"), objEntry(0, 102, 2, "c2")},
	}
	orders := [][]int{
		{0, 1, 2}, {0, 2, 1}, {1, 0, 2}, {1, 2, 0}, {2, 0, 1}, {2, 1, 0},
	}

	check := func(t *testing.T, m *Master) {
		t.Helper()
		value, version := readString(t, m, 0, 100)
		assert.Equal(t, "a3", value)
		assert.Equal(t, uint64(3), version)

		// Key 101: tombstone at v2 shadows both object versions.
		_, _, err := m.Read(context.Background(), 0, 101, nil)
		assertStatus(t, err, StatusObjectDoesntExist)

		// Key 102: object v2 beats the v1 tombstone.
		value, version = readString(t, m, 0, 102)
		assert.Equal(t, "c2", value)
		assert.Equal(t, uint64(2), version)
	}

	for _, order := range orders {
		t.Run(fmt.Sprintf("%v", order), func(t *testing.T) {
			m := newTestMaster(t)
			for _, i := range order {
				replay(t, m, uint64(10+i), segments[i]...)
			}
			m.RemoveTombstones()
			check(t, m)
		})
	}
}

func TestRemoveTombstonesPurgesIndex(t *testing.T) {
	m := newTestMaster(t)
	replay(t, m, 1, tombEntry(0, 1, 1), tombEntry(0, 2, 1), objEntry(0, 3, 1, "live"))
	assert.Equal(t, 3, m.index.Len())

	m.RemoveTombstones()
	assert.Equal(t, 1, m.index.Len())
	value, _ := readString(t, m, 0, 3)
	assert.Equal(t, "live", value)
}

func TestReplayAdvancesVersionCounter(t *testing.T) {
	m := newTestMaster(t)
	replay(t, m, 1, objEntry(0, 50, 41, "x"))

	// The next mutation in the table must exceed every replayed version.
	version, err := m.Write(context.Background(), 0, 51, []byte("y"), nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), version)
}

func TestRecoverSegmentCorrupt(t *testing.T) {
	m := newTestMaster(t)
	data := buildSegment(t, 1, objEntry(0, 1, 1, "a"))
	data[len(data)-2] ^= 0xff // clobber the footer magic

	err := m.RecoverSegment(context.Background(), 1, data)
	assert.ErrorIs(t, err, seglog.ErrCorruptSegment)
}

// --------------------------------------------------------------------------
// Recovery Orchestration
// --------------------------------------------------------------------------

// fakeBackup is an in-memory cluster.Backup serving canned segments.
type fakeBackup struct {
	segments map[uint64][]byte
	failing  map[uint64]bool // getRecoveryData fails for these segments
	started  int
	closed   bool
}

func (b *fakeBackup) StartReadingData(context.Context, uint64, []tablet.Tablet) ([]uint64, error) {
	b.started++
	ids := make([]uint64, 0, len(b.segments))
	for id := range b.segments {
		ids = append(ids, id)
	}
	return ids, nil
}

func (b *fakeBackup) GetRecoveryData(_ context.Context, _ uint64, segmentID uint64) ([]byte, error) {
	if b.failing[segmentID] {
		return nil, fmt.Errorf("bad segment id")
	}
	data, ok := b.segments[segmentID]
	if !ok {
		return nil, fmt.Errorf("bad segment id")
	}
	return data, nil
}

func (b *fakeBackup) Close() error {
	b.closed = true
	return nil
}

// fakeCoordinator records recovered tablet handoffs.
type fakeCoordinator struct {
	recovered [][]tablet.Tablet
}

func (c *fakeCoordinator) EnlistServer(context.Context, cluster.ServerType, string) (uint64, error) {
	return 2, nil
}

func (c *fakeCoordinator) TabletsRecovered(_ context.Context, tablets []tablet.Tablet) error {
	c.recovered = append(c.recovered, tablets)
	return nil
}

func dialerFor(backups map[string]*fakeBackup) cluster.BackupDialer {
	return func(locator string) (cluster.Backup, error) {
		b, ok := backups[locator]
		if !ok {
			return nil, fmt.Errorf("no route to %s", locator)
		}
		return b, nil
	}
}

func recoveryTablets() []tablet.Tablet {
	return []tablet.Tablet{
		{TableID: 123, Start: 0, End: 9},
		{TableID: 123, Start: 10, End: 19},
		{TableID: 124, Start: 20, End: 100},
	}
}

func newRecoveryMaster(t *testing.T, coord cluster.Coordinator, dial cluster.BackupDialer) *Master {
	t.Helper()
	m := New(Config{ServerID: 2, SegmentCapacity: 64 * 1024}, coord, dial, seglog.NopReplicator{})
	require.NoError(t, m.SetTablets([]tablet.Tablet{
		{TableID: 0, Start: 0, End: math.MaxUint64, State: tablet.StateNormal},
	}))
	return m
}

func TestRecoverBasics(t *testing.T) {
	seg87 := buildSegment(t, 87, objEntry(123, 5, 1, "five"), objEntry(123, 12, 2, "twelve"))
	seg88 := buildSegment(t, 88, objEntry(124, 30, 1, "thirty"), tombEntry(123, 5, 1))

	backup1 := &fakeBackup{segments: map[uint64][]byte{87: seg87, 88: seg88}}
	coord := &fakeCoordinator{}
	m := newRecoveryMaster(t, coord, dialerFor(map[string]*fakeBackup{"backup1": backup1}))

	tablets := recoveryTablets()
	err := m.Recover(context.Background(), 99, 0, tablets, []cluster.BackupEntry{
		{Locator: "backup1", SegmentID: 87},
		{Locator: "backup1", SegmentID: 88},
	})
	require.NoError(t, err)

	// startReadingData is called once per distinct backup.
	assert.Equal(t, 1, backup1.started)
	assert.True(t, backup1.closed)

	// The tablets are serving and the coordinator was notified.
	require.Len(t, coord.recovered, 1)
	assert.Equal(t, tablets, coord.recovered[0])

	value, _ := readString(t, m, 123, 12)
	assert.Equal(t, "twelve", value)
	value, _ = readString(t, m, 124, 30)
	assert.Equal(t, "thirty", value)

	// The tombstone for (123,5) shadowed the object and was swept.
	_, _, err = m.Read(context.Background(), 123, 5, nil)
	assertStatus(t, err, StatusObjectDoesntExist)
}

func TestRecoverFallsOverToNextBackup(t *testing.T) {
	seg87 := buildSegment(t, 87, objEntry(123, 1, 1, "one"))
	seg88 := buildSegment(t, 88, objEntry(124, 30, 1, "thirty"))

	// backup1 claims both segments but fails to serve 88.
	backup1 := &fakeBackup{
		segments: map[uint64][]byte{87: seg87, 88: seg88},
		failing:  map[uint64]bool{88: true},
	}
	backup2 := &fakeBackup{segments: map[uint64][]byte{88: seg88}}
	coord := &fakeCoordinator{}
	m := newRecoveryMaster(t, coord, dialerFor(map[string]*fakeBackup{"backup1": backup1, "backup2": backup2}))

	err := m.Recover(context.Background(), 99, 0, recoveryTablets(), []cluster.BackupEntry{
		{Locator: "backup1", SegmentID: 87},
		{Locator: "backup1", SegmentID: 88},
		{Locator: "backup2", SegmentID: 88},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, backup1.started)
	assert.Equal(t, 1, backup2.started)

	value, _ := readString(t, m, 124, 30)
	assert.Equal(t, "thirty", value)
}

func TestRecoverFailsWhenNoCandidateServes(t *testing.T) {
	seg87 := buildSegment(t, 87, objEntry(123, 1, 1, "one"))

	backup1 := &fakeBackup{
		segments: map[uint64][]byte{87: seg87, 88: nil},
		failing:  map[uint64]bool{88: true},
	}
	coord := &fakeCoordinator{}
	m := newRecoveryMaster(t, coord, dialerFor(map[string]*fakeBackup{"backup1": backup1}))

	tablets := recoveryTablets()
	err := m.Recover(context.Background(), 99, 0, tablets, []cluster.BackupEntry{
		{Locator: "backup1", SegmentID: 87},
		{Locator: "backup1", SegmentID: 88},
	})
	assertStatus(t, err, StatusSegmentRecoveryFailed)

	// The in-progress tablet state is discarded and nothing was handed to
	// the coordinator.
	assert.Empty(t, coord.recovered)
	_, _, err = m.Read(context.Background(), 123, 1, nil)
	assertStatus(t, err, StatusTableDoesntExist)
}

func TestRecoverWithCorruptReplicaFallsOver(t *testing.T) {
	seg87 := buildSegment(t, 87, objEntry(123, 1, 1, "one"))
	corrupt := append([]byte(nil), seg87...)
	corrupt[len(corrupt)-2] ^= 0xff

	backup1 := &fakeBackup{segments: map[uint64][]byte{87: corrupt}}
	backup2 := &fakeBackup{segments: map[uint64][]byte{87: seg87}}
	coord := &fakeCoordinator{}
	m := newRecoveryMaster(t, coord, dialerFor(map[string]*fakeBackup{"backup1": backup1, "backup2": backup2}))

	err := m.Recover(context.Background(), 99, 0, recoveryTablets(), []cluster.BackupEntry{
		{Locator: "backup1", SegmentID: 87},
		{Locator: "backup2", SegmentID: 87},
	})
	require.NoError(t, err)

	value, _ := readString(t, m, 123, 1)
	assert.Equal(t, "one", value)
}

func TestRecoverUnreachableBackup(t *testing.T) {
	seg87 := buildSegment(t, 87, objEntry(123, 1, 1, "one"))
	backup2 := &fakeBackup{segments: map[uint64][]byte{87: seg87}}
	coord := &fakeCoordinator{}
	// "backup1" is not routable at all.
	m := newRecoveryMaster(t, coord, dialerFor(map[string]*fakeBackup{"backup2": backup2}))

	err := m.Recover(context.Background(), 99, 0, recoveryTablets(), []cluster.BackupEntry{
		{Locator: "backup1", SegmentID: 87},
		{Locator: "backup2", SegmentID: 87},
	})
	require.NoError(t, err)

	value, _ := readString(t, m, 123, 1)
	assert.Equal(t, "one", value)
}
