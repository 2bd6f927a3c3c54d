package master

import (
	"context"
	"encoding/binary"
	"math/rand"

	"github.com/ValentinKolb/tabkv/lib/cluster"
	"github.com/ValentinKolb/tabkv/lib/index"
	"github.com/ValentinKolb/tabkv/lib/seglog"
	"github.com/ValentinKolb/tabkv/lib/tablet"
	"github.com/cespare/xxhash/v2"
)

// --------------------------------------------------------------------------
// Recovery Orchestration
// --------------------------------------------------------------------------

// Recover recovers one partition of a failed master's tablets. It installs
// the tablets in RECOVERING state, pulls every segment named in the backup
// list from its candidate backups, replays them, then publishes the
// tablets as NORMAL, notifies the coordinator and sweeps the tombstones.
//
// If a segment cannot be recovered, the in-progress tablet state is
// discarded; re-assignment is the coordinator's job. If the tabletsRecovered
// notification fails, the error is returned and the tablets stay NORMAL.
func (m *Master) Recover(ctx context.Context, failedMasterID, partitionID uint64, tablets []tablet.Tablet, backups []cluster.BackupEntry) error {
	Logger.Infof("Recovering master %d, partition %d, %d hosts", failedMasterID, partitionID, len(backups))

	if err := m.tablets.AddRecovering(tablets); err != nil {
		return NewError(StatusInvalidTablets, VersionNonexistent, "%v", err)
	}

	if err := m.recover(ctx, failedMasterID, partitionID, tablets, backups); err != nil {
		m.tablets.Drop(tablets)
		recoveryFailures.Inc()
		return err
	}

	m.tablets.MarkNormal(tablets)
	if m.coordinator != nil {
		if err := m.coordinator.TabletsRecovered(ctx, tablets); err != nil {
			return NewError(StatusInternal, VersionNonexistent, "tabletsRecovered failed: %v", err)
		}
	}
	m.RemoveTombstones()
	Logger.Infof("recovery of partition %d complete, %d tablets now NORMAL", partitionID, len(tablets))
	return nil
}

// shuffleSeed derives a deterministic per-segment seed so that candidate
// ordering is reproducible in tests yet spreads load across backups.
func shuffleSeed(failedMasterID, partitionID, segmentID uint64) int64 {
	var buf [24]byte
	binary.LittleEndian.PutUint64(buf[0:8], failedMasterID)
	binary.LittleEndian.PutUint64(buf[8:16], partitionID)
	binary.LittleEndian.PutUint64(buf[16:24], segmentID)
	return int64(xxhash.Sum64(buf[:]))
}

// recover runs the plan / fetch / replay phases.
func (m *Master) recover(ctx context.Context, failedMasterID, partitionID uint64, tablets []tablet.Tablet, backups []cluster.BackupEntry) error {
	if m.dialBackup == nil {
		return NewError(StatusInternal, VersionNonexistent, "master has no backup dialer")
	}

	// Plan: group candidate locators per segment, keeping first-seen
	// segment order, then shuffle each candidate list deterministically.
	var order []uint64
	candidates := make(map[uint64][]string)
	for _, b := range backups {
		if _, ok := candidates[b.SegmentID]; !ok {
			order = append(order, b.SegmentID)
		}
		candidates[b.SegmentID] = append(candidates[b.SegmentID], b.Locator)
	}
	for segID, locs := range candidates {
		rng := rand.New(rand.NewSource(shuffleSeed(failedMasterID, partitionID, segID)))
		rng.Shuffle(len(locs), func(i, j int) { locs[i], locs[j] = locs[j], locs[i] })
	}

	// Contact each distinct backup once; it starts producing recovery data
	// in the background and tells us which segments it will serve.
	sessions := make(map[string]cluster.Backup)
	willing := make(map[string]map[uint64]bool)
	for _, b := range backups {
		if _, seen := sessions[b.Locator]; seen {
			continue
		}
		sessions[b.Locator] = nil

		backup, err := m.dialBackup(b.Locator)
		if err != nil {
			Logger.Warningf("cannot reach backup %s: %v", b.Locator, err)
			continue
		}
		segIDs, err := backup.StartReadingData(ctx, failedMasterID, tablets)
		if err != nil {
			Logger.Warningf("startReadingData failed on %s: %v", b.Locator, err)
			backup.Close()
			continue
		}
		sessions[b.Locator] = backup
		willing[b.Locator] = make(map[uint64]bool, len(segIDs))
		for _, id := range segIDs {
			willing[b.Locator][id] = true
		}
	}
	defer func() {
		for _, s := range sessions {
			if s != nil {
				s.Close()
			}
		}
	}()

	// Fetch & replay. A segment is recovered once any replay succeeds;
	// per-segment failures fall over to the next candidate.
	for _, segID := range order {
		recovered := false
		for _, locator := range candidates[segID] {
			backup := sessions[locator]
			if backup == nil {
				continue
			}
			if w, ok := willing[locator]; ok && !w[segID] {
				Logger.Debugf("backup %s is not serving segment %d", locator, segID)
				continue
			}

			Logger.Infof("Starting getRecoveryData from %s for segment %d", locator, segID)
			data, err := backup.GetRecoveryData(ctx, failedMasterID, segID)
			if err != nil {
				Logger.Warningf("getRecoveryData failed on %s, trying next backup; failure was: %v", locator, err)
				continue
			}
			if err := m.RecoverSegment(ctx, segID, data); err != nil {
				Logger.Warningf("replay of segment %d from %s failed: %v", segID, locator, err)
				continue
			}
			Logger.Infof("Segment %d replay complete", segID)
			recovered = true
			break
		}
		if !recovered {
			return NewError(StatusSegmentRecoveryFailed, VersionNonexistent,
				"segment %d could not be recovered from any backup", segID)
		}
	}
	return nil
}

// --------------------------------------------------------------------------
// Segment Replay (three-way merge)
// --------------------------------------------------------------------------

// RecoverSegment replays one recovered segment into the index. Entries are
// merged by version against whatever the index already holds, so replaying
// segments in any order, or the same segment twice, converges to the same
// state. Accepted entries are re-appended to this master's own log.
func (m *Master) RecoverSegment(ctx context.Context, segmentID uint64, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	Logger.Debugf("recoverSegment %d, %d bytes", segmentID, len(data))
	err := seglog.IterateEntries(data, func(t seglog.EntryType, payload []byte) error {
		switch t {
		case seglog.EntryTypeObject:
			obj, err := seglog.ParseObject(payload)
			if err != nil {
				return err
			}
			return m.replayObject(ctx, obj, payload)
		case seglog.EntryTypeTombstone:
			tomb, err := seglog.ParseTombstone(payload)
			if err != nil {
				return err
			}
			return m.replayTombstone(ctx, tomb, payload)
		}
		return nil
	})
	if err != nil {
		return err
	}
	segmentsReplayed.Inc()
	return nil
}

// replayObject applies one replayed OBJECT entry.
//
// Against a live object the entry wins iff strictly newer; against a
// tombstone iff strictly newer than the removed version; an empty slot
// always accepts.
func (m *Master) replayObject(ctx context.Context, obj seglog.Object, payload []byte) error {
	entry, ok := m.index.Lookup(obj.TableID, obj.ObjectID)
	expect := index.TagNone
	if ok {
		expect = entry.Tag
		switch entry.Tag {
		case index.TagObject:
			cur, err := seglog.ParseObject(entry.Ref.Bytes())
			if err != nil {
				return err
			}
			if obj.Version <= cur.Version {
				return nil
			}
		case index.TagTombstone:
			tomb, err := seglog.ParseTombstone(entry.Ref.Bytes())
			if err != nil {
				return err
			}
			if obj.Version <= tomb.ObjectVersion {
				return nil
			}
		}
	}

	ref, err := m.log.Append(ctx, seglog.EntryTypeObject, payload)
	if err != nil {
		return NewError(StatusInternal, VersionNonexistent, "log append during replay: %v", err)
	}
	m.index.Replace(obj.TableID, obj.ObjectID, index.Entry{Tag: index.TagObject, Ref: ref}, expect)
	if table, ok := m.tablets.Table(obj.TableID); ok {
		table.Advance(obj.Version)
	}
	return nil
}

// replayTombstone applies one replayed TOMBSTONE entry.
//
// Against a live object the tombstone wins iff its version is equal or
// newer (equal versions deterministically remove); against another
// tombstone iff strictly newer; an empty slot always accepts.
func (m *Master) replayTombstone(ctx context.Context, tomb seglog.Tombstone, payload []byte) error {
	entry, ok := m.index.Lookup(tomb.TableID, tomb.ObjectID)
	expect := index.TagNone
	if ok {
		expect = entry.Tag
		switch entry.Tag {
		case index.TagObject:
			cur, err := seglog.ParseObject(entry.Ref.Bytes())
			if err != nil {
				return err
			}
			if tomb.ObjectVersion < cur.Version {
				return nil
			}
		case index.TagTombstone:
			cur, err := seglog.ParseTombstone(entry.Ref.Bytes())
			if err != nil {
				return err
			}
			if tomb.ObjectVersion <= cur.ObjectVersion {
				return nil
			}
		}
	}

	ref, err := m.log.Append(ctx, seglog.EntryTypeTombstone, payload)
	if err != nil {
		return NewError(StatusInternal, VersionNonexistent, "log append during replay: %v", err)
	}
	m.index.Replace(tomb.TableID, tomb.ObjectID, index.Entry{Tag: index.TagTombstone, Ref: ref}, expect)
	if table, ok := m.tablets.Table(tomb.TableID); ok {
		table.Advance(tomb.ObjectVersion)
	}
	return nil
}

// RemoveTombstones purges all tombstone entries from the index. Tombstones
// exist solely to shadow older-arriving objects during replay; once every
// segment is replayed they are dead.
func (m *Master) RemoveTombstones() {
	m.index.RangeTombstones(func(k index.Key, _ index.Entry) bool {
		m.index.Remove(k.TableID, k.ObjectID)
		tombstonesSwept.Inc()
		return true
	})
}
