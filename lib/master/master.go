package master

import (
	"context"
	"sync"

	"github.com/ValentinKolb/tabkv/lib/cluster"
	"github.com/ValentinKolb/tabkv/lib/index"
	"github.com/ValentinKolb/tabkv/lib/seglog"
	"github.com/ValentinKolb/tabkv/lib/tablet"
	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("master")

// --------------------------------------------------------------------------
// Metrics
// --------------------------------------------------------------------------

var (
	createOps   = metrics.GetOrCreateCounter(`tabkv_master_ops_total{op="create"}`)
	readOps     = metrics.GetOrCreateCounter(`tabkv_master_ops_total{op="read"}`)
	writeOps    = metrics.GetOrCreateCounter(`tabkv_master_ops_total{op="write"}`)
	removeOps   = metrics.GetOrCreateCounter(`tabkv_master_ops_total{op="remove"}`)
	rejectedOps = metrics.GetOrCreateCounter(`tabkv_master_ops_rejected_total`)

	segmentsReplayed = metrics.GetOrCreateCounter(`tabkv_master_segments_replayed_total`)
	recoveryFailures = metrics.GetOrCreateCounter(`tabkv_master_recovery_failures_total`)
	tombstonesSwept  = metrics.GetOrCreateCounter(`tabkv_master_tombstones_swept_total`)
)

// --------------------------------------------------------------------------
// Configuration
// --------------------------------------------------------------------------

// Config holds the startup parameters of a master.
type Config struct {
	// ServerID identifies this master in segment headers and towards
	// backups.
	ServerID uint64
	// Locator is the address this master advertises when enlisting.
	Locator string
	// SegmentCapacity is the byte size of each log segment (0 = default).
	SegmentCapacity int
}

// --------------------------------------------------------------------------
// Master
// --------------------------------------------------------------------------

// Master is the mutation and recovery engine of one storage node. All
// mutations are serialized by an internal lock; reads do not take it.
type Master struct {
	mu sync.Mutex // serializes log append + index update + counter update

	cfg         Config
	index       *index.Index
	log         *seglog.Log
	tablets     *tablet.TabletTable
	coordinator cluster.Coordinator
	dialBackup  cluster.BackupDialer
}

// New creates a master. coordinator may be nil for a standalone node (no
// enlistment, no recovered-tablet handoff); dialBackup may be nil if the
// master never recovers.
func New(cfg Config, coordinator cluster.Coordinator, dialBackup cluster.BackupDialer, replicator seglog.Replicator) *Master {
	return &Master{
		cfg:         cfg,
		index:       index.New(),
		log:         seglog.NewLog(cfg.ServerID, &seglog.Options{SegmentCapacity: cfg.SegmentCapacity, Replicator: replicator}),
		tablets:     tablet.New(),
		coordinator: coordinator,
		dialBackup:  dialBackup,
	}
}

// Enlist registers this master with the coordinator. No-op without one.
func (m *Master) Enlist(ctx context.Context) error {
	if m.coordinator == nil {
		return nil
	}
	id, err := m.coordinator.EnlistServer(ctx, cluster.ServerTypeMaster, m.cfg.Locator)
	if err != nil {
		return NewError(StatusInternal, VersionNonexistent, "enlist failed: %v", err)
	}
	Logger.Infof("enlisted as master %d at %s", id, m.cfg.Locator)
	return nil
}

// Tablets returns a snapshot of the owned tablet descriptors.
func (m *Master) Tablets() []tablet.Tablet {
	return m.tablets.Tablets()
}

// Ping answers a liveness probe.
func (m *Master) Ping(context.Context) error { return nil }

// --------------------------------------------------------------------------
// Tablet Management
// --------------------------------------------------------------------------

// SetTablets atomically replaces the owned tablet set. Table handles (id
// allocator, version counter) of table ids present in the new set survive
// the replacement.
func (m *Master) SetTablets(tablets []tablet.Tablet) error {
	if err := m.tablets.SetTablets(tablets); err != nil {
		return NewError(StatusInvalidTablets, VersionNonexistent, "%v", err)
	}
	Logger.Infof("Now serving tablets:\n%s", m.tablets)
	return nil
}

// getTable resolves the tablet covering the key, mapping tablet-layer
// errors onto wire statuses.
func (m *Master) getTable(tableID uint32, objectID uint64) (*tablet.Table, error) {
	_, table, err := m.tablets.Lookup(tableID, objectID)
	switch err {
	case nil:
		return table, nil
	case tablet.ErrTabletNotNormal:
		return nil, NewError(StatusRetry, VersionNonexistent, "tablet for (%d,%d) is not serving", tableID, objectID)
	default:
		return nil, NewError(StatusTableDoesntExist, VersionNonexistent, "no tablet covers (%d,%d)", tableID, objectID)
	}
}

// --------------------------------------------------------------------------
// Mutation Operations
// --------------------------------------------------------------------------

// Create allocates the next unused object id in the table, stores the
// value at the next version and returns (objectId, version).
func (m *Master) Create(ctx context.Context, tableID uint32, value []byte, rules *RejectRules) (uint64, uint64, error) {
	createOps.Inc()
	m.mu.Lock()
	defer m.mu.Unlock()

	table, err := m.tablets.NormalTable(tableID)
	if err != nil {
		if err == tablet.ErrTabletNotNormal {
			return 0, 0, NewError(StatusRetry, VersionNonexistent, "table %d is not serving", tableID)
		}
		return 0, 0, NewError(StatusTableDoesntExist, VersionNonexistent, "no tablet for table %d", tableID)
	}

	// The allocator is monotone, but ids may be occupied after recovery;
	// skip until a free one is found.
	var objectID uint64
	for {
		objectID = table.AllocateObjectID()
		if _, ok := m.index.Lookup(tableID, objectID); !ok {
			break
		}
	}

	if err := rejectOperation(rules, VersionNonexistent); err != nil {
		rejectedOps.Inc()
		return 0, 0, err
	}

	version, err := m.storeObject(ctx, table, tableID, objectID, value, VersionNonexistent, index.TagNone)
	if err != nil {
		return 0, 0, err
	}
	return objectID, version, nil
}

// Read returns the value bytes and current version of an object. The
// returned slice is a view into the log and must not be modified.
func (m *Master) Read(_ context.Context, tableID uint32, objectID uint64, rules *RejectRules) ([]byte, uint64, error) {
	readOps.Inc()
	if _, err := m.getTable(tableID, objectID); err != nil {
		return nil, 0, err
	}

	entry, ok := m.index.Lookup(tableID, objectID)
	if !ok || entry.Tag != index.TagObject {
		// Tombstoned keys read as absent.
		if err := rejectOperation(rules, VersionNonexistent); err != nil {
			rejectedOps.Inc()
			return nil, 0, err
		}
		return nil, VersionNonexistent, NewError(StatusObjectDoesntExist, VersionNonexistent, "object (%d,%d) does not exist", tableID, objectID)
	}

	obj, err := seglog.ParseObject(entry.Ref.Bytes())
	if err != nil {
		return nil, 0, NewError(StatusInternal, VersionNonexistent, "indexed object unreadable: %v", err)
	}
	if err := rejectOperation(rules, obj.Version); err != nil {
		rejectedOps.Inc()
		return nil, 0, err
	}
	return obj.Data, obj.Version, nil
}

// Write stores the value under the given key and returns the new version.
func (m *Master) Write(ctx context.Context, tableID uint32, objectID uint64, value []byte, rules *RejectRules) (uint64, error) {
	writeOps.Inc()
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := m.getTable(tableID, objectID); err != nil {
		return 0, err
	}
	table, _ := m.tablets.Table(tableID)

	current, expect := m.currentVersion(tableID, objectID)
	if err := rejectOperation(rules, current); err != nil {
		rejectedOps.Inc()
		return 0, err
	}
	return m.storeObject(ctx, table, tableID, objectID, value, current, expect)
}

// Remove deletes an object, recording a tombstone at its current version,
// and returns that version. Removing an absent object succeeds with
// VersionNonexistent unless a rule rejects.
func (m *Master) Remove(ctx context.Context, tableID uint32, objectID uint64, rules *RejectRules) (uint64, error) {
	removeOps.Inc()
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := m.getTable(tableID, objectID); err != nil {
		return 0, err
	}
	table, _ := m.tablets.Table(tableID)

	entry, ok := m.index.Lookup(tableID, objectID)
	if !ok || entry.Tag != index.TagObject {
		if err := rejectOperation(rules, VersionNonexistent); err != nil {
			rejectedOps.Inc()
			return 0, err
		}
		return VersionNonexistent, nil
	}

	obj, err := seglog.ParseObject(entry.Ref.Bytes())
	if err != nil {
		return 0, NewError(StatusInternal, VersionNonexistent, "indexed object unreadable: %v", err)
	}
	if err := rejectOperation(rules, obj.Version); err != nil {
		rejectedOps.Inc()
		return 0, err
	}

	tomb := seglog.Tombstone{
		TableID:       tableID,
		ObjectID:      objectID,
		SegmentID:     entry.Ref.Segment.ID(),
		ObjectVersion: obj.Version,
	}
	ref, err := m.log.Append(ctx, seglog.EntryTypeTombstone, tomb.Marshal())
	if err != nil {
		return 0, NewError(StatusInternal, VersionNonexistent, "log append: %v", err)
	}
	m.index.Replace(tableID, objectID, index.Entry{Tag: index.TagTombstone, Ref: ref}, index.TagObject)
	table.Advance(obj.Version + 1)
	return obj.Version, nil
}

// --------------------------------------------------------------------------
// Internal Helpers
// --------------------------------------------------------------------------

// currentVersion reads the key's version (VersionNonexistent for absent or
// tombstoned keys) and the index tag to expect on the follow-up replace.
//
// Must be called with the mutation lock held.
func (m *Master) currentVersion(tableID uint32, objectID uint64) (uint64, index.Tag) {
	entry, ok := m.index.Lookup(tableID, objectID)
	if !ok {
		return VersionNonexistent, index.TagNone
	}
	if entry.Tag == index.TagTombstone {
		return VersionNonexistent, index.TagTombstone
	}
	obj, err := seglog.ParseObject(entry.Ref.Bytes())
	if err != nil {
		// Unreachable for entries the master itself indexed.
		return VersionNonexistent, entry.Tag
	}
	return obj.Version, index.TagObject
}

// storeObject appends a new object version to the log, updates the index
// and advances the table's version counter. The new version is
// max(current, table counter) + 1, so versions stay monotone per key and
// per tablet even across recovery.
//
// Must be called with the mutation lock held.
func (m *Master) storeObject(ctx context.Context, table *tablet.Table, tableID uint32, objectID uint64, value []byte, current uint64, expect index.Tag) (uint64, error) {
	newVersion := current
	if v := table.Version(); v > newVersion {
		newVersion = v
	}
	newVersion++

	obj := seglog.Object{TableID: tableID, ObjectID: objectID, Version: newVersion, Data: value}
	ref, err := m.log.Append(ctx, seglog.EntryTypeObject, obj.Marshal())
	if err != nil {
		return 0, NewError(StatusInternal, current, "log append: %v", err)
	}
	if !m.index.Replace(tableID, objectID, index.Entry{Tag: index.TagObject, Ref: ref}, expect) {
		// Mutations are serialized, so the tag observed under the lock
		// cannot have changed.
		return 0, NewError(StatusInternal, current, "index entry for (%d,%d) changed under mutation lock", tableID, objectID)
	}
	table.Advance(newVersion)
	return newVersion, nil
}
