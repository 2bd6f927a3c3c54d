package seglog

import (
	"context"
	"fmt"

	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("seglog")

// --------------------------------------------------------------------------
// Replication
// --------------------------------------------------------------------------

// Replicator receives every committed append so it can be made durable on
// backup nodes. Replicate must not return until the entry is durable on a
// quorum of backups; the log does not acknowledge a mutation before then.
type Replicator interface {
	Replicate(ctx context.Context, segmentID uint64, t EntryType, payload []byte) error
}

// NopReplicator discards all entries. Used for standalone masters and in
// tests.
type NopReplicator struct{}

func (NopReplicator) Replicate(context.Context, uint64, EntryType, []byte) error { return nil }

// --------------------------------------------------------------------------
// Log
// --------------------------------------------------------------------------

const defaultSegmentCapacity = 8 * 1024 * 1024 // 8 MB

// Options configures a Log.
type Options struct {
	// SegmentCapacity is the byte size of each segment (0 = default 8 MB).
	SegmentCapacity int
	// Replicator receives every append (nil = NopReplicator).
	Replicator Replicator
}

// Log is the append-only sequence of segments owned by one master. It is
// not safe for concurrent use; the master serializes all appends under its
// mutation lock.
type Log struct {
	serverID   uint64
	segmentCap int
	replicator Replicator
	nextID     uint64
	head       *Segment
	segments   []*Segment
}

// NewLog creates a log for the given server id and opens the first segment.
func NewLog(serverID uint64, opts *Options) *Log {
	if opts == nil {
		opts = &Options{}
	}
	capacity := opts.SegmentCapacity
	if capacity <= 0 {
		capacity = defaultSegmentCapacity
	}
	replicator := opts.Replicator
	if replicator == nil {
		replicator = NopReplicator{}
	}

	l := &Log{
		serverID:   serverID,
		segmentCap: capacity,
		replicator: replicator,
	}
	l.rotate()
	return l
}

// rotate closes the current head (if any) and opens a fresh segment.
func (l *Log) rotate() {
	if l.head != nil {
		l.head.Close()
		Logger.Debugf("closed segment %d at %d bytes", l.head.ID(), l.head.head)
	}
	l.head = NewSegment(l.serverID, l.nextID, l.segmentCap)
	l.nextID++
	l.segments = append(l.segments, l.head)
}

// Append frames the payload into the head segment, rotating once when full,
// and waits for the replicator to acknowledge the entry. The returned Ref
// stays valid until the owning segment is reclaimed.
func (l *Log) Append(ctx context.Context, t EntryType, payload []byte) (Ref, error) {
	ref, ok := l.head.Append(t, payload)
	if !ok {
		l.rotate()
		if ref, ok = l.head.Append(t, payload); !ok {
			return Ref{}, fmt.Errorf("entry of %d bytes exceeds segment capacity %d", len(payload), l.segmentCap)
		}
	}
	if err := l.replicator.Replicate(ctx, ref.Segment.ID(), t, payload); err != nil {
		return Ref{}, fmt.Errorf("replication failed for segment %d: %w", ref.Segment.ID(), err)
	}
	return ref, nil
}

// Head returns the currently open segment.
func (l *Log) Head() *Segment { return l.head }

// Segments returns all segments in creation order, the open head last.
func (l *Log) Segments() []*Segment { return l.segments }
