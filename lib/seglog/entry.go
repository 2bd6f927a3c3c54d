package seglog

import (
	"encoding/binary"
	"fmt"
)

// --------------------------------------------------------------------------
// Object Payload
// --------------------------------------------------------------------------

const objectHeaderSize = 24 // tableId u32 + objectId u64 + version u64 + dataLen u32

// Object is the decoded form of an OBJECT entry payload. Data aliases the
// buffer the object was parsed from.
type Object struct {
	TableID  uint32
	ObjectID uint64
	Version  uint64
	Data     []byte
}

// Marshal encodes the object payload (tableId u32, objectId u64,
// version u64, dataLen u32, data), little-endian.
func (o *Object) Marshal() []byte {
	buf := make([]byte, objectHeaderSize+len(o.Data))
	binary.LittleEndian.PutUint32(buf[0:4], o.TableID)
	binary.LittleEndian.PutUint64(buf[4:12], o.ObjectID)
	binary.LittleEndian.PutUint64(buf[12:20], o.Version)
	binary.LittleEndian.PutUint32(buf[20:24], uint32(len(o.Data)))
	copy(buf[objectHeaderSize:], o.Data)
	return buf
}

// ParseObject decodes an OBJECT entry payload. The returned Data is a view
// into b, not a copy.
func ParseObject(b []byte) (Object, error) {
	if len(b) < objectHeaderSize {
		return Object{}, fmt.Errorf("%w: object payload has length %d", ErrCorruptSegment, len(b))
	}
	dataLen := binary.LittleEndian.Uint32(b[20:24])
	if objectHeaderSize+int(dataLen) > len(b) {
		return Object{}, fmt.Errorf("%w: object data length %d overruns payload", ErrCorruptSegment, dataLen)
	}
	return Object{
		TableID:  binary.LittleEndian.Uint32(b[0:4]),
		ObjectID: binary.LittleEndian.Uint64(b[4:12]),
		Version:  binary.LittleEndian.Uint64(b[12:20]),
		Data:     b[objectHeaderSize : objectHeaderSize+dataLen],
	}, nil
}

// --------------------------------------------------------------------------
// Tombstone Payload
// --------------------------------------------------------------------------

const tombstoneSize = 28 // tableId u32 + objectId u64 + segmentId u64 + objectVersion u64

// Tombstone marks the removal of an object at a specific version.
// SegmentID names the segment that held the removed object.
type Tombstone struct {
	TableID       uint32
	ObjectID      uint64
	SegmentID     uint64
	ObjectVersion uint64
}

// Marshal encodes the tombstone payload (tableId u32, objectId u64,
// segmentIdOfRemovedObject u64, objectVersion u64), little-endian.
func (t *Tombstone) Marshal() []byte {
	buf := make([]byte, tombstoneSize)
	binary.LittleEndian.PutUint32(buf[0:4], t.TableID)
	binary.LittleEndian.PutUint64(buf[4:12], t.ObjectID)
	binary.LittleEndian.PutUint64(buf[12:20], t.SegmentID)
	binary.LittleEndian.PutUint64(buf[20:28], t.ObjectVersion)
	return buf
}

// ParseTombstone decodes a TOMBSTONE entry payload.
func ParseTombstone(b []byte) (Tombstone, error) {
	if len(b) != tombstoneSize {
		return Tombstone{}, fmt.Errorf("%w: tombstone payload has length %d", ErrCorruptSegment, len(b))
	}
	return Tombstone{
		TableID:       binary.LittleEndian.Uint32(b[0:4]),
		ObjectID:      binary.LittleEndian.Uint64(b[4:12]),
		SegmentID:     binary.LittleEndian.Uint64(b[12:20]),
		ObjectVersion: binary.LittleEndian.Uint64(b[20:28]),
	}, nil
}
