package seglog

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
)

// --------------------------------------------------------------------------
// Constants and Entry Types
// --------------------------------------------------------------------------

const (
	// segmentMagic identifies a segment on the wire. It appears in the
	// SEGMENT_HEADER payload and again in the SEGMENT_FOOTER payload.
	segmentMagic uint32 = 0x7ab1e705

	// formatVersion is bumped whenever the segment layout changes.
	formatVersion uint32 = 1

	// frameOverhead is the per-entry framing cost: type (u8) + length (u32).
	frameOverhead = 5

	headerPayloadSize = 24 // magic u32 + segmentId u64 + serverId u64 + version u32
	footerPayloadSize = 8  // checksum u32 + magic u32
)

// EntryType tags a framed log entry.
type EntryType uint8

const (
	EntryTypeSegmentHeader EntryType = 1
	EntryTypeObject        EntryType = 2
	EntryTypeTombstone     EntryType = 3
	EntryTypeSegmentFooter EntryType = 4
)

func (t EntryType) String() string {
	switch t {
	case EntryTypeSegmentHeader:
		return "SegmentHeader"
	case EntryTypeObject:
		return "Object"
	case EntryTypeTombstone:
		return "Tombstone"
	case EntryTypeSegmentFooter:
		return "SegmentFooter"
	default:
		return "Unknown"
	}
}

// ErrCorruptSegment is reported by IterateEntries on any framing violation.
// The recovery engine treats this as a per-segment failure and retries the
// segment against another backup.
var ErrCorruptSegment = errors.New("corrupt segment")

// crcTable is the Castagnoli table used for the footer checksum.
var crcTable = crc32.MakeTable(crc32.Castagnoli)

// --------------------------------------------------------------------------
// Ref
// --------------------------------------------------------------------------

// Ref is a stable, non-owning reference to an entry payload inside a
// segment. Refs stay valid until their segment is reclaimed.
type Ref struct {
	Segment *Segment
	Offset  uint32 // payload start within the segment buffer
	Length  uint32 // payload length
}

// Bytes returns a view of the referenced payload. The returned slice aliases
// the segment buffer and must not be modified.
func (r Ref) Bytes() []byte {
	return r.Segment.buf[r.Offset : r.Offset+r.Length]
}

// --------------------------------------------------------------------------
// Segment
// --------------------------------------------------------------------------

// Segment is a bounded byte region written sequentially with framed entries
// (type u8, length u32, payload). The first entry is always a
// SEGMENT_HEADER; Close appends a SEGMENT_FOOTER carrying a checksum over
// everything before it. All integers are little-endian.
type Segment struct {
	id       uint64
	serverID uint64
	buf      []byte
	head     int
	closed   bool
}

// NewSegment allocates a segment of the given capacity and writes the
// header entry.
func NewSegment(serverID, segmentID uint64, capacity int) *Segment {
	s := &Segment{
		id:       segmentID,
		serverID: serverID,
		buf:      make([]byte, capacity),
	}

	header := make([]byte, headerPayloadSize)
	binary.LittleEndian.PutUint32(header[0:4], segmentMagic)
	binary.LittleEndian.PutUint64(header[4:12], segmentID)
	binary.LittleEndian.PutUint64(header[12:20], serverID)
	binary.LittleEndian.PutUint32(header[20:24], formatVersion)

	if _, ok := s.append(EntryTypeSegmentHeader, header); !ok {
		panic(fmt.Sprintf("segment capacity %d too small for header", capacity))
	}
	return s
}

// ID returns the segment id.
func (s *Segment) ID() uint64 { return s.id }

// Closed reports whether Close has been called.
func (s *Segment) Closed() bool { return s.closed }

// Bytes returns the written portion of the segment buffer.
func (s *Segment) Bytes() []byte { return s.buf[:s.head] }

// Append writes a framed entry and returns a stable reference to its
// payload. The boolean is false when the segment has insufficient free
// capacity (room for the footer is always kept back) or is already closed;
// the caller must then rotate to a new segment.
func (s *Segment) Append(t EntryType, payload []byte) (Ref, bool) {
	if s.closed {
		return Ref{}, false
	}
	// Always leave room for the footer entry.
	need := frameOverhead + len(payload) + frameOverhead + footerPayloadSize
	if s.head+need > len(s.buf) {
		return Ref{}, false
	}
	return s.append(t, payload)
}

// append writes the frame without the footer reservation. Used internally
// for the header and footer entries themselves.
func (s *Segment) append(t EntryType, payload []byte) (Ref, bool) {
	if s.head+frameOverhead+len(payload) > len(s.buf) {
		return Ref{}, false
	}
	s.buf[s.head] = byte(t)
	binary.LittleEndian.PutUint32(s.buf[s.head+1:s.head+5], uint32(len(payload)))
	off := s.head + frameOverhead
	copy(s.buf[off:], payload)
	s.head = off + len(payload)
	return Ref{Segment: s, Offset: uint32(off), Length: uint32(len(payload))}, true
}

// Close appends the footer entry and seals the segment. No further appends
// are permitted afterwards. Closing twice is a no-op.
func (s *Segment) Close() {
	if s.closed {
		return
	}
	checksum := crc32.Checksum(s.buf[:s.head], crcTable)

	footer := make([]byte, footerPayloadSize)
	binary.LittleEndian.PutUint32(footer[0:4], checksum)
	binary.LittleEndian.PutUint32(footer[4:8], segmentMagic)

	if _, ok := s.append(EntryTypeSegmentFooter, footer); !ok {
		// Append always reserves footer room, so this cannot happen for
		// segments produced through the public API.
		panic("no room for segment footer")
	}
	s.closed = true
}

// --------------------------------------------------------------------------
// Entry Iteration (replay)
// --------------------------------------------------------------------------

// IterateEntries walks the framed entries of raw segment data in append
// order, invoking fn for every OBJECT and TOMBSTONE entry. The header entry
// is validated (magic, version) and the footer, when present, terminates
// iteration after its checksum is verified. A segment without a footer is
// accepted: the producing master may have crashed before closing it.
//
// Any framing violation is reported as an error wrapping ErrCorruptSegment.
// fn errors abort the iteration and are returned verbatim.
func IterateEntries(data []byte, fn func(t EntryType, payload []byte) error) error {
	pos := 0
	first := true
	for pos < len(data) {
		if pos+frameOverhead > len(data) {
			return fmt.Errorf("%w: truncated frame at offset %d", ErrCorruptSegment, pos)
		}
		t := EntryType(data[pos])
		length := binary.LittleEndian.Uint32(data[pos+1 : pos+5])
		payloadStart := pos + frameOverhead
		payloadEnd := payloadStart + int(length)
		if payloadEnd > len(data) {
			return fmt.Errorf("%w: entry at offset %d overruns segment", ErrCorruptSegment, pos)
		}
		payload := data[payloadStart:payloadEnd]

		switch {
		case first:
			if t != EntryTypeSegmentHeader {
				return fmt.Errorf("%w: first entry has type %s", ErrCorruptSegment, t)
			}
			if err := checkHeader(payload); err != nil {
				return err
			}
			first = false

		case t == EntryTypeSegmentFooter:
			if len(payload) != footerPayloadSize {
				return fmt.Errorf("%w: footer payload has length %d", ErrCorruptSegment, len(payload))
			}
			wantSum := binary.LittleEndian.Uint32(payload[0:4])
			if magic := binary.LittleEndian.Uint32(payload[4:8]); magic != segmentMagic {
				return fmt.Errorf("%w: bad footer magic %#x", ErrCorruptSegment, magic)
			}
			if gotSum := crc32.Checksum(data[:pos], crcTable); gotSum != wantSum {
				return fmt.Errorf("%w: checksum mismatch (want %#x, got %#x)", ErrCorruptSegment, wantSum, gotSum)
			}
			return nil

		case t == EntryTypeObject || t == EntryTypeTombstone:
			if err := fn(t, payload); err != nil {
				return err
			}

		default:
			return fmt.Errorf("%w: unknown entry type %d at offset %d", ErrCorruptSegment, uint8(t), pos)
		}
		pos = payloadEnd
	}
	return nil
}

func checkHeader(payload []byte) error {
	if len(payload) != headerPayloadSize {
		return fmt.Errorf("%w: header payload has length %d", ErrCorruptSegment, len(payload))
	}
	if magic := binary.LittleEndian.Uint32(payload[0:4]); magic != segmentMagic {
		return fmt.Errorf("%w: bad header magic %#x", ErrCorruptSegment, magic)
	}
	if v := binary.LittleEndian.Uint32(payload[20:24]); v != formatVersion {
		return fmt.Errorf("%w: unsupported segment format version %d", ErrCorruptSegment, v)
	}
	return nil
}
