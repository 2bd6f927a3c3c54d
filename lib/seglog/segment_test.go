package seglog

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSegmentAppendAndIterate(t *testing.T) {
	s := NewSegment(7, 42, 4096)
	assert.Equal(t, uint64(42), s.ID())
	assert.False(t, s.Closed())

	obj := Object{TableID: 1, ObjectID: 2, Version: 3, Data: []byte("hello")}
	ref, ok := s.Append(EntryTypeObject, obj.Marshal())
	require.True(t, ok)
	assert.Equal(t, obj.Marshal(), ref.Bytes())

	tomb := Tombstone{TableID: 1, ObjectID: 2, SegmentID: 42, ObjectVersion: 3}
	_, ok = s.Append(EntryTypeTombstone, tomb.Marshal())
	require.True(t, ok)

	s.Close()
	assert.True(t, s.Closed())

	// No appends after close.
	_, ok = s.Append(EntryTypeObject, obj.Marshal())
	assert.False(t, ok)

	// Replay sees both entries in append order.
	var types []EntryType
	err := IterateEntries(s.Bytes(), func(et EntryType, payload []byte) error {
		types = append(types, et)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []EntryType{EntryTypeObject, EntryTypeTombstone}, types)
}

func TestSegmentAppendFullLeavesFooterRoom(t *testing.T) {
	s := NewSegment(1, 1, 128)

	// Fill until Append refuses.
	payload := make([]byte, 16)
	for {
		if _, ok := s.Append(EntryTypeObject, payload); !ok {
			break
		}
	}

	// Close must still fit its footer.
	s.Close()
	require.True(t, s.Closed())
	require.NoError(t, IterateEntries(s.Bytes(), func(EntryType, []byte) error { return nil }))
}

func TestIterateWithoutFooter(t *testing.T) {
	// A segment of a crashed master may never have been closed.
	s := NewSegment(1, 5, 1024)
	obj := Object{TableID: 0, ObjectID: 9, Version: 1, Data: []byte("x")}
	_, ok := s.Append(EntryTypeObject, obj.Marshal())
	require.True(t, ok)

	count := 0
	err := IterateEntries(s.Bytes(), func(EntryType, []byte) error {
		count++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestIterateCorruptSegments(t *testing.T) {
	valid := func() []byte {
		s := NewSegment(1, 1, 1024)
		obj := Object{TableID: 0, ObjectID: 1, Version: 1, Data: []byte("v")}
		s.Append(EntryTypeObject, obj.Marshal())
		s.Close()
		return append([]byte(nil), s.Bytes()...)
	}

	t.Run("BadHeaderMagic", func(t *testing.T) {
		data := valid()
		data[5] ^= 0xff // first header payload byte
		err := IterateEntries(data, func(EntryType, []byte) error { return nil })
		assert.True(t, errors.Is(err, ErrCorruptSegment))
	})

	t.Run("TruncatedFrame", func(t *testing.T) {
		data := valid()
		err := IterateEntries(data[:len(data)-3], func(EntryType, []byte) error { return nil })
		assert.True(t, errors.Is(err, ErrCorruptSegment))
	})

	t.Run("OverrunningLength", func(t *testing.T) {
		data := valid()
		// Inflate the length of the object entry.
		pos := frameOverhead + headerPayloadSize
		binary.LittleEndian.PutUint32(data[pos+1:pos+5], 1<<30)
		err := IterateEntries(data, func(EntryType, []byte) error { return nil })
		assert.True(t, errors.Is(err, ErrCorruptSegment))
	})

	t.Run("ChecksumMismatch", func(t *testing.T) {
		data := valid()
		// Flip a bit in the object payload without touching the framing.
		pos := frameOverhead + headerPayloadSize + frameOverhead
		data[pos] ^= 0x01
		err := IterateEntries(data, func(EntryType, []byte) error { return nil })
		assert.True(t, errors.Is(err, ErrCorruptSegment))
	})

	t.Run("UnknownEntryType", func(t *testing.T) {
		data := valid()
		pos := frameOverhead + headerPayloadSize
		data[pos] = 99
		err := IterateEntries(data, func(EntryType, []byte) error { return nil })
		assert.True(t, errors.Is(err, ErrCorruptSegment))
	})

	t.Run("MissingHeader", func(t *testing.T) {
		data := valid()
		// Strip the header entry; the first entry is then an object.
		err := IterateEntries(data[frameOverhead+headerPayloadSize:], func(EntryType, []byte) error { return nil })
		assert.True(t, errors.Is(err, ErrCorruptSegment))
	})
}

func TestObjectCodec(t *testing.T) {
	obj := Object{TableID: 3, ObjectID: 1 << 40, Version: 17, Data: []byte("payload")}
	parsed, err := ParseObject(obj.Marshal())
	require.NoError(t, err)
	assert.Equal(t, obj, parsed)

	_, err = ParseObject([]byte{1, 2, 3})
	assert.True(t, errors.Is(err, ErrCorruptSegment))
}

func TestTombstoneCodec(t *testing.T) {
	tomb := Tombstone{TableID: 3, ObjectID: 99, SegmentID: 12, ObjectVersion: 4}
	parsed, err := ParseTombstone(tomb.Marshal())
	require.NoError(t, err)
	assert.Equal(t, tomb, parsed)

	_, err = ParseTombstone(make([]byte, 27))
	assert.True(t, errors.Is(err, ErrCorruptSegment))
}
