package serializer

import (
	"encoding/binary"
	"fmt"

	"github.com/ValentinKolb/tabkv/lib/cluster"
	"github.com/ValentinKolb/tabkv/lib/master"
	"github.com/ValentinKolb/tabkv/lib/tablet"
	"github.com/ValentinKolb/tabkv/rpc/common"
)

// NewBinarySerializer creates a new serializer using a custom binary format
// optimized for speed and efficiency
func NewBinarySerializer() IRPCSerializer {
	return &binarySerializerImpl{}
}

// binarySerializerImpl implements IRPCSerializer using a custom binary format
type binarySerializerImpl struct{}

// Bit flags to indicate which optional fields are present. The layout is
// msgType (u8), flags (u32), then the present fields in flag-bit order.
// All integers are little-endian.
const (
	hasTableID uint32 = 1 << iota
	hasObjectID
	hasVersion
	hasValue
	hasRules
	hasTablets
	hasBackups
	hasMasterID
	hasPartitionID
	hasSegmentID
	hasSegmentIDs
	hasServerType
	hasServerID
	hasLocator
	hasOk
	hasStatus
	hasErr
)

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (b binarySerializerImpl) Serialize(msg common.Message) ([]byte, error) {
	// msgType + flags are patched in at the end
	buf := make([]byte, 5, 64+len(msg.Value))
	var flags uint32

	if msg.TableID != 0 {
		flags |= hasTableID
		buf = binary.LittleEndian.AppendUint32(buf, msg.TableID)
	}
	if msg.ObjectID != 0 {
		flags |= hasObjectID
		buf = binary.LittleEndian.AppendUint64(buf, msg.ObjectID)
	}
	if msg.Version != 0 {
		flags |= hasVersion
		buf = binary.LittleEndian.AppendUint64(buf, msg.Version)
	}
	if msg.Value != nil {
		flags |= hasValue
		buf = appendBytes(buf, msg.Value)
	}
	if msg.Rules != nil {
		flags |= hasRules
		buf = binary.LittleEndian.AppendUint64(buf, msg.Rules.GivenVersion)
		buf = append(buf, boolByte(msg.Rules.DoesntExist), boolByte(msg.Rules.Exists),
			boolByte(msg.Rules.VersionLeGiven), boolByte(msg.Rules.VersionNeGiven))
	}
	if len(msg.Tablets) > 0 {
		flags |= hasTablets
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(msg.Tablets)))
		for _, t := range msg.Tablets {
			buf = binary.LittleEndian.AppendUint32(buf, t.TableID)
			buf = binary.LittleEndian.AppendUint64(buf, t.Start)
			buf = binary.LittleEndian.AppendUint64(buf, t.End)
			buf = append(buf, byte(t.State))
		}
	}
	if len(msg.Backups) > 0 {
		flags |= hasBackups
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(msg.Backups)))
		for _, e := range msg.Backups {
			buf = appendBytes(buf, []byte(e.Locator))
			buf = binary.LittleEndian.AppendUint64(buf, e.SegmentID)
		}
	}
	if msg.MasterID != 0 {
		flags |= hasMasterID
		buf = binary.LittleEndian.AppendUint64(buf, msg.MasterID)
	}
	if msg.PartitionID != 0 {
		flags |= hasPartitionID
		buf = binary.LittleEndian.AppendUint64(buf, msg.PartitionID)
	}
	if msg.SegmentID != 0 {
		flags |= hasSegmentID
		buf = binary.LittleEndian.AppendUint64(buf, msg.SegmentID)
	}
	if len(msg.SegmentIDs) > 0 {
		flags |= hasSegmentIDs
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(msg.SegmentIDs)))
		for _, id := range msg.SegmentIDs {
			buf = binary.LittleEndian.AppendUint64(buf, id)
		}
	}
	if msg.ServerType != 0 {
		flags |= hasServerType
		buf = append(buf, msg.ServerType)
	}
	if msg.ServerID != 0 {
		flags |= hasServerID
		buf = binary.LittleEndian.AppendUint64(buf, msg.ServerID)
	}
	if msg.Locator != "" {
		flags |= hasLocator
		buf = appendBytes(buf, []byte(msg.Locator))
	}
	if msg.Ok {
		flags |= hasOk
		buf = append(buf, 1)
	}
	if msg.Status != 0 {
		flags |= hasStatus
		buf = append(buf, msg.Status)
	}
	if msg.Err != "" {
		flags |= hasErr
		buf = appendBytes(buf, []byte(msg.Err))
	}

	buf[0] = byte(msg.MsgType)
	binary.LittleEndian.PutUint32(buf[1:5], flags)
	return buf, nil
}

func (b binarySerializerImpl) Deserialize(data []byte, msg *common.Message) error {
	if len(data) < 5 {
		return fmt.Errorf("data too short for message header")
	}
	*msg = common.Message{MsgType: common.MessageType(data[0])}
	flags := binary.LittleEndian.Uint32(data[1:5])
	r := reader{data: data, pos: 5}

	if flags&hasTableID != 0 {
		msg.TableID = r.u32()
	}
	if flags&hasObjectID != 0 {
		msg.ObjectID = r.u64()
	}
	if flags&hasVersion != 0 {
		msg.Version = r.u64()
	}
	if flags&hasValue != 0 {
		msg.Value = r.bytes()
	}
	if flags&hasRules != 0 {
		rules := &master.RejectRules{GivenVersion: r.u64()}
		rules.DoesntExist = r.u8() != 0
		rules.Exists = r.u8() != 0
		rules.VersionLeGiven = r.u8() != 0
		rules.VersionNeGiven = r.u8() != 0
		msg.Rules = rules
	}
	if flags&hasTablets != 0 {
		n := r.u32()
		msg.Tablets = make([]tablet.Tablet, 0, n)
		for i := uint32(0); i < n && r.err == nil; i++ {
			msg.Tablets = append(msg.Tablets, tablet.Tablet{
				TableID: r.u32(),
				Start:   r.u64(),
				End:     r.u64(),
				State:   tablet.State(r.u8()),
			})
		}
	}
	if flags&hasBackups != 0 {
		n := r.u32()
		msg.Backups = make([]cluster.BackupEntry, 0, n)
		for i := uint32(0); i < n && r.err == nil; i++ {
			msg.Backups = append(msg.Backups, cluster.BackupEntry{
				Locator:   string(r.bytes()),
				SegmentID: r.u64(),
			})
		}
	}
	if flags&hasMasterID != 0 {
		msg.MasterID = r.u64()
	}
	if flags&hasPartitionID != 0 {
		msg.PartitionID = r.u64()
	}
	if flags&hasSegmentID != 0 {
		msg.SegmentID = r.u64()
	}
	if flags&hasSegmentIDs != 0 {
		n := r.u32()
		msg.SegmentIDs = make([]uint64, 0, n)
		for i := uint32(0); i < n && r.err == nil; i++ {
			msg.SegmentIDs = append(msg.SegmentIDs, r.u64())
		}
	}
	if flags&hasServerType != 0 {
		msg.ServerType = r.u8()
	}
	if flags&hasServerID != 0 {
		msg.ServerID = r.u64()
	}
	if flags&hasLocator != 0 {
		msg.Locator = string(r.bytes())
	}
	if flags&hasOk != 0 {
		msg.Ok = r.u8() != 0
	}
	if flags&hasStatus != 0 {
		msg.Status = r.u8()
	}
	if flags&hasErr != 0 {
		msg.Err = string(r.bytes())
	}

	return r.err
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

// appendBytes appends a length-prefixed (u32) byte sequence
func appendBytes(buf, b []byte) []byte {
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(b)))
	return append(buf, b...)
}

// reader is a bounds-checked sequential decoder. After the first short
// read, err is set and all further reads return zero values.
type reader struct {
	data []byte
	pos  int
	err  error
}

func (r *reader) fail() {
	if r.err == nil {
		r.err = fmt.Errorf("data too short at offset %d", r.pos)
	}
}

func (r *reader) u8() byte {
	if r.err != nil || r.pos+1 > len(r.data) {
		r.fail()
		return 0
	}
	v := r.data[r.pos]
	r.pos++
	return v
}

func (r *reader) u32() uint32 {
	if r.err != nil || r.pos+4 > len(r.data) {
		r.fail()
		return 0
	}
	v := binary.LittleEndian.Uint32(r.data[r.pos : r.pos+4])
	r.pos += 4
	return v
}

func (r *reader) u64() uint64 {
	if r.err != nil || r.pos+8 > len(r.data) {
		r.fail()
		return 0
	}
	v := binary.LittleEndian.Uint64(r.data[r.pos : r.pos+8])
	r.pos += 8
	return v
}

func (r *reader) bytes() []byte {
	n := r.u32()
	if r.err != nil || r.pos+int(n) > len(r.data) {
		r.fail()
		return nil
	}
	out := make([]byte, n)
	copy(out, r.data[r.pos:r.pos+int(n)])
	r.pos += int(n)
	return out
}
