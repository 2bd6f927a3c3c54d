package common

import (
	"encoding/json"
	"fmt"

	"github.com/ValentinKolb/tabkv/lib/cluster"
	"github.com/ValentinKolb/tabkv/lib/master"
	"github.com/ValentinKolb/tabkv/lib/tablet"
)

// --------------------------------------------------------------------------
// Message Structure
// --------------------------------------------------------------------------

// Message represents a single message used for both requests and responses.
// Which fields are used depends on the type of message.
type Message struct {
	// Type of message
	MsgType MessageType `json:"msg_type"`

	// Object addressing and payload
	TableID  uint32              `json:"table_id,omitempty"`
	ObjectID uint64              `json:"object_id,omitempty"`
	Version  uint64              `json:"version,omitempty"`
	Value    []byte              `json:"value,omitempty"`
	Rules    *master.RejectRules `json:"rules,omitempty"`

	// Tablet and recovery fields
	Tablets     []tablet.Tablet       `json:"tablets,omitempty"`
	Backups     []cluster.BackupEntry `json:"backups,omitempty"`
	MasterID    uint64                `json:"master_id,omitempty"`
	PartitionID uint64                `json:"partition_id,omitempty"`
	SegmentID   uint64                `json:"segment_id,omitempty"`
	SegmentIDs  []uint64              `json:"segment_ids,omitempty"`

	// Membership fields
	ServerType uint8  `json:"server_type,omitempty"`
	ServerID   uint64 `json:"server_id,omitempty"`
	Locator    string `json:"locator,omitempty"`

	// Response only fields
	Ok     bool   `json:"ok,omitempty"`
	Status uint8  `json:"status,omitempty"` // master.Status of a failed operation
	Err    string `json:"err,omitempty"`    // Empty if no error
}

// --------------------------------------------------------------------------
// Error Mapping
// --------------------------------------------------------------------------

// SetError records a failed operation on a response message. master.Error
// values keep their status code and current-version payload; everything
// else maps to StatusInternal.
func (m *Message) SetError(err error) {
	if err == nil {
		return
	}
	m.Status = uint8(master.StatusOf(err))
	m.Version = master.VersionOf(err)
	m.Err = err.Error()
}

// AsError reconstructs the typed error carried by a response message, or
// nil for successful responses.
func (m *Message) AsError() error {
	if m.Status == uint8(master.StatusOK) && m.Err == "" {
		return nil
	}
	status := master.Status(m.Status)
	if status == master.StatusOK {
		status = master.StatusInternal
	}
	return &master.Error{Status: status, Version: m.Version, Msg: m.Err}
}

// --------------------------------------------------------------------------
// Message Factory Functions
// --------------------------------------------------------------------------

// NewCreateRequest creates a new Create request
func NewCreateRequest(tableID uint32, value []byte, rules *master.RejectRules) *Message {
	return &Message{MsgType: MsgTCreate, TableID: tableID, Value: value, Rules: rules}
}

// NewCreateResponse creates a new Create response
func NewCreateResponse(objectID, version uint64, err error) *Message {
	msg := &Message{MsgType: MsgTCreate, ObjectID: objectID, Version: version}
	msg.SetError(err)
	return msg
}

// NewReadRequest creates a new Read request
func NewReadRequest(tableID uint32, objectID uint64, rules *master.RejectRules) *Message {
	return &Message{MsgType: MsgTRead, TableID: tableID, ObjectID: objectID, Rules: rules}
}

// NewReadResponse creates a new Read response
func NewReadResponse(value []byte, version uint64, err error) *Message {
	msg := &Message{MsgType: MsgTRead, Value: value, Version: version}
	msg.SetError(err)
	return msg
}

// NewWriteRequest creates a new Write request
func NewWriteRequest(tableID uint32, objectID uint64, value []byte, rules *master.RejectRules) *Message {
	return &Message{MsgType: MsgTWrite, TableID: tableID, ObjectID: objectID, Value: value, Rules: rules}
}

// NewWriteResponse creates a new Write response
func NewWriteResponse(version uint64, err error) *Message {
	msg := &Message{MsgType: MsgTWrite, Version: version}
	msg.SetError(err)
	return msg
}

// NewRemoveRequest creates a new Remove request
func NewRemoveRequest(tableID uint32, objectID uint64, rules *master.RejectRules) *Message {
	return &Message{MsgType: MsgTRemove, TableID: tableID, ObjectID: objectID, Rules: rules}
}

// NewRemoveResponse creates a new Remove response
func NewRemoveResponse(version uint64, err error) *Message {
	msg := &Message{MsgType: MsgTRemove, Version: version}
	msg.SetError(err)
	return msg
}

// NewSetTabletsRequest creates a new SetTablets request
func NewSetTabletsRequest(tablets []tablet.Tablet) *Message {
	return &Message{MsgType: MsgTSetTablets, Tablets: tablets}
}

// NewSetTabletsResponse creates a new SetTablets response
func NewSetTabletsResponse(err error) *Message {
	msg := &Message{MsgType: MsgTSetTablets}
	msg.SetError(err)
	return msg
}

// NewRecoverRequest creates a new Recover request
func NewRecoverRequest(masterID, partitionID uint64, tablets []tablet.Tablet, backups []cluster.BackupEntry) *Message {
	return &Message{MsgType: MsgTRecover, MasterID: masterID, PartitionID: partitionID, Tablets: tablets, Backups: backups}
}

// NewRecoverResponse creates a new Recover response
func NewRecoverResponse(err error) *Message {
	msg := &Message{MsgType: MsgTRecover}
	msg.SetError(err)
	return msg
}

// NewPingRequest creates a new Ping request
func NewPingRequest() *Message {
	return &Message{MsgType: MsgTPing}
}

// NewPingResponse creates a new Ping response
func NewPingResponse(err error) *Message {
	msg := &Message{MsgType: MsgTPing, Ok: err == nil}
	msg.SetError(err)
	return msg
}

// NewStartReadingDataRequest creates a new StartReadingData request
func NewStartReadingDataRequest(masterID uint64, tablets []tablet.Tablet) *Message {
	return &Message{MsgType: MsgTStartReadingData, MasterID: masterID, Tablets: tablets}
}

// NewStartReadingDataResponse creates a new StartReadingData response
func NewStartReadingDataResponse(segmentIDs []uint64, err error) *Message {
	msg := &Message{MsgType: MsgTStartReadingData, SegmentIDs: segmentIDs}
	msg.SetError(err)
	return msg
}

// NewGetRecoveryDataRequest creates a new GetRecoveryData request
func NewGetRecoveryDataRequest(masterID, segmentID uint64) *Message {
	return &Message{MsgType: MsgTGetRecoveryData, MasterID: masterID, SegmentID: segmentID}
}

// NewGetRecoveryDataResponse creates a new GetRecoveryData response
func NewGetRecoveryDataResponse(data []byte, err error) *Message {
	msg := &Message{MsgType: MsgTGetRecoveryData, Value: data}
	msg.SetError(err)
	return msg
}

// NewEnlistServerRequest creates a new EnlistServer request
func NewEnlistServerRequest(serverType cluster.ServerType, locator string) *Message {
	return &Message{MsgType: MsgTEnlistServer, ServerType: uint8(serverType), Locator: locator}
}

// NewEnlistServerResponse creates a new EnlistServer response
func NewEnlistServerResponse(serverID uint64, err error) *Message {
	msg := &Message{MsgType: MsgTEnlistServer, ServerID: serverID}
	msg.SetError(err)
	return msg
}

// NewTabletsRecoveredRequest creates a new TabletsRecovered request
func NewTabletsRecoveredRequest(tablets []tablet.Tablet) *Message {
	return &Message{MsgType: MsgTTabletsRecovered, Tablets: tablets}
}

// NewTabletsRecoveredResponse creates a new TabletsRecovered response
func NewTabletsRecoveredResponse(err error) *Message {
	msg := &Message{MsgType: MsgTTabletsRecovered}
	msg.SetError(err)
	return msg
}

// NewErrorResponse creates a new Error response
func NewErrorResponse(err string) *Message {
	return &Message{MsgType: MsgTError, Status: uint8(master.StatusInternal), Err: err}
}

// --------------------------------------------------------------------------
// Message Type Definition
// --------------------------------------------------------------------------

// MessageType defines the type of message used in RPC communication.
type MessageType uint8

// String returns the string representation of a MessageType.
func (t MessageType) String() string {
	switch t {
	case MsgTSuccess:
		return "success"
	case MsgTError:
		return "error"
	case MsgTCreate:
		return "create"
	case MsgTRead:
		return "read"
	case MsgTWrite:
		return "write"
	case MsgTRemove:
		return "remove"
	case MsgTSetTablets:
		return "setTablets"
	case MsgTRecover:
		return "recover"
	case MsgTPing:
		return "ping"
	case MsgTStartReadingData:
		return "startReadingData"
	case MsgTGetRecoveryData:
		return "getRecoveryData"
	case MsgTEnlistServer:
		return "enlistServer"
	case MsgTTabletsRecovered:
		return "tabletsRecovered"
	default:
		return "unknown"
	}
}

// MarshalJSON implements the json.Marshaller interface for MessageType.
// This allows MessageType to be serialized as a string in JSON.
func (t MessageType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface for MessageType.
func (t *MessageType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	switch s {
	case "success":
		*t = MsgTSuccess
	case "error":
		*t = MsgTError
	case "create":
		*t = MsgTCreate
	case "read":
		*t = MsgTRead
	case "write":
		*t = MsgTWrite
	case "remove":
		*t = MsgTRemove
	case "setTablets":
		*t = MsgTSetTablets
	case "recover":
		*t = MsgTRecover
	case "ping":
		*t = MsgTPing
	case "startReadingData":
		*t = MsgTStartReadingData
	case "getRecoveryData":
		*t = MsgTGetRecoveryData
	case "enlistServer":
		*t = MsgTEnlistServer
	case "tabletsRecovered":
		*t = MsgTTabletsRecovered
	default:
		return fmt.Errorf("unknown message type: %s", s)
	}
	return nil
}

// --------------------------------------------------------------------------
// Message Type Constants
// --------------------------------------------------------------------------

const (
	// General message types

	MsgTUnknown MessageType = iota
	MsgTSuccess             // Indicates a successful operation
	MsgTError               // Indicates an error occurred

	// Master operations (client-facing)

	MsgTCreate     // Create a new object in a table
	MsgTRead       // Read an object
	MsgTWrite      // Write an object at a specific id
	MsgTRemove     // Remove an object
	MsgTSetTablets // Replace the owned tablet set
	MsgTRecover    // Recover a partition of a failed master
	MsgTPing       // Liveness probe

	// Backup operations (master-facing)

	MsgTStartReadingData // Begin producing recovery data
	MsgTGetRecoveryData  // Fetch one recovered segment

	// Coordinator operations

	MsgTEnlistServer     // Register a server
	MsgTTabletsRecovered // Hand back recovered tablets
)
