package cluster

import (
	"context"

	"github.com/ValentinKolb/tabkv/lib/tablet"
)

// --------------------------------------------------------------------------
// Server Types
// --------------------------------------------------------------------------

// ServerType identifies the role a server enlists as.
type ServerType uint8

const (
	ServerTypeMaster ServerType = iota
	ServerTypeBackup
)

func (t ServerType) String() string {
	switch t {
	case ServerTypeMaster:
		return "MASTER"
	case ServerTypeBackup:
		return "BACKUP"
	default:
		return "UNKNOWN"
	}
}

// BackupEntry names one backup holding one segment of a failed master's
// log. A segment replicated to several backups appears once per replica.
type BackupEntry struct {
	Locator   string `json:"locator"`
	SegmentID uint64 `json:"segment_id"`
}

// --------------------------------------------------------------------------
// Collaborator Interfaces
// --------------------------------------------------------------------------

// Coordinator is the cluster-wide authority for membership and
// tablet-to-master assignment.
type Coordinator interface {
	// EnlistServer registers this server under the given locator and
	// returns the server id assigned by the coordinator.
	EnlistServer(ctx context.Context, serverType ServerType, locator string) (uint64, error)

	// TabletsRecovered hands authoritative responsibility for the tablets
	// back to the coordinator after a successful recovery.
	TabletsRecovered(ctx context.Context, tablets []tablet.Tablet) error
}

// Backup is one backup node serving recovery data.
type Backup interface {
	// StartReadingData tells the backup to begin producing recovery data
	// for the failed master. It returns the ids of the segments this
	// backup is willing to serve.
	StartReadingData(ctx context.Context, masterID uint64, tablets []tablet.Tablet) ([]uint64, error)

	// GetRecoveryData returns the raw bytes of one recovered segment.
	GetRecoveryData(ctx context.Context, masterID uint64, segmentID uint64) ([]byte, error)

	// Close releases the backup session.
	Close() error
}

// BackupDialer opens a session to the backup at the given locator.
type BackupDialer func(locator string) (Backup, error)
