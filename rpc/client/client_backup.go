package client

import (
	"context"

	"github.com/ValentinKolb/tabkv/lib/cluster"
	"github.com/ValentinKolb/tabkv/lib/tablet"
	"github.com/ValentinKolb/tabkv/rpc/common"
	"github.com/ValentinKolb/tabkv/rpc/serializer"
	"github.com/ValentinKolb/tabkv/rpc/transport"
	"github.com/ValentinKolb/tabkv/rpc/transport/tcp"
)

// BackupClient is a session to one backup node. It implements
// cluster.Backup; the contexts of the interface are honored by the
// transport's own timeout, not per call.
type BackupClient struct {
	baseClient
}

// NewBackupClient creates a backup session on top of a connected
// transport.
func NewBackupClient(t transport.IRPCClientTransport, s serializer.IRPCSerializer) *BackupClient {
	return &BackupClient{baseClient{transport: t, serializer: s}}
}

// NewBackupDialer returns a cluster.BackupDialer that opens a TCP + binary
// session per locator using the given client configuration.
func NewBackupDialer(config common.ClientConfig) cluster.BackupDialer {
	return func(locator string) (cluster.Backup, error) {
		conf := config
		conf.Endpoints = []string{locator}

		t := tcp.NewTCPClientTransport()
		if err := t.Connect(conf); err != nil {
			return nil, err
		}
		return NewBackupClient(t, serializer.NewBinarySerializer()), nil
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see cluster.Backup)
// --------------------------------------------------------------------------

func (c *BackupClient) StartReadingData(_ context.Context, masterID uint64, tablets []tablet.Tablet) ([]uint64, error) {
	resp, err := c.call(common.NewStartReadingDataRequest(masterID, tablets))
	if err != nil {
		return nil, err
	}
	return resp.SegmentIDs, nil
}

func (c *BackupClient) GetRecoveryData(_ context.Context, masterID uint64, segmentID uint64) ([]byte, error) {
	resp, err := c.call(common.NewGetRecoveryDataRequest(masterID, segmentID))
	if err != nil {
		return nil, err
	}
	return resp.Value, nil
}
