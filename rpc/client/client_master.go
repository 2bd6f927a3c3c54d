package client

import (
	"github.com/ValentinKolb/tabkv/lib/cluster"
	"github.com/ValentinKolb/tabkv/lib/master"
	"github.com/ValentinKolb/tabkv/lib/tablet"
	"github.com/ValentinKolb/tabkv/rpc/common"
	"github.com/ValentinKolb/tabkv/rpc/serializer"
	"github.com/ValentinKolb/tabkv/rpc/transport"
)

// MasterClient talks to one tabkv master over an established transport.
type MasterClient struct {
	baseClient
}

// NewMasterClient creates a client on top of a connected transport.
func NewMasterClient(t transport.IRPCClientTransport, s serializer.IRPCSerializer) *MasterClient {
	return &MasterClient{baseClient{transport: t, serializer: s}}
}

// Create allocates a new object in the table and returns its id and
// version.
func (c *MasterClient) Create(tableID uint32, value []byte, rules *master.RejectRules) (objectID, version uint64, err error) {
	resp, err := c.call(common.NewCreateRequest(tableID, value, rules))
	if err != nil {
		return 0, master.VersionOf(err), err
	}
	return resp.ObjectID, resp.Version, nil
}

// Read returns the value and current version of an object. On a reject
// error the returned version is the object's current version.
func (c *MasterClient) Read(tableID uint32, objectID uint64, rules *master.RejectRules) (value []byte, version uint64, err error) {
	resp, err := c.call(common.NewReadRequest(tableID, objectID, rules))
	if err != nil {
		return nil, master.VersionOf(err), err
	}
	return resp.Value, resp.Version, nil
}

// Write stores the value under the given key and returns the new version.
func (c *MasterClient) Write(tableID uint32, objectID uint64, value []byte, rules *master.RejectRules) (version uint64, err error) {
	resp, err := c.call(common.NewWriteRequest(tableID, objectID, value, rules))
	if err != nil {
		return master.VersionOf(err), err
	}
	return resp.Version, nil
}

// Remove deletes an object and returns the version it had. Removing an
// absent object returns master.VersionNonexistent without error.
func (c *MasterClient) Remove(tableID uint32, objectID uint64, rules *master.RejectRules) (version uint64, err error) {
	resp, err := c.call(common.NewRemoveRequest(tableID, objectID, rules))
	if err != nil {
		return master.VersionOf(err), err
	}
	return resp.Version, nil
}

// SetTablets replaces the master's owned tablet set.
func (c *MasterClient) SetTablets(tablets []tablet.Tablet) error {
	_, err := c.call(common.NewSetTabletsRequest(tablets))
	return err
}

// Recover instructs the master to recover a partition of a failed master's
// tablets from the given backups.
func (c *MasterClient) Recover(masterID, partitionID uint64, tablets []tablet.Tablet, backups []cluster.BackupEntry) error {
	_, err := c.call(common.NewRecoverRequest(masterID, partitionID, tablets, backups))
	return err
}

// Ping probes the master for liveness.
func (c *MasterClient) Ping() error {
	_, err := c.call(common.NewPingRequest())
	return err
}
