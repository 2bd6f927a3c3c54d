package client

import (
	"context"

	"github.com/ValentinKolb/tabkv/lib/cluster"
	"github.com/ValentinKolb/tabkv/lib/tablet"
	"github.com/ValentinKolb/tabkv/rpc/common"
	"github.com/ValentinKolb/tabkv/rpc/serializer"
	"github.com/ValentinKolb/tabkv/rpc/transport"
)

// CoordinatorClient is a session to the cluster coordinator. It implements
// cluster.Coordinator.
type CoordinatorClient struct {
	baseClient
}

// NewCoordinatorClient creates a coordinator session on top of a connected
// transport.
func NewCoordinatorClient(t transport.IRPCClientTransport, s serializer.IRPCSerializer) *CoordinatorClient {
	return &CoordinatorClient{baseClient{transport: t, serializer: s}}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see cluster.Coordinator)
// --------------------------------------------------------------------------

func (c *CoordinatorClient) EnlistServer(_ context.Context, serverType cluster.ServerType, locator string) (uint64, error) {
	resp, err := c.call(common.NewEnlistServerRequest(serverType, locator))
	if err != nil {
		return 0, err
	}
	return resp.ServerID, nil
}

func (c *CoordinatorClient) TabletsRecovered(_ context.Context, tablets []tablet.Tablet) error {
	_, err := c.call(common.NewTabletsRecoveredRequest(tablets))
	return err
}
