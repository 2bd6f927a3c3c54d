package server

import (
	"context"

	"github.com/ValentinKolb/tabkv/lib/master"
	"github.com/ValentinKolb/tabkv/rpc/common"
)

// NewMasterServerAdapter creates the adapter for the master wire surface.
func NewMasterServerAdapter() IRPCServerAdapter {
	return &masterAdapter{}
}

type masterAdapter struct{}

// --------------------------------------------------------------------------
// Interface Methods (docu see server.IRPCServerAdapter)
// --------------------------------------------------------------------------

func (a *masterAdapter) Handle(msg *common.Message, m *master.Master) *common.Message {
	ctx := context.Background()

	switch msg.MsgType {
	case common.MsgTCreate:
		objectID, version, err := m.Create(ctx, msg.TableID, msg.Value, msg.Rules)
		return common.NewCreateResponse(objectID, version, err)

	case common.MsgTRead:
		value, version, err := m.Read(ctx, msg.TableID, msg.ObjectID, msg.Rules)
		return common.NewReadResponse(value, version, err)

	case common.MsgTWrite:
		version, err := m.Write(ctx, msg.TableID, msg.ObjectID, msg.Value, msg.Rules)
		return common.NewWriteResponse(version, err)

	case common.MsgTRemove:
		version, err := m.Remove(ctx, msg.TableID, msg.ObjectID, msg.Rules)
		return common.NewRemoveResponse(version, err)

	case common.MsgTSetTablets:
		return common.NewSetTabletsResponse(m.SetTablets(msg.Tablets))

	case common.MsgTRecover:
		err := m.Recover(ctx, msg.MasterID, msg.PartitionID, msg.Tablets, msg.Backups)
		return common.NewRecoverResponse(err)

	case common.MsgTPing:
		return common.NewPingResponse(m.Ping(ctx))

	default:
		return common.NewErrorResponse("unsupported message type: " + msg.MsgType.String())
	}
}
