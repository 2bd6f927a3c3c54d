package server

import (
	"github.com/ValentinKolb/tabkv/lib/master"
	"github.com/ValentinKolb/tabkv/rpc/common"
)

// IRPCServerAdapter maps wire messages onto operations of the hosted
// master. Implementations must be stateless and safe for concurrent use.
type IRPCServerAdapter interface {
	// Handle executes the request described by msg against the master and
	// returns the response message.
	Handle(msg *common.Message, m *master.Master) *common.Message
}
