package client

import (
	"fmt"

	"github.com/ValentinKolb/tabkv/rpc/common"
	"github.com/ValentinKolb/tabkv/rpc/serializer"
	"github.com/ValentinKolb/tabkv/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("client")

// baseClient bundles the transport and serializer shared by all client
// types and implements the request/response round trip.
type baseClient struct {
	transport  transport.IRPCClientTransport
	serializer serializer.IRPCSerializer
}

// call serializes the request, sends it and deserializes the response.
// A typed master error carried by the response is returned as err; the
// response message is returned alongside so callers can still read fields
// like the current version that accompany reject errors.
func (c *baseClient) call(req *common.Message) (*common.Message, error) {
	data, err := c.serializer.Serialize(*req)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize request: %w", err)
	}

	respData, err := c.transport.Send(data)
	if err != nil {
		Logger.Warningf("request %s failed: %v", req.MsgType, err)
		return nil, fmt.Errorf("transport error: %w", err)
	}

	var resp common.Message
	if err := c.serializer.Deserialize(respData, &resp); err != nil {
		return nil, fmt.Errorf("failed to deserialize response: %w", err)
	}
	return &resp, resp.AsError()
}

// Close closes the underlying transport.
func (c *baseClient) Close() error {
	return c.transport.Close()
}
