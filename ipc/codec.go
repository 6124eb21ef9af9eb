package ipc

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/pithecene-io/ferry/types"
)

// EncodeRequest serializes a request payload (without the length prefix).
func EncodeRequest(req *types.Request) ([]byte, error) {
	if req == nil {
		return nil, fmt.Errorf("encode request: nil request")
	}
	if !req.Func.Valid() {
		return nil, fmt.Errorf("encode request: unknown function code %v", req.Func)
	}
	return msgpack.Marshal(req)
}

// DecodeRequest decodes a request payload. Used by engine-side code and tests.
func DecodeRequest(payload []byte) (*types.Request, error) {
	var req types.Request
	if err := msgpack.Unmarshal(payload, &req); err != nil {
		return nil, &FrameError{
			Kind: FrameErrorDecode,
			Msg:  "failed to decode request",
			Err:  err,
		}
	}
	if !req.Func.Valid() {
		return nil, &FrameError{
			Kind: FrameErrorUnion,
			Msg:  fmt.Sprintf("unknown function code %v", req.Func),
		}
	}
	return &req, nil
}

// EncodeResponse serializes a response payload (without the length prefix).
func EncodeResponse(resp *types.Response) ([]byte, error) {
	if resp == nil {
		return nil, fmt.Errorf("encode response: nil response")
	}
	return msgpack.Marshal(resp)
}

// DecodeResponse decodes a response payload and checks it is a well-formed union.
//
// Empty collections are omitted on the wire, so a missing payload is valid
// (it decodes as the empty result). A payload foreign to the function code,
// or more than one payload, is a FrameErrorUnion.
func DecodeResponse(payload []byte) (*types.Response, error) {
	var resp types.Response
	if err := msgpack.Unmarshal(payload, &resp); err != nil {
		return nil, &FrameError{
			Kind: FrameErrorDecode,
			Msg:  "failed to decode response",
			Err:  err,
		}
	}
	if err := validateUnion(&resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// DecodePushMessage decodes a push-channel frame into its message.
func DecodePushMessage(payload []byte) (*types.WxMsg, error) {
	resp, err := DecodeResponse(payload)
	if err != nil {
		return nil, err
	}
	if resp.Msg == nil {
		return nil, &FrameError{
			Kind: FrameErrorUnion,
			Msg:  fmt.Sprintf("push frame %v carries no message", resp.Func),
		}
	}
	return resp.Msg, nil
}

func validateUnion(resp *types.Response) error {
	if !resp.Func.Valid() {
		return &FrameError{
			Kind: FrameErrorUnion,
			Msg:  fmt.Sprintf("unknown function code %v", resp.Func),
		}
	}

	populated := resp.Populated()
	if len(populated) == 0 {
		return nil
	}
	if len(populated) > 1 {
		return &FrameError{
			Kind: FrameErrorUnion,
			Msg:  fmt.Sprintf("%v response carries %d payloads %v", resp.Func, len(populated), populated),
		}
	}

	got := populated[0]
	if got == types.PayloadMessage && resp.Func == types.FuncPushMessage {
		return nil
	}
	want, _ := types.PayloadFor(resp.Func)
	if got != want {
		return &FrameError{
			Kind: FrameErrorUnion,
			Msg:  fmt.Sprintf("%v response carries %v payload, want %v", resp.Func, got, want),
		}
	}
	return nil
}
