package plugin

import (
	"fmt"
	"io"
)

// Handler executes one plugin request. The returned value, if any, becomes
// the response data.
type Handler func(req *Request) (any, error)

// Serve is the plugin side of the protocol: it decodes one request from in,
// runs handle and writes the response to out. Handler failures are reported
// in the response, not as an error.
func Serve(in io.Reader, out io.Writer, handle Handler) error {
	var req Request
	if err := codec.NewDecoder(in).Decode(&req); err != nil {
		return writeResponse(out, &Response{Error: fmt.Sprintf("failed to decode request: %v", err)})
	}

	data, err := handle(&req)
	if err != nil {
		return writeResponse(out, &Response{Error: fmt.Sprintf("action %s failed: %v", req.Action, err)})
	}

	resp := &Response{Success: true}
	if data != nil {
		raw, err := codec.Marshal(data)
		if err != nil {
			return writeResponse(out, &Response{Error: fmt.Sprintf("failed to encode result: %v", err)})
		}
		resp.Data = raw
	}
	return writeResponse(out, resp)
}

func writeResponse(out io.Writer, resp *Response) error {
	return codec.NewEncoder(out).Encode(resp)
}

// DecodeConfig unmarshals a binding config into v. An empty config leaves v
// untouched.
func DecodeConfig(raw []byte, v any) error {
	if len(raw) == 0 {
		return nil
	}
	return codec.Unmarshal(raw, v)
}
