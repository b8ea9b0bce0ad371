package rpc

import "github.com/vmihailenco/msgpack/v5"

// incoming is one client->server request frame.
type incoming struct {
	ID     uint32          `msgpack:"id"`
	Method string          `msgpack:"method"`
	Params msgpack.RawMessage `msgpack:"params"`
}

// outgoing is either a response or a server-initiated notification,
// distinguished by Type exactly as the reference wire format tags it.
type outgoing struct {
	Type   string `msgpack:"type"`
	ID     uint32 `msgpack:"id,omitempty"`
	Result any    `msgpack:"result,omitempty"`
	Error  string `msgpack:"error,omitempty"`
	Method string `msgpack:"method,omitempty"`
	Params any    `msgpack:"params,omitempty"`
}

func okResponse(id uint32, result any) outgoing {
	return outgoing{Type: "res", ID: id, Result: result}
}

func errResponse(id uint32, msg string) outgoing {
	return outgoing{Type: "res", ID: id, Error: msg}
}

func notification(method string, params any) outgoing {
	return outgoing{Type: "ntf", Method: method, Params: params}
}
