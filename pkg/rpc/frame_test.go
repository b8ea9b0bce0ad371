package rpc

import (
	"testing"

	"github.com/vmihailenco/msgpack/v5"
)

func TestOkResponseRoundTripsThroughMsgpack(t *testing.T) {
	out := okResponse(7, map[string]int{"a": 1})
	b, err := msgpack.Marshal(out)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var got outgoing
	if err := msgpack.Unmarshal(b, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got.Type != "res" || got.ID != 7 || got.Error != "" {
		t.Fatalf("got %+v", got)
	}
}

func TestErrResponseCarriesMessageAndNoResult(t *testing.T) {
	out := errResponse(3, "boom")
	if out.Type != "res" || out.ID != 3 || out.Error != "boom" {
		t.Fatalf("got %+v", out)
	}
	if out.Result != nil {
		t.Fatalf("got Result %v, want nil", out.Result)
	}
}

func TestNotificationSetsTypeAndMethod(t *testing.T) {
	out := notification("downloadProgress", map[string]string{"asset": "x"})
	if out.Type != "ntf" || out.Method != "downloadProgress" {
		t.Fatalf("got %+v", out)
	}
}

func TestIncomingDecodesFromMsgpack(t *testing.T) {
	raw := incoming{ID: 1, Method: "appVersion"}
	b, err := msgpack.Marshal(raw)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var got incoming
	if err := msgpack.Unmarshal(b, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got.ID != 1 || got.Method != "appVersion" {
		t.Fatalf("got %+v", got)
	}
}
