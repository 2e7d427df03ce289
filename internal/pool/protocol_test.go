package pool

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestBuildLoginRequest(t *testing.T) {
	frame, err := buildLoginRequest("wallet", "rig1")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(string(frame), "\n") {
		t.Error("frame must be newline terminated")
	}

	var req map[string]interface{}
	if err := json.Unmarshal(frame, &req); err != nil {
		t.Fatal(err)
	}
	if req["id"].(float64) != 1 || req["jsonrpc"] != "2.0" || req["method"] != "login" {
		t.Errorf("envelope: %v", req)
	}
	params := req["params"].(map[string]interface{})
	if params["pass"] != "rig1" {
		t.Errorf("pass = %v", params["pass"])
	}
	algo, ok := params["algo"].([]interface{})
	if !ok || len(algo) != 1 || algo[0] != "sha3x" {
		t.Errorf("algo must be an array: %v", params["algo"])
	}

	if _, err := buildLoginRequest("", "w"); err == nil {
		t.Error("empty wallet should fail")
	}
}

func TestBuildSubmitRequest(t *testing.T) {
	frame, err := buildSubmitRequest(105, "sess-1", "job-9", "cafedeadbeef1234", strings.Repeat("ab", 32))
	if err != nil {
		t.Fatal(err)
	}

	var req submitRequest
	if err := json.Unmarshal(frame, &req); err != nil {
		t.Fatal(err)
	}
	if req.ID != 105 || req.Method != "submit" || req.JSONRPC != "2.0" {
		t.Errorf("envelope: %+v", req)
	}
	if req.Params.ID != "sess-1" || req.Params.JobID != "job-9" {
		t.Errorf("params: %+v", req.Params)
	}
	if len(req.Params.Nonce) != 16 || len(req.Params.Result) != 64 {
		t.Errorf("nonce/result lengths: %d/%d", len(req.Params.Nonce), len(req.Params.Result))
	}

	if _, err := buildSubmitRequest(1, "w", "", "n", "r"); err == nil {
		t.Error("empty job id should fail")
	}
}

func TestSubmitterIDRanges(t *testing.T) {
	s, _, _ := newTestSession(t)
	sub := NewSubmitter(s)

	for i := 0; i < 300; i++ {
		id := sub.nextID(KindCPU)
		if id < 100 || id >= 200 {
			t.Fatalf("CPU id %d out of [100,200)", id)
		}
	}
	for i := 0; i < 300; i++ {
		id := sub.nextID(KindGPU)
		if id >= 100 {
			t.Fatalf("GPU id %d out of [0,100)", id)
		}
		if id == 1 {
			t.Fatal("GPU range must never hand out the login id")
		}
	}
}
