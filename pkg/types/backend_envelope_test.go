package types

import (
	"encoding/json"
	"testing"
)

func TestBackendEnvelopeFailed(t *testing.T) {
	tests := []struct {
		name string
		body string
		want bool
	}{
		{"numeric ok", `{"status":200,"message":"ok","result":[],"error":null}`, false},
		{"numeric failure", `{"status":500,"message":"boom","result":null,"error":"boom"}`, true},
		{"bool ok", `{"status":true,"result":[]}`, false},
		{"bool failure", `{"status":false,"result":null}`, true},
		{"string failure", `{"status":"error","message":"nope"}`, true},
		{"error object", `{"status":"success","error":{"detail":"x"}}`, true},
		{"empty error string", `{"status":"success","error":""}`, false},
	}

	for _, tt := range tests {
		var env BackendEnvelope[json.RawMessage]
		if err := json.Unmarshal([]byte(tt.body), &env); err != nil {
			t.Fatalf("%s: unmarshal: %v", tt.name, err)
		}
		if got := env.Failed(); got != tt.want {
			t.Fatalf("%s: expected failed=%v got %v", tt.name, tt.want, got)
		}
	}
}
