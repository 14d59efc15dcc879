package plugin

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestExecutor_Execute(t *testing.T) {
	plugin := scriptPlugin(t, "hello", `echo '{"success":true,"data":{"message":"hello world"}}'
`)

	resp, err := NewExecutor(5*time.Second).Execute(context.Background(), plugin, &Request{Action: "greet", Gesture: "PINCH"})
	if err != nil {
		t.Fatalf("Execute() failed: %v", err)
	}
	if !resp.Success || resp.Error != "" {
		t.Errorf("response = %+v, want success", resp)
	}

	var data map[string]string
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		t.Fatalf("failed to unmarshal response data: %v", err)
	}
	if data["message"] != "hello world" {
		t.Errorf("message = %q, want hello world", data["message"])
	}
}

func TestExecutor_Execute_ReadsStdin(t *testing.T) {
	plugin := scriptPlugin(t, "echo", `INPUT=$(cat)
echo "{\"success\":true,\"data\":$INPUT}"
`)

	req := &Request{
		Action:  "echo",
		Gesture: "PINCH",
		Config:  json.RawMessage(`{"step":10}`),
	}
	resp, err := NewExecutor(5*time.Second).Execute(context.Background(), plugin, req)
	if err != nil {
		t.Fatalf("Execute() failed: %v", err)
	}

	var got Request
	if err := json.Unmarshal(resp.Data, &got); err != nil {
		t.Fatalf("failed to parse echoed request: %v", err)
	}
	if got.Action != "echo" || got.Gesture != "PINCH" || string(got.Config) != `{"step":10}` {
		t.Errorf("plugin received %+v", got)
	}
}

func TestExecutor_Failures(t *testing.T) {
	tests := []struct {
		name    string
		plugin  string
		script  string
		timeout time.Duration
		wantErr error
		wantMsg string
	}{
		{"timeout", "slow", "exec sleep 5\n", 100 * time.Millisecond, ErrTimeout, "slow"},
		{"non-zero exit", "bad", "echo broken >&2\nexit 3\n", time.Second, ErrExecution, "broken"},
		{"invalid json", "bad", "echo not-json\n", time.Second, ErrExecution, "not-json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plugin := scriptPlugin(t, tt.plugin, tt.script)

			start := time.Now()
			_, err := NewExecutor(tt.timeout).Execute(context.Background(), plugin, &Request{Action: "x"})
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Execute() error = %v, want %v", err, tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error %q does not mention %q", err, tt.wantMsg)
			}
			if time.Since(start) > 3*time.Second {
				t.Errorf("Execute() took %v", time.Since(start))
			}
		})
	}
}

func TestExecutor_ErrorResponse(t *testing.T) {
	plugin := scriptPlugin(t, "refuse", `echo '{"success":false,"error":"no such action"}'
`)

	resp, err := NewExecutor(time.Second).Execute(context.Background(), plugin, &Request{Action: "x"})
	if err != nil {
		t.Fatalf("Execute() failed: %v", err)
	}
	if resp.Success || resp.Error != "no such action" {
		t.Errorf("response = %+v", resp)
	}
}

func TestExecutor_ContextCancel(t *testing.T) {
	plugin := scriptPlugin(t, "slow", "exec sleep 5\n")

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	if _, err := NewExecutor(10*time.Second).Execute(ctx, plugin, &Request{}); err == nil {
		t.Fatal("Execute() should fail when the context is cancelled")
	}
	if time.Since(start) > 3*time.Second {
		t.Errorf("cancel took %v", time.Since(start))
	}
}

func TestNewExecutor(t *testing.T) {
	if got := NewExecutor(0).Timeout(); got != DefaultTimeout {
		t.Errorf("NewExecutor(0).Timeout() = %v, want %v", got, DefaultTimeout)
	}
	if got := NewExecutor(3 * time.Second).Timeout(); got != 3*time.Second {
		t.Errorf("Timeout() = %v, want 3s", got)
	}
}
