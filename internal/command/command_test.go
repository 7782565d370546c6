package command

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/mqttwaker/internal/action"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		payload string
		want    Command
	}{
		{"on", Wake},
		{"ON", Wake},
		{"On ", Wake},
		{"  on\n", Wake},
		{"\ton\r\n", Wake},
		{"off", Lock},
		{"OFF", Lock},
		{" oFf ", Lock},
		{"lock", Unknown},
		{"wake", Unknown},
		{"o n", Unknown},
		{"onn", Unknown},
		{"", Unknown},
		{"   ", Unknown},
		{"{\"state\":\"on\"}", Unknown},
	}

	for _, tt := range tests {
		t.Run(tt.payload, func(t *testing.T) {
			if got := Resolve([]byte(tt.payload)); got != tt.want {
				t.Errorf("Resolve(%q) = %v, want %v", tt.payload, got, tt.want)
			}
		})
	}
}

func TestResolve_InvalidUTF8(t *testing.T) {
	if got := Resolve([]byte{0xff, 'o', 'n'}); got != Unknown {
		t.Errorf("Resolve(invalid utf8) = %v, want unknown", got)
	}
}

func TestCommand_String(t *testing.T) {
	if Wake.String() != "wake" || Lock.String() != "lock" || Unknown.String() != "unknown" {
		t.Errorf("String() = %q, %q, %q", Wake.String(), Lock.String(), Unknown.String())
	}
}

type countingHandler struct {
	mu      sync.Mutex
	calls   int
	outcome action.Outcome
}

func (h *countingHandler) Execute() action.Outcome {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls++
	return h.outcome
}

type fakeRecorder struct {
	records []Record
	err     error
}

func (r *fakeRecorder) RecordCommand(_ context.Context, rec Record) error {
	r.records = append(r.records, rec)
	return r.err
}

type fakeLogger struct {
	infos, warns int
}

func (l *fakeLogger) Info(string, ...any) { l.infos++ }
func (l *fakeLogger) Warn(string, ...any) { l.warns++ }

func TestDispatcher_RoutesCommands(t *testing.T) {
	tests := []struct {
		name      string
		payload   string
		wantWake  int
		wantLock  int
		wantCmd   Command
		wantState string
	}{
		{"wake", "ON ", 1, 0, Wake, "success"},
		{"lock", "off", 0, 1, Lock, "permission_required"},
		{"unknown", "lock", 0, 0, Unknown, "ignored"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wake := &countingHandler{outcome: action.Succeeded()}
			lock := &countingHandler{outcome: action.NeedsPermission()}
			rec := &fakeRecorder{}

			d := NewDispatcher(wake, lock)
			d.AddRecorder(rec)
			d.now = func() time.Time { return time.Unix(1700000000, 0) }

			d.OnMessage("home/cmd", []byte(tt.payload))

			if wake.calls != tt.wantWake {
				t.Errorf("wake calls = %d, want %d", wake.calls, tt.wantWake)
			}
			if lock.calls != tt.wantLock {
				t.Errorf("lock calls = %d, want %d", lock.calls, tt.wantLock)
			}
			if len(rec.records) != 1 {
				t.Fatalf("records = %d, want 1", len(rec.records))
			}
			got := rec.records[0]
			if got.Command != tt.wantCmd {
				t.Errorf("record command = %v, want %v", got.Command, tt.wantCmd)
			}
			if got.OutcomeName() != tt.wantState {
				t.Errorf("record outcome = %q, want %q", got.OutcomeName(), tt.wantState)
			}
			if got.Topic != "home/cmd" || got.Payload != tt.payload {
				t.Errorf("record = %+v, want topic and raw payload", got)
			}
			if !got.Received.Equal(time.Unix(1700000000, 0)) {
				t.Errorf("record received = %v", got.Received)
			}
		})
	}
}

func TestDispatcher_RecorderErrorIsLoggedOnly(t *testing.T) {
	wake := &countingHandler{outcome: action.Succeeded()}
	logger := &fakeLogger{}

	d := NewDispatcher(wake, &countingHandler{})
	d.SetLogger(logger)
	d.AddRecorder(&fakeRecorder{err: errors.New("disk full")})
	second := &fakeRecorder{}
	d.AddRecorder(second)

	d.OnMessage("t", []byte("on"))

	if wake.calls != 1 {
		t.Errorf("wake calls = %d, want 1", wake.calls)
	}
	if logger.warns != 1 {
		t.Errorf("warns = %d, want 1", logger.warns)
	}
	if len(second.records) != 1 {
		t.Error("second recorder skipped after first failed")
	}
}

func TestDispatcher_EachMessageHandledIndependently(t *testing.T) {
	wake := &countingHandler{outcome: action.Succeeded()}
	d := NewDispatcher(wake, &countingHandler{})

	// QoS 0 may deliver duplicates; each is handled on its own.
	for range 3 {
		d.OnMessage("t", []byte("on"))
	}

	if wake.calls != 3 {
		t.Errorf("wake calls = %d, want 3", wake.calls)
	}
}
