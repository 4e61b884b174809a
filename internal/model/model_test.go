package model

import (
	"errors"
	"regexp"
	"testing"
)

// crockfordBase32 matches valid ULID strings (26 chars, Crockford Base32 alphabet).
var crockfordBase32 = regexp.MustCompile(`^[0123456789ABCDEFGHJKMNPQRSTVWXYZ]{26}$`)

func TestNewIDFormat(t *testing.T) {
	id := NewID()
	if !crockfordBase32.MatchString(id) {
		t.Errorf("NewID() = %q, does not match Crockford Base32 ULID format", id)
	}
}

func TestNewIDUniqueness(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := NewID()
		if seen[id] {
			t.Fatalf("NewID() produced duplicate: %s", id)
		}
		seen[id] = true
	}
}

func TestStatusConstants(t *testing.T) {
	statuses := []struct {
		constant string
		expected string
	}{
		{StatusPending, "pending"},
		{StatusRunning, "running"},
		{StatusCompleted, "completed"},
		{StatusFailed, "failed"},
	}
	for _, s := range statuses {
		if s.constant != s.expected {
			t.Errorf("status constant = %q, want %q", s.constant, s.expected)
		}
	}
}

func TestValidTransition(t *testing.T) {
	tests := []struct {
		from, to string
		want     bool
	}{
		{StatusPending, StatusRunning, true},
		{StatusPending, StatusFailed, true},
		{StatusRunning, StatusCompleted, true},
		{StatusRunning, StatusFailed, true},
		{StatusPending, StatusCompleted, false},
		{StatusCompleted, StatusRunning, false},
		{StatusFailed, StatusCompleted, false},
		{"bogus", StatusRunning, false},
	}
	for _, tt := range tests {
		if got := ValidTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("ValidTransition(%q, %q) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestNewJobCopiesRequest(t *testing.T) {
	req := Request{Path: "cat.jpg", Width: 100, Height: 0, Quality: 80}
	called := false
	j := NewJob(req, "imaging", func(error, []byte, *Info) { called = true })

	if j.ID == "" {
		t.Error("job ID is empty")
	}
	if j.ImagePath != "cat.jpg" || j.RequestedWidth != 100 || j.RequestedHeight != 0 || j.Quality != 80 {
		t.Errorf("job fields = %+v, want copy of %+v", j, req)
	}
	if j.Engine != "imaging" {
		t.Errorf("Engine = %q, want imaging", j.Engine)
	}
	if j.CreatedAt.IsZero() {
		t.Error("CreatedAt not set")
	}
	j.Handler(nil, nil, nil)
	if !called {
		t.Error("handler not stored")
	}
}

func TestJobOutcomeIsExclusive(t *testing.T) {
	j := NewJob(Request{Path: "a.png"}, "imaging", nil)

	j.Succeed([]byte("blob"), 10, 5, 0)
	if j.Failed() || j.Status() != StatusCompleted {
		t.Fatalf("after Succeed: failed=%v status=%q", j.Failed(), j.Status())
	}

	j.Fail("decode error")
	if !j.Failed() || j.Status() != StatusFailed {
		t.Fatalf("after Fail: failed=%v status=%q", j.Failed(), j.Status())
	}
	if j.Result != nil {
		t.Error("Fail must drop the partial result")
	}
}

func TestJobFailEmptyMessage(t *testing.T) {
	j := NewJob(Request{Path: "a.png"}, "imaging", nil)
	j.Fail("")
	if j.Error == "" {
		t.Error("Fail(\"\") must still leave an error message")
	}
}

func TestJobRelease(t *testing.T) {
	j := NewJob(Request{Path: "a.png"}, "imaging", func(error, []byte, *Info) {})
	j.Succeed([]byte("blob"), 1, 1, 0)
	j.Release()
	if j.Result != nil || j.Handler != nil || j.Error != "" {
		t.Errorf("Release left references: %+v", j)
	}
}

func TestValidationErrorUnwrap(t *testing.T) {
	err := &ValidationError{Field: "quality", Message: "must be between 0 and 100"}
	if !errors.Is(err, ErrInvalidArgument) {
		t.Error("ValidationError should unwrap to ErrInvalidArgument")
	}
	if err.Error() != "quality: must be between 0 and 100" {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestNewRecord(t *testing.T) {
	j := NewJob(Request{Path: "a.png", Width: 3, Height: 4, Quality: 50}, "bild", nil)
	r := NewRecord(j)
	if r.ID != j.ID || r.Status != StatusPending || r.Engine != "bild" {
		t.Errorf("NewRecord = %+v", r)
	}
	if r.RequestedWidth != 3 || r.RequestedHeight != 4 || r.Quality != 50 {
		t.Errorf("NewRecord dims = %+v", r)
	}
}

func TestJobInfo(t *testing.T) {
	j := NewJob(Request{Path: "a.png", Format: "webp"}, "imaging", nil)
	if j.RequestedFormat != "webp" {
		t.Errorf("RequestedFormat = %q, want webp", j.RequestedFormat)
	}
	j.Succeed([]byte("blob"), 100, 50, 80)
	j.Format = "webp"

	got := *j.Info()
	want := Info{Width: 100, Height: 50, Quality: 80, Format: "webp"}
	if got != want {
		t.Errorf("Info() = %+v, want %+v", got, want)
	}
}
