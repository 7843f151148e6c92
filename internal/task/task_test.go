package task

import (
	"errors"
	"testing"
	"time"
)

func TestIntervalSeconds(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name        string
		label       string
		wantSeconds int
		wantErr     bool
	}{
		{name: "thirty_seconds", label: "30s", wantSeconds: 30},
		{name: "thirty_minutes", label: "30m", wantSeconds: 1800},
		{name: "one_hour", label: "1h", wantSeconds: 3600},
		{name: "one_day", label: "1d", wantSeconds: 86400},
		{name: "seven_days", label: "7d", wantSeconds: 604800},
		{name: "unknown_label", label: "2h", wantErr: true},
		{name: "empty_label", label: "", wantErr: true},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			seconds, err := IntervalSeconds(tc.label)
			if tc.wantErr {
				if !errors.Is(err, ErrInvalidInterval) {
					t.Fatalf("IntervalSeconds(%q) error = %v, want ErrInvalidInterval", tc.label, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("IntervalSeconds(%q) unexpected error: %v", tc.label, err)
			}
			if seconds != tc.wantSeconds {
				t.Fatalf("IntervalSeconds(%q) = %d, want %d", tc.label, seconds, tc.wantSeconds)
			}
		})
	}
}

func TestIntervalBuckets(t *testing.T) {
	t.Parallel()

	buckets := IntervalBuckets()
	want := []int{30, 1800, 3600, 86400, 604800}
	if len(buckets) != len(want) {
		t.Fatalf("IntervalBuckets() len = %d, want %d", len(buckets), len(want))
	}
	for i, bucket := range buckets {
		if bucket != want[i] {
			t.Fatalf("IntervalBuckets()[%d] = %d, want %d", i, bucket, want[i])
		}
	}
}

func TestTaskSubject(t *testing.T) {
	t.Parallel()

	influencer := Task{Kind: KindInfluencer, Username: "natgeo"}
	if got := influencer.Subject(); got != "natgeo" {
		t.Fatalf("influencer Subject() = %q, want natgeo", got)
	}

	post := Task{Kind: KindPost, PostCode: "DAbCdEfGh"}
	if got := post.Subject(); got != "DAbCdEfGh" {
		t.Fatalf("post Subject() = %q, want DAbCdEfGh", got)
	}
}

func TestTaskInterval(t *testing.T) {
	t.Parallel()

	tsk := Task{IntervalSeconds: 1800}
	if got := tsk.Interval(); got != 30*time.Minute {
		t.Fatalf("Interval() = %s, want 30m", got)
	}
}
