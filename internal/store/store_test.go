package store

import (
	"context"
	"reflect"
	"testing"
)

func TestNormalizeTags(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{"mixed case and whitespace", []string{" Beach ", "SUNSET", "beach"}, []string{"beach", "sunset"}},
		{"empties dropped", []string{"", "  ", "ok"}, []string{"ok"}},
		{"nil input", nil, []string{}},
		{"already normal", []string{"a", "b"}, []string{"a", "b"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeTags(tt.in)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("NormalizeTags(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestMergeTagsPreservesManual(t *testing.T) {
	manual := []string{"holiday", "family"}
	derived := []string{"video", "family", "landscape"}

	merged := MergeTags(manual, derived)

	for _, m := range NormalizeTags(manual) {
		found := false
		for _, tag := range merged {
			if tag == m {
				found = true
			}
		}
		if !found {
			t.Errorf("manual tag %q missing from merged set %v", m, merged)
		}
	}
}

func TestClampProgress(t *testing.T) {
	tests := []struct {
		seconds, duration, want float64
	}{
		{45, 120, 45},
		{-5, 120, 0},
		{150, 120, 120},
		{45, 0, 45}, // unknown duration, only lower bound applies
	}

	for _, tt := range tests {
		if got := ClampProgress(tt.seconds, tt.duration); got != tt.want {
			t.Errorf("ClampProgress(%g, %g) = %g, want %g", tt.seconds, tt.duration, got, tt.want)
		}
	}
}

func TestClampVolume(t *testing.T) {
	if got := ClampVolume(1.5); got != 1 {
		t.Errorf("ClampVolume(1.5) = %g, want 1", got)
	}
	if got := ClampVolume(-0.1); got != 0 {
		t.Errorf("ClampVolume(-0.1) = %g, want 0", got)
	}
	if got := ClampVolume(0.4); got != 0.4 {
		t.Errorf("ClampVolume(0.4) = %g, want 0.4", got)
	}
}

func TestResumePoint(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	defer m.Close()

	// No stored progress: not resumable.
	if _, ok := ResumePoint(ctx, m, "v1", 120); ok {
		t.Error("expected no resume point for unwatched item")
	}

	// Mid-clip progress: resumable.
	if _, err := m.SetProgress(ctx, "v1", 45, 120); err != nil {
		t.Fatalf("SetProgress failed: %v", err)
	}
	p, ok := ResumePoint(ctx, m, "v1", 120)
	if !ok || p != 45 {
		t.Errorf("ResumePoint = %g, %v; want 45, true", p, ok)
	}

	// Within epsilon of the end: not trusted.
	if _, err := m.SetProgress(ctx, "v1", 119.5, 120); err != nil {
		t.Fatalf("SetProgress failed: %v", err)
	}
	if _, ok := ResumePoint(ctx, m, "v1", 120); ok {
		t.Error("expected no resume point within epsilon of the end")
	}
}
