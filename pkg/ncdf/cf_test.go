package ncdf

import (
	"testing"
	"time"
)

func TestParseTimeUnits(t *testing.T) {
	tests := []struct {
		name     string
		units    string
		wantBase time.Time
		wantStep time.Duration
		wantErr  bool
	}{
		{
			name:     "days since date",
			units:    "days since 1950-01-01",
			wantBase: time.Date(1950, 1, 1, 0, 0, 0, 0, time.UTC),
			wantStep: 24 * time.Hour,
		},
		{
			name:     "hours since datetime",
			units:    "hours since 1850-1-1 00:00:00",
			wantBase: time.Date(1850, 1, 1, 0, 0, 0, 0, time.UTC),
			wantStep: time.Hour,
		},
		{
			name:     "seconds with T separator",
			units:    "seconds since 2000-01-01T12:30:00",
			wantBase: time.Date(2000, 1, 1, 12, 30, 0, 0, time.UTC),
			wantStep: time.Second,
		},
		{
			name:    "unsupported units",
			units:   "months since 1950-01-01",
			wantErr: true,
		},
		{
			name:    "garbage",
			units:   "K",
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base, step, err := ParseTimeUnits(tt.units)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected an error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !base.Equal(tt.wantBase) {
				t.Errorf("base = %v, want %v", base, tt.wantBase)
			}
			if step != tt.wantStep {
				t.Errorf("step = %v, want %v", step, tt.wantStep)
			}
		})
	}
}

func TestDecodeTime_FarFromBase(t *testing.T) {
	base := time.Date(1850, 1, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		want time.Time
	}{
		{"within a duration", time.Date(2000, 7, 1, 12, 0, 0, 0, time.UTC)},
		{"past 292 years", time.Date(2200, 6, 15, 0, 0, 0, 0, time.UTC)},
		{"deep projection range", time.Date(2300, 1, 1, 6, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := EncodeTime(base, 24*time.Hour, tt.want)
			if got := DecodeTime(base, 24*time.Hour, v); !got.Equal(tt.want) {
				t.Errorf("DecodeTime(base, day, %v) = %v, want %v", v, got, tt.want)
			}
		})
	}
}

func TestDecodeTime_WholeDays(t *testing.T) {
	base := time.Date(1850, 1, 1, 0, 0, 0, 0, time.UTC)
	want := time.Date(2200, 6, 15, 0, 0, 0, 0, time.UTC)
	days := 0
	for cur := base; cur.Before(want); cur = cur.AddDate(0, 0, 1) {
		days++
	}
	if got := DecodeTime(base, 24*time.Hour, float64(days)); !got.Equal(want) {
		t.Errorf("DecodeTime(base, day, %d) = %v, want %v", days, got, want)
	}
}

func TestCmorExperiment(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"historical", "historical"},
		{"historical, rcp85", "historical+rcp85"},
		{"historical,rcp45", "historical+rcp45"},
	}
	for _, tt := range tests {
		if got := cmorExperiment(tt.in); got != tt.want {
			t.Errorf("cmorExperiment(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
