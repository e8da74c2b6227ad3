package sqlite

import "testing"

func TestParseVersion(t *testing.T) {
	tests := []struct {
		name    string
		want    int
		wantErr bool
	}{
		{"001_job.up.sql", 1, false},
		{"002_job_indexes.up.sql", 2, false},
		{"120_x.up.sql", 120, false},
		{"job.up.sql", 0, true},
		{"abc_job.up.sql", 0, true},
		{"000_zero.up.sql", 0, true},
	}
	for _, tt := range tests {
		got, err := parseVersion(tt.name)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("parseVersion(%q) = %d, %v; want %d, err=%v", tt.name, got, err, tt.want, tt.wantErr)
		}
	}
}

func TestEmbeddedMigrations_Ordered(t *testing.T) {
	ms, err := embeddedMigrations()
	if err != nil {
		t.Fatalf("embeddedMigrations() error = %v", err)
	}
	if len(ms) < 2 {
		t.Fatalf("got %d migrations; want at least 2", len(ms))
	}
	for i := 1; i < len(ms); i++ {
		if ms[i].version <= ms[i-1].version {
			t.Errorf("migrations out of order: %s before %s", ms[i-1].name, ms[i].name)
		}
	}
}
