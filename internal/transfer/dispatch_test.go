package transfer

import (
	"errors"
	"testing"

	"github.com/thanhleviet/ena-dl/internal/ena"
)

func TestChoose(t *testing.T) {
	withAspera := ena.FileEntry{Run: "SRR000001", Name: "SRR000001.fastq.gz", AsperaURL: "fasp:/SRR000001.fastq.gz"}
	httpOnly := ena.FileEntry{Run: "SRR000002", Name: "SRR000002.fastq.gz"}

	tests := []struct {
		name      string
		entry     ena.FileEntry
		mode      Mode
		available bool
		want      Protocol
		wantErr   bool
	}{
		{"http mode always http", withAspera, ModeHTTP, true, ProtocolHTTP, false},
		{"accelerated mode with url", withAspera, ModeAccelerated, true, ProtocolAspera, false},
		{"accelerated mode without url", httpOnly, ModeAccelerated, true, "", true},
		{"accelerated mode ignores availability", withAspera, ModeAccelerated, false, ProtocolAspera, false},
		{"auto prefers aspera", withAspera, ModeAuto, true, ProtocolAspera, false},
		{"auto without url falls back", httpOnly, ModeAuto, true, ProtocolHTTP, false},
		{"auto without client falls back", withAspera, ModeAuto, false, ProtocolHTTP, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Choose(tt.entry, tt.mode, tt.available)
			if tt.wantErr {
				var merr *ModeUnavailableError
				if !errors.As(err, &merr) {
					t.Fatalf("expected ModeUnavailableError, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Choose: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestParseMode(t *testing.T) {
	for _, s := range []string{"auto", "http", "accelerated"} {
		if _, err := ParseMode(s); err != nil {
			t.Errorf("ParseMode(%q): %v", s, err)
		}
	}
	if _, err := ParseMode("ftp"); err == nil {
		t.Error("expected error for unknown mode")
	}
}
