package usecase

import "testing"

func TestSecretVerifier(t *testing.T) {
	tests := []struct {
		name      string
		reference string
		provided  string
		want      bool
	}{
		{"match", "s3cret", "s3cret", true},
		{"mismatch", "s3cret", "S3cret", false},
		{"prefix", "s3cret", "s3c", false},
		{"empty provided", "s3cret", "", false},
		{"empty reference", "", "anything", false},
		{"both empty", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NewSecretVerifier(tt.reference).Verify(tt.provided); got != tt.want {
				t.Errorf("Verify(%q) with reference %q = %v, want %v", tt.provided, tt.reference, got, tt.want)
			}
		})
	}
}
