package auth

import (
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestHashPIN(t *testing.T) {
	pin := "4821"
	hash, err := HashPIN(pin)
	if err != nil {
		t.Fatalf("HashPIN() failed: %v", err)
	}
	if hash == "" || hash == pin {
		t.Fatalf("HashPIN() returned %q", hash)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(pin)); err != nil {
		t.Errorf("HashPIN() produced invalid bcrypt hash: %v", err)
	}
}

func TestHashPIN_DifferentHashesForSamePIN(t *testing.T) {
	hash1, _ := HashPIN("1234")
	hash2, _ := HashPIN("1234")

	if hash1 == hash2 {
		t.Error("HashPIN() produced identical hashes for same PIN (no salt)")
	}
}

func TestVerifyPIN(t *testing.T) {
	hash, _ := HashPIN("4821")

	if err := VerifyPIN(hash, "4821"); err != nil {
		t.Errorf("VerifyPIN() failed with correct PIN: %v", err)
	}
	if err := VerifyPIN(hash, "0000"); err == nil {
		t.Error("VerifyPIN() accepted wrong PIN")
	}
	if err := VerifyPIN(hash, ""); err == nil {
		t.Error("VerifyPIN() accepted empty PIN")
	}
}

func TestValidatePIN(t *testing.T) {
	tests := []struct {
		pin     string
		wantErr bool
	}{
		{"1234", false},
		{"12345678", false},
		{"123", true},
		{"123456789", true},
		{"12a4", true},
		{"", true},
	}

	for _, tt := range tests {
		t.Run(tt.pin, func(t *testing.T) {
			err := ValidatePIN(tt.pin)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePIN(%q) error = %v, wantErr %v", tt.pin, err, tt.wantErr)
			}
		})
	}
}

func TestSecretMatches(t *testing.T) {
	tests := []struct {
		name     string
		expected string
		given    string
		want     bool
	}{
		{"match", "s3cret", "s3cret", true},
		{"mismatch", "s3cret", "other", false},
		{"empty given", "s3cret", "", false},
		{"unconfigured", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SecretMatches(tt.expected, tt.given); got != tt.want {
				t.Errorf("SecretMatches(%q, %q) = %v, want %v", tt.expected, tt.given, got, tt.want)
			}
		})
	}
}
