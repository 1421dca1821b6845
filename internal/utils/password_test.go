package utils

import "testing"

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("hunter2hunter2")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	if hash == "" || hash == "hunter2hunter2" {
		t.Errorf("unusable hash %q", hash)
	}

	other, _ := HashPassword("hunter2hunter2")
	if hash == other {
		t.Error("same password should hash differently due to salt")
	}
}

func TestCheckPassword(t *testing.T) {
	hash, _ := HashPassword("correct horse")

	if !CheckPassword("correct horse", hash) {
		t.Error("correct password rejected")
	}
	if CheckPassword("wrong horse", hash) {
		t.Error("wrong password accepted")
	}
	if CheckPassword("correct horse", "not-a-hash") {
		t.Error("malformed hash accepted")
	}
}
