package runconfig

import "testing"

func TestValidateRejectsOutOfRangePassCap(t *testing.T) {
	cfg := DefaultConfig()
	cfg.EntryFile = "site.cf"
	cfg.LockStorePath = "/var/lib/converge/locks.db"
	cfg.HashStorePath = "/var/lib/converge/hashes.db"
	cfg.PassCap = 0

	if err := Validate(cfg); err == nil {
		t.Fatal("expected validation error for pass cap 0")
	}
}

func TestValidateAcceptsDefaults(t *testing.T) {
	cfg := DefaultConfig()
	cfg.EntryFile = "site.cf"
	cfg.LockStorePath = "/var/lib/converge/locks.db"
	cfg.HashStorePath = "/var/lib/converge/hashes.db"

	if err := Validate(cfg); err != nil {
		t.Fatalf("expected defaults to validate, got %v", err)
	}
}

func TestValidateRejectsMissingEntryFile(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LockStorePath = "/var/lib/converge/locks.db"
	cfg.HashStorePath = "/var/lib/converge/hashes.db"

	if err := Validate(cfg); err == nil {
		t.Fatal("expected validation error for missing entry file")
	}
}
