package sandbox

import "testing"

func TestDefaultSecurityContextDeniesEverything(t *testing.T) {
	sec := DefaultSecurityContext()
	if err := sec.Require(CapIO); err == nil {
		t.Error("expected CapIO to be denied by default")
	}
	if err := sec.Require(CapSyscalls); err == nil {
		t.Error("expected CapSyscalls to be denied by default")
	}
	if err := sec.Require(CapNonDeterm); err == nil {
		t.Error("expected CapNonDeterm to be denied under the default deterministic context")
	}
}

func TestSecurityContextGrantedCapabilitiesPass(t *testing.T) {
	sec := &SecurityContext{AllowIO: true, AllowSyscalls: true}
	if err := sec.Require(CapIO); err != nil {
		t.Errorf("expected CapIO to be granted, got %v", err)
	}
	if err := sec.Require(CapSyscalls); err != nil {
		t.Errorf("expected CapSyscalls to be granted, got %v", err)
	}
}

func TestSecurityContextNonDeterministicOptOut(t *testing.T) {
	sec := &SecurityContext{Deterministic: false}
	if err := sec.Require(CapNonDeterm); err != nil {
		t.Errorf("expected CapNonDeterm to be granted once Deterministic is false, got %v", err)
	}
}

func TestAllowPathEmptyAllowListAllowsAnything(t *testing.T) {
	sec := &SecurityContext{}
	if !sec.AllowPath("/etc/passwd") {
		t.Error("an empty allow-list should allow any path not explicitly denied")
	}
}

func TestAllowPathDenyListTakesPrecedence(t *testing.T) {
	sec := &SecurityContext{
		AllowedPathPrefix: []string{"/data"},
		DeniedPathPrefix:  []string{"/data/secret"},
	}
	if !sec.AllowPath("/data/public/file.txt") {
		t.Error("expected /data/public/file.txt to be allowed")
	}
	if sec.AllowPath("/data/secret/key.pem") {
		t.Error("deny-list prefix should win over an overlapping allow-list prefix")
	}
	if sec.AllowPath("/other/file.txt") {
		t.Error("a path outside the allow-list should be denied")
	}
}
