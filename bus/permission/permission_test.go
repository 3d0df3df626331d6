package permission_test

import (
	"testing"

	"github.com/arfaz/opbus/bus/errs"
	"github.com/arfaz/opbus/bus/permission"
)

func TestDefaultAllowsEverything(t *testing.T) {
	p := permission.Default()
	if err := p.CheckNetURL("https://example.com/x"); err != nil {
		t.Fatalf("CheckNetURL: %v", err)
	}
	if err := p.CheckRun(); err != nil {
		t.Fatalf("CheckRun: %v", err)
	}
	if err := p.CheckRead("/etc/passwd"); err != nil {
		t.Fatalf("CheckRead: %v", err)
	}
}

func TestNetHostsAllowListDeniesUnlisted(t *testing.T) {
	p := &permission.Policy{NetHosts: []string{"api.example.com"}}
	if err := p.CheckNetURL("https://api.example.com/v1"); err != nil {
		t.Fatalf("CheckNetURL for allowed host: %v", err)
	}
	err := p.CheckNetURL("https://evil.example.org/")
	if err == nil {
		t.Fatal("expected permission_denied for a host not on the allow-list")
	}
	if err.Kind != errs.PermissionDenied {
		t.Fatalf("Kind = %v, want permission_denied", err.Kind)
	}
}

func TestNetHostsWildcardMatchesPrefix(t *testing.T) {
	p := &permission.Policy{NetHosts: []string{"sub.example.com*"}}
	if err := p.CheckNetURL("https://sub.example.com.evil.test/"); err != nil {
		t.Fatalf("prefix wildcard should match: %v", err)
	}
}

func TestCheckRunDeniedByDefaultZeroValue(t *testing.T) {
	p := &permission.Policy{}
	if err := p.CheckRun(); err == nil {
		t.Fatal("zero-value Policy should deny run access")
	}
}

func TestCheckReadRestrictedToAllowedPrefix(t *testing.T) {
	p := &permission.Policy{ReadPaths: []string{"/home/guest"}}
	if err := p.CheckRead("/home/guest/data.txt"); err != nil {
		t.Fatalf("CheckRead within allowed prefix: %v", err)
	}
	if err := p.CheckRead("/etc/passwd"); err == nil {
		t.Fatal("expected permission_denied outside allowed prefix")
	}
}
