package policy

import (
	"net"
	"testing"
)

func TestCookieManagerIssueThenValidate(t *testing.T) {
	m, err := NewCookieManager()
	if err != nil {
		t.Fatalf("NewCookieManager: %v", err)
	}
	client := [8]byte{1, 2, 3, 4, 5, 6, 7, 8}
	remote := net.ParseIP("192.0.2.10")

	server := m.Issue(client, remote)
	if !m.Validate(client, server, remote) {
		t.Fatal("freshly issued cookie should validate")
	}
	if m.Validate(client, server, net.ParseIP("192.0.2.11")) {
		t.Fatal("cookie issued for one address should not validate for another")
	}
}

func TestCookieManagerValidatesAcrossRotation(t *testing.T) {
	m, err := NewCookieManager()
	if err != nil {
		t.Fatalf("NewCookieManager: %v", err)
	}
	client := [8]byte{9, 9, 9, 9, 9, 9, 9, 9}
	remote := net.ParseIP("198.51.100.1")

	server := m.Issue(client, remote)
	if err := m.RotateSecret(); err != nil {
		t.Fatalf("RotateSecret: %v", err)
	}
	if !m.Validate(client, server, remote) {
		t.Fatal("cookie issued under the previous secret should still validate once")
	}
	if err := m.RotateSecret(); err != nil {
		t.Fatalf("RotateSecret: %v", err)
	}
	if m.Validate(client, server, remote) {
		t.Fatal("cookie should no longer validate two rotations later")
	}
}

func TestAuthorizeCookieRequestsFreshOnFirstContact(t *testing.T) {
	cm, err := NewCookieManager()
	if err != nil {
		t.Fatalf("NewCookieManager: %v", err)
	}
	auth := &Authorizer{Cookies: cm}
	remote := net.ParseIP("203.0.113.5")

	ok, fresh := auth.AuthorizeCookie(remote, Cookie{Client: [8]byte{1}})
	if ok {
		t.Fatal("a cookie with no server part should not authorize")
	}
	if fresh == ([8]byte{}) {
		t.Fatal("expected a non-zero freshly issued cookie")
	}

	ok, _ = auth.AuthorizeCookie(remote, Cookie{Client: [8]byte{1}, Server: fresh, HasServer: true})
	if !ok {
		t.Fatal("presenting the freshly issued server cookie should authorize")
	}
}

func TestAuthorizeCookieNoopWithoutManager(t *testing.T) {
	auth := &Authorizer{}
	ok, _ := auth.AuthorizeCookie(net.ParseIP("192.0.2.1"), Cookie{})
	if !ok {
		t.Fatal("an Authorizer with no CookieManager should authorize unconditionally")
	}
}
