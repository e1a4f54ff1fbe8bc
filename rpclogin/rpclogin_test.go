package rpclogin

import (
	"testing"

	cp "github.com/shvgo/shv/chainpack"
)

func TestHashPasswordMatchesScenario(t *testing.T) {
	// spec section 8 scenario 1: password = lowercase hex of
	// SHA1(nonce || SHA1Hex(password)).
	got := HashPassword("abcd", "p")
	want := SHA1Hex("abcd" + SHA1Hex("p"))
	if got != want {
		t.Errorf("HashPassword = %v, want %v", got, want)
	}
}

func TestEffectivePasswordElevatesUntrustedPlain(t *testing.T) {
	c := Credentials{Password: "secret", Type: TypePlain}

	if pw, typ := c.EffectivePassword("nonce", true); typ != TypePlain || pw != "secret" {
		t.Errorf("trusted PLAIN got (%v,%v)", pw, typ)
	}
	if pw, typ := c.EffectivePassword("nonce", false); typ != TypeSHA1 || pw != HashPassword("nonce", "secret") {
		t.Errorf("untrusted PLAIN should elevate to SHA1, got (%v,%v)", pw, typ)
	}
}

func TestToValueShape(t *testing.T) {
	c := Credentials{
		User:        "u",
		Password:    "p",
		Type:        TypeSHA1,
		DeviceID:    "dev1",
		DeviceMount: "/mnt",
		IdleTimeout: 60,
	}
	v := c.ToValue("abcd", false)
	if v.Kind != cp.KindMap {
		t.Fatalf("ToValue kind = %v, want Map", v.Kind)
	}
	login := v.Map["login"]
	if login.Map["user"].Str != "u" {
		t.Errorf("login.user = %v, want u", login.Map["user"].Str)
	}
	if login.Map["password"].Str != HashPassword("abcd", "p") {
		t.Errorf("login.password mismatch")
	}
	if login.Map["type"].Str != "SHA1" {
		t.Errorf("login.type = %v, want SHA1", login.Map["type"].Str)
	}

	options := v.Map["options"]
	device := options.Map["device"]
	if device.Map["deviceId"].Str != "dev1" || device.Map["mountPoint"].Str != "/mnt" {
		t.Errorf("device map mismatch: %+v", device.Map)
	}
	if options.Map["idleWatchDogTimeOut"].Int != 60 {
		t.Errorf("idleWatchDogTimeOut = %v, want 60", options.Map["idleWatchDogTimeOut"].Int)
	}
}

func TestNonceFromHello(t *testing.T) {
	hello := cp.Map(map[string]*cp.Value{"nonce": cp.Str("abcd")})
	nonce, err := NonceFromHello(hello)
	if err != nil {
		t.Fatalf("NonceFromHello: %v", err)
	}
	if nonce != "abcd" {
		t.Errorf("nonce = %v, want abcd", nonce)
	}
}

func TestNonceFromHelloRejectsTooLong(t *testing.T) {
	long := make([]byte, MaxNonceLen+1)
	for i := range long {
		long[i] = 'a'
	}
	hello := cp.Map(map[string]*cp.Value{"nonce": cp.Str(string(long))})
	if _, err := NonceFromHello(hello); err == nil {
		t.Error("expected an error for an over-length nonce")
	}
}

func TestValidatePassword(t *testing.T) {
	if !ValidatePassword("secret", "secret", "", TypePlain) {
		t.Error("PLAIN should compare directly")
	}
	hashed := HashPassword("abcd", "secret")
	if !ValidatePassword(hashed, "secret", "abcd", TypeSHA1) {
		t.Error("SHA1 should validate against the hashed form")
	}
}
