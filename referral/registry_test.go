package referral

import (
	"errors"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

var (
	alice = common.HexToAddress("0x00000000000000000000000000000000000a11ce")
	bob   = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
	carol = common.HexToAddress("0x00000000000000000000000000000000000ca401")
)

func TestCodeForDeterministic(t *testing.T) {
	a1 := CodeFor(alice, 4)
	a2 := CodeFor(alice, 4)
	if a1 != a2 {
		t.Fatalf("CodeFor not deterministic: %q vs %q", a1, a2)
	}
	if len(a1) != 8 {
		t.Errorf("len = %d, want 8 hex chars", len(a1))
	}
	if CodeFor(bob, 4) == a1 {
		t.Error("distinct accounts produced the same code")
	}
	if got := CodeFor(alice, 1); got != a1 {
		t.Errorf("short request should clamp to minimum, got %q", got)
	}
	if long := CodeFor(alice, 6); long[:8] != a1 {
		t.Errorf("longer code %q should extend %q", long, a1)
	}
}

func TestRegisterIsStable(t *testing.T) {
	r := New()
	code, err := r.Register(alice)
	if err != nil {
		t.Fatal(err)
	}
	again, _ := r.Register(alice)
	if code != again {
		t.Errorf("re-register changed code: %q -> %q", code, again)
	}
	owner, ok := r.Resolve(code)
	if !ok || owner != alice {
		t.Errorf("Resolve(%q) = %v, %v", code, owner, ok)
	}
	if _, ok := r.Resolve(" " + strings.ToLower(code) + " "); !ok {
		t.Error("Resolve should normalize case and whitespace")
	}
}

func TestRegisterExtendsOnCollision(t *testing.T) {
	r := New()
	// Occupy alice's shortest code with another account.
	r.Load(bob, CodeFor(alice, 4), nil)

	code, err := r.Register(alice)
	if err != nil {
		t.Fatal(err)
	}
	if code != CodeFor(alice, 5) {
		t.Errorf("code = %q, want the 5-byte derivation %q", code, CodeFor(alice, 5))
	}
}

func TestAttach(t *testing.T) {
	r := New()
	bobCode, _ := r.Register(bob)
	r.Register(alice)

	sponsor, attached, err := r.Attach(alice, bobCode)
	if err != nil || !attached || sponsor != bob {
		t.Fatalf("Attach = %v, %v, %v", sponsor, attached, err)
	}
	if s, ok := r.Sponsor(alice); !ok || s != bob {
		t.Errorf("Sponsor(alice) = %v, %v", s, ok)
	}

	// Sponsorship is write-once.
	carolCode, _ := r.Register(carol)
	if s, attached, _ := r.Attach(alice, carolCode); attached || s != bob {
		t.Errorf("second attach changed sponsor to %v", s)
	}
}

func TestAttachUnknownCodeIsSilent(t *testing.T) {
	r := New()
	r.Register(alice)
	_, attached, err := r.Attach(alice, "DEADBEEF")
	if err != nil || attached {
		t.Errorf("unknown code: attached=%v err=%v", attached, err)
	}
	if _, ok := r.Sponsor(alice); ok {
		t.Error("unknown code created a sponsor edge")
	}
}

func TestAttachSelfReferral(t *testing.T) {
	r := New()
	own, _ := r.Register(alice)
	if _, _, err := r.Attach(alice, own); !errors.Is(err, ErrSelfReferral) {
		t.Errorf("expected ErrSelfReferral, got %v", err)
	}
	if _, ok := r.Sponsor(alice); ok {
		t.Error("self referral created a sponsor edge")
	}
}

func TestCheckSponsorBeforeRegistration(t *testing.T) {
	r := New()
	own, _ := r.NextCode(alice)
	if _, _, err := r.CheckSponsor(alice, own, own); !errors.Is(err, ErrSelfReferral) {
		t.Errorf("expected ErrSelfReferral for a code not yet registered, got %v", err)
	}
	if r.Len() != 0 {
		t.Error("NextCode/CheckSponsor must not register")
	}
}

func TestForget(t *testing.T) {
	r := New()
	bobCode, _ := r.Register(bob)
	code, _ := r.Register(alice)
	r.Attach(alice, bobCode)

	r.Forget(alice)
	if _, ok := r.Resolve(code); ok {
		t.Error("code still resolves after Forget")
	}
	if _, ok := r.Sponsor(alice); ok {
		t.Error("sponsor edge survived Forget")
	}
	if r.Len() != 1 {
		t.Errorf("len = %d, want 1", r.Len())
	}
}
