// Package referral assigns referral codes and tracks the one-level
// sponsor relation between accounts.
//
// Codes exist for display and lookup only. The canonical relation is an
// account-to-account edge, so sponsor resolution on every purchase is a
// single map read.
package referral

import (
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

const (
	// minCodeBytes is the shortest code prefix (8 hex characters).
	minCodeBytes = 4
	maxCodeBytes = 32
)

var (
	// ErrSelfReferral is returned when an account names its own code.
	ErrSelfReferral = errors.New("self referral")

	// ErrCodeSpaceExhausted is returned when no derived code is free.
	ErrCodeSpaceExhausted = errors.New("referral: no free code for account")
)

// CodeFor derives the n-byte code of an account: the upper-case hex of the
// first n bytes of keccak256(address).
func CodeFor(account common.Address, n int) string {
	n = min(max(n, minCodeBytes), maxCodeBytes)
	h := crypto.Keccak256(account.Bytes())
	return strings.ToUpper(common.Bytes2Hex(h[:n]))
}

// Normalize canonicalizes a user-supplied code.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Registry maps codes to accounts and accounts to sponsors. It is not safe
// for concurrent use.
type Registry struct {
	byCode   map[string]common.Address
	codes    map[common.Address]string
	sponsors map[common.Address]common.Address
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		byCode:   make(map[string]common.Address),
		codes:    make(map[common.Address]string),
		sponsors: make(map[common.Address]common.Address),
	}
}

// NextCode returns the code Register would assign, without mutating.
func (r *Registry) NextCode(account common.Address) (string, error) {
	if code, ok := r.codes[account]; ok {
		return code, nil
	}
	for n := minCodeBytes; n <= maxCodeBytes; n++ {
		code := CodeFor(account, n)
		if _, taken := r.byCode[code]; !taken {
			return code, nil
		}
	}
	return "", ErrCodeSpaceExhausted
}

// Register assigns a code to account. Registered accounts keep their code.
func (r *Registry) Register(account common.Address) (string, error) {
	code, err := r.NextCode(account)
	if err != nil {
		return "", err
	}
	r.byCode[code] = account
	r.codes[account] = code
	return code, nil
}

// Load inserts a persisted registration and optional sponsor edge.
func (r *Registry) Load(account common.Address, code string, sponsor *common.Address) {
	if code != "" {
		r.byCode[code] = account
		r.codes[account] = code
	}
	if sponsor != nil {
		r.sponsors[account] = *sponsor
	}
}

// Resolve returns the account owning code.
func (r *Registry) Resolve(code string) (common.Address, bool) {
	a, ok := r.byCode[Normalize(code)]
	return a, ok
}

// CodeOf returns the code assigned to account.
func (r *Registry) CodeOf(account common.Address) (string, bool) {
	c, ok := r.codes[account]
	return c, ok
}

// CheckSponsor validates sponsorCode for account without attaching it.
// An unknown code is not an error; it resolves to no sponsor.
func (r *Registry) CheckSponsor(account common.Address, ownCode, sponsorCode string) (common.Address, bool, error) {
	sponsorCode = Normalize(sponsorCode)
	if sponsorCode == "" {
		return common.Address{}, false, nil
	}
	if sponsorCode == ownCode {
		return common.Address{}, false, ErrSelfReferral
	}
	sponsor, ok := r.byCode[sponsorCode]
	if !ok {
		return common.Address{}, false, nil
	}
	if sponsor == account {
		return common.Address{}, false, ErrSelfReferral
	}
	return sponsor, true, nil
}

// Attach links account to the owner of sponsorCode. Accounts that already
// have a sponsor keep it.
func (r *Registry) Attach(account common.Address, sponsorCode string) (common.Address, bool, error) {
	if s, ok := r.sponsors[account]; ok {
		return s, false, nil
	}
	own := r.codes[account]
	sponsor, ok, err := r.CheckSponsor(account, own, sponsorCode)
	if err != nil || !ok {
		return common.Address{}, false, err
	}
	r.sponsors[account] = sponsor
	return sponsor, true, nil
}

// Sponsor returns the sponsor of account.
func (r *Registry) Sponsor(account common.Address) (common.Address, bool) {
	s, ok := r.sponsors[account]
	return s, ok
}

// Forget removes an account's code and sponsor edge. Only used to roll
// back a registration made by a failed purchase.
func (r *Registry) Forget(account common.Address) {
	if code, ok := r.codes[account]; ok {
		delete(r.byCode, code)
		delete(r.codes, account)
	}
	delete(r.sponsors, account)
}

// Len returns the number of registered accounts.
func (r *Registry) Len() int { return len(r.codes) }
