package types

import (
	"errors"
	"fmt"
	"strings"

	"github.com/holiman/uint256"
)

// Decimals is the fixed-point precision of token and USD amounts.
const Decimals = 18

// BpsDenominator is 100% expressed in basis points.
const BpsDenominator = 10_000

var (
	// ErrOverflow is returned when an intermediate product exceeds 256 bits.
	ErrOverflow = errors.New("amount: arithmetic overflow")

	// ErrOutOfRange is returned by inclusive range queries with bad bounds.
	ErrOutOfRange = errors.New("range out of bounds")

	// ErrInvalidAmount is returned when a decimal string cannot be parsed.
	ErrInvalidAmount = errors.New("amount: invalid decimal")
)

// Zero returns a fresh zero amount.
func Zero() *uint256.Int { return new(uint256.Int) }

// Pow10 returns 10^n.
func Pow10(n uint8) *uint256.Int {
	return new(uint256.Int).Exp(uint256.NewInt(10), uint256.NewInt(uint64(n)))
}

// One returns one whole unit (1e18).
func One() *uint256.Int { return Pow10(Decimals) }

// Units converts a whole-unit count into an 18-decimal amount.
//
//	Units(500) // $500 or 500 tokens
func Units(whole uint64) *uint256.Int {
	return new(uint256.Int).Mul(uint256.NewInt(whole), One())
}

// Clone copies x, treating nil as zero.
func Clone(x *uint256.Int) *uint256.Int {
	if x == nil {
		return Zero()
	}
	return x.Clone()
}

// MulDiv computes x*y/d with a 512-bit intermediate.
func MulDiv(x, y, d *uint256.Int) (*uint256.Int, error) {
	if d.IsZero() {
		return nil, fmt.Errorf("%w: division by zero", ErrOverflow)
	}
	z, overflow := new(uint256.Int).MulDivOverflow(x, y, d)
	if overflow {
		return nil, ErrOverflow
	}
	return z, nil
}

// ApplyBps returns amount * bps / 10000.
func ApplyBps(amount *uint256.Int, bps uint64) (*uint256.Int, error) {
	return MulDiv(amount, uint256.NewInt(bps), uint256.NewInt(BpsDenominator))
}

// Scale converts an amount between decimal precisions, truncating when
// precision is reduced.
func Scale(amount *uint256.Int, from, to uint8) (*uint256.Int, error) {
	switch {
	case from == to:
		return amount.Clone(), nil
	case from < to:
		z, overflow := new(uint256.Int).MulOverflow(amount, Pow10(to-from))
		if overflow {
			return nil, ErrOverflow
		}
		return z, nil
	default:
		return new(uint256.Int).Div(amount, Pow10(from-to)), nil
	}
}

// Sum adds all amounts. Nil entries count as zero.
func Sum(xs ...*uint256.Int) *uint256.Int {
	total := Zero()
	for _, x := range xs {
		if x != nil {
			total.Add(total, x)
		}
	}
	return total
}

// SubSaturating returns max(x-y, 0).
func SubSaturating(x, y *uint256.Int) *uint256.Int {
	if x.Lt(y) {
		return Zero()
	}
	return new(uint256.Int).Sub(x, y)
}

// Format renders a fixed-point amount as a decimal string with trailing
// fractional zeros removed. Format(Units(2), 18) is "2".
func Format(amount *uint256.Int, decimals uint8) string {
	if amount == nil {
		return "0"
	}
	digits := amount.Dec()
	if decimals == 0 {
		return digits
	}
	d := int(decimals)
	if len(digits) <= d {
		digits = strings.Repeat("0", d-len(digits)+1) + digits
	}
	whole, frac := digits[:len(digits)-d], strings.TrimRight(digits[len(digits)-d:], "0")
	if frac == "" {
		return whole
	}
	return whole + "." + frac
}

// FormatUSD renders an 18-decimal USD amount with two decimals, e.g. "$500.00".
func FormatUSD(amount *uint256.Int) string {
	cents := new(uint256.Int).Div(Clone(amount), Pow10(Decimals-2))
	digits := cents.Dec()
	if len(digits) < 3 {
		digits = strings.Repeat("0", 3-len(digits)) + digits
	}
	return "$" + digits[:len(digits)-2] + "." + digits[len(digits)-2:]
}

// Parse reads a decimal string such as "0.0002" into a fixed-point amount
// with the given precision.
func Parse(s string, decimals uint8) (*uint256.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("%w: empty string", ErrInvalidAmount)
	}
	whole, frac, _ := strings.Cut(s, ".")
	if len(frac) > int(decimals) {
		return nil, fmt.Errorf("%w: %q has more than %d decimals", ErrInvalidAmount, s, decimals)
	}
	if whole == "" {
		whole = "0"
	}
	digits := whole + frac + strings.Repeat("0", int(decimals)-len(frac))
	digits = strings.TrimLeft(digits, "0")
	if digits == "" {
		return Zero(), nil
	}
	z, err := uint256.FromDecimal(digits)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidAmount, s, err)
	}
	return z, nil
}

// MustParse is like Parse but panics on error. Use for literal values.
func MustParse(s string, decimals uint8) *uint256.Int {
	z, err := Parse(s, decimals)
	if err != nil {
		panic(err)
	}
	return z
}

// CheckRange validates an inclusive [start, end] window over a sequence of
// the given length.
func CheckRange(start, end, length int) error {
	if start < 0 || start > end || end >= length {
		return fmt.Errorf("%w: [%d, %d] with length %d", ErrOutOfRange, start, end, length)
	}
	return nil
}
