package eventmask

import "testing"

func TestStringJoinsInFixedOrder(t *testing.T) {
	if got, want := String(IN|OUT), "POLLIN|POLLOUT"; got != want {
		t.Fatalf("String(IN|OUT) = %q, want %q", got, want)
	}
}

func TestStringIndependentOfBitOrderingInExpression(t *testing.T) {
	// OUT|IN is the same mask value as IN|OUT; the rendered order must
	// still be POLLIN before POLLOUT since the order is fixed by
	// String, not by the bit values themselves.
	if got, want := String(OUT|IN), "POLLIN|POLLOUT"; got != want {
		t.Fatalf("String(OUT|IN) = %q, want %q", got, want)
	}
}

func TestStringAllBits(t *testing.T) {
	if got, want := String(IN|OUT|ERR|HUP), "POLLIN|POLLOUT|POLLERR|POLLHUP"; got != want {
		t.Fatalf("String(all) = %q, want %q", got, want)
	}
}

func TestStringEmpty(t *testing.T) {
	if got, want := String(0), ""; got != want {
		t.Fatalf("String(0) = %q, want %q", got, want)
	}
}

func TestStringSingleBit(t *testing.T) {
	if got, want := String(HUP), "POLLHUP"; got != want {
		t.Fatalf("String(HUP) = %q, want %q", got, want)
	}
}
