package version

import "testing"

func TestString_Defaults(t *testing.T) {
	t.Parallel()
	want := "docintel dev (commit: unknown, built: unknown)"
	if got := String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
