package cli

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/vietddude/rrol/internal/core/domain"
)

func TestParseLines(t *testing.T) {
	got, err := parseLines([]string{"gid://shopify/ProductVariant/11:2", "22:1"})
	if err != nil {
		t.Fatalf("parseLines: %v", err)
	}
	want := []domain.CartLine{
		{MerchandiseID: "gid://shopify/ProductVariant/11", Quantity: 2},
		{MerchandiseID: "22", Quantity: 1},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("lines mismatch (-want +got):\n%s", diff)
	}

	for _, bad := range []string{"11", ":3", "11:", "11:x"} {
		if _, err := parseLines([]string{bad}); err == nil {
			t.Errorf("parseLines(%q) should fail", bad)
		}
	}
}

func TestTruncateCell(t *testing.T) {
	if got := truncateCell("short", 10); got != "short" {
		t.Errorf("got %q", got)
	}
	if got := truncateCell("abcdefghij", 6); got != "abc..." {
		t.Errorf("got %q", got)
	}
}

func TestCommandsRegistered(t *testing.T) {
	for _, path := range [][]string{{"serve"}, {"product"}, {"cart", "add"}, {"checkout"}, {"reports"}, {"prune"}} {
		cmd, _, err := rootCmd.Find(path)
		if err != nil || cmd == rootCmd {
			t.Errorf("command %v not registered", path)
		}
	}
}
