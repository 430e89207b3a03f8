package commerce

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/vietddude/rrol/internal/core/domain"
)

var (
	// ErrEmptyCart is returned when checkout is requested for a cart
	// without lines.
	ErrEmptyCart = errors.New("cart is empty")

	// ErrInvalidVariantID is returned for merchandise ids that do not end
	// in a numeric variant id.
	ErrInvalidVariantID = errors.New("invalid variant id")
)

var variantIDPattern = regexp.MustCompile(`/(\d+)$`)

// VariantNumericID extracts "123" from "gid://shopify/ProductVariant/123".
func VariantNumericID(gid string) (string, error) {
	m := variantIDPattern.FindStringSubmatch(gid)
	if m == nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidVariantID, gid)
	}
	return m[1], nil
}

// BuildCheckoutURL builds a cart permalink of the form
// base + "VARIANT:QTY,VARIANT:QTY". Lines with the same variant are merged,
// keeping the order in which variants first appear.
func BuildCheckoutURL(base string, lines []domain.CartLine) (string, error) {
	if len(lines) == 0 {
		return "", ErrEmptyCart
	}

	order := make([]string, 0, len(lines))
	qty := make(map[string]int, len(lines))
	for _, l := range lines {
		id, err := VariantNumericID(l.MerchandiseID)
		if err != nil {
			return "", err
		}
		if l.Quantity <= 0 {
			return "", fmt.Errorf("invalid quantity %d for variant %s", l.Quantity, id)
		}
		if _, seen := qty[id]; !seen {
			order = append(order, id)
		}
		qty[id] += l.Quantity
	}

	parts := make([]string, len(order))
	for i, id := range order {
		parts[i] = id + ":" + strconv.Itoa(qty[id])
	}
	return normalizeBase(base) + strings.Join(parts, ","), nil
}

// ValidateCheckoutURL reports whether url is a well-formed permalink under
// base.
func ValidateCheckoutURL(base, url string) bool {
	pattern := "^" + regexp.QuoteMeta(normalizeBase(base)) + `\d+:\d+(,\d+:\d+)*$`
	ok, err := regexp.MatchString(pattern, url)
	return err == nil && ok
}

func normalizeBase(base string) string {
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return base
}
