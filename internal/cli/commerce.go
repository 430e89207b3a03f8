package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vietddude/rrol/internal/control"
	"github.com/vietddude/rrol/internal/core/domain"
)

var (
	cartID        string
	checkoutLines []string
)

var productCmd = &cobra.Command{
	Use:   "product [handle]",
	Short: "Fetch a product by handle",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOneShot(cmd, func(ctx context.Context, app *control.App) any {
			return app.Commerce().FetchProduct(ctx, args[0])
		})
	},
}

var cartCmd = &cobra.Command{
	Use:   "cart",
	Short: "Cart operations",
}

var cartAddCmd = &cobra.Command{
	Use:   "add [variant_id] [quantity]",
	Short: "Add a variant to a cart, creating the cart when --cart is empty",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		qty, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid quantity %q: %w", args[1], err)
		}
		return runOneShot(cmd, func(ctx context.Context, app *control.App) any {
			return app.Commerce().AddToCart(ctx, cartID, args[0], qty)
		})
	},
}

var checkoutCmd = &cobra.Command{
	Use:   "checkout",
	Short: "Resolve the checkout URL for a cart",
	RunE: func(cmd *cobra.Command, args []string) error {
		lines, err := parseLines(checkoutLines)
		if err != nil {
			return err
		}
		return runOneShot(cmd, func(ctx context.Context, app *control.App) any {
			return app.Commerce().ResolveCheckoutURL(ctx, domain.Cart{ID: cartID, Lines: lines})
		})
	},
}

func init() {
	cartAddCmd.Flags().StringVar(&cartID, "cart", "", "existing cart id")
	checkoutCmd.Flags().StringVar(&cartID, "cart", "", "cart id")
	checkoutCmd.Flags().StringArrayVar(&checkoutLines, "line", nil, "cart line as variant_id:quantity (repeatable)")

	cartCmd.AddCommand(cartAddCmd)
	rootCmd.AddCommand(productCmd, cartCmd, checkoutCmd)
}

// parseLines reads "variant:qty" pairs. The variant id may itself contain
// colons, as in gid://shopify/ProductVariant/1.
func parseLines(raw []string) ([]domain.CartLine, error) {
	lines := make([]domain.CartLine, 0, len(raw))
	for _, r := range raw {
		i := strings.LastIndex(r, ":")
		if i <= 0 || i == len(r)-1 {
			return nil, fmt.Errorf("invalid line %q (want variant_id:quantity)", r)
		}
		qty, err := strconv.Atoi(r[i+1:])
		if err != nil {
			return nil, fmt.Errorf("invalid quantity in line %q: %w", r, err)
		}
		lines = append(lines, domain.CartLine{MerchandiseID: r[:i], Quantity: qty})
	}
	return lines, nil
}
