package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shelfwatch/shelfwatch/internal/fetch"
)

var checkCmd = &cobra.Command{
	Use:   "check [url]",
	Short: "Run the fetch+extract pipeline once against a URL",
	Long: `Fetch a product page, run the extraction cascade, and print the
snapshot as JSON. Useful for debugging site adapters.

Example:
  shelfwatch check "https://www.mashkar.co.il/product/12345"`,
	Args: cobra.ExactArgs(1),
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	st, err := newStack(false)
	if err != nil {
		logError("%v", err)
		return err
	}
	defer st.close()

	rawURL := args[0]
	site, ok := st.registry.Match(rawURL)
	if !ok {
		logError("url does not belong to a supported site")
		return fmt.Errorf("unsupported site")
	}

	ctx, cancel := context.WithTimeout(context.Background(), st.config.InteractiveTimeout)
	defer cancel()

	usable := func(p fetch.RawPage) bool {
		return st.pipeline.QuickName(p, site, rawURL) != ""
	}
	page, err := st.picker.Fetch(ctx, rawURL, site, usable)
	if err != nil {
		logError("fetch: %v", err)
		return err
	}

	res := st.pipeline.Run(ctx, page, site, rawURL)
	out := map[string]any{
		"site":         site.ID,
		"name":         res.Name,
		"price":        res.Price,
		"availability": res.Availability.String(),
		"stock_text":   res.StockText,
		"fingerprint":  res.Fingerprint,
		"lines":        len(res.Items),
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
