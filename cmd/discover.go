package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/pricewatch/internal/discovery"
	"github.com/sells-group/pricewatch/internal/identity"
	"github.com/sells-group/pricewatch/internal/model"
)

var (
	discoverCategory string
	discoverURL      string
	discoverFile     string
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Scan a retailer listing page for new products",
	RunE: func(cmd *cobra.Command, args []string) error {
		if discoverCategory == "" {
			return eris.New("--category is required")
		}
		if (discoverURL == "") == (discoverFile == "") {
			return eris.New("exactly one of --url or --file is required")
		}

		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		html, baseURL, err := listingSource(cmd.Context())
		if err != nil {
			return err
		}

		products, err := discovery.ParseListing(bytes.NewReader(html),
			model.Category(discoverCategory), baseURL)
		if err != nil {
			return err
		}

		matcher := identity.NewMatcher(env.Store, cfg.Discovery.MaxPerVariant)
		runner := discovery.NewRunner(matcher, cfg.Discovery.Concurrency)
		report, err := runner.Run(cmd.Context(), products)
		if err != nil {
			return err
		}
		return json.NewEncoder(os.Stdout).Encode(report)
	},
}

// listingSource returns the raw listing HTML and the base URL for
// resolving relative product links.
func listingSource(ctx context.Context) ([]byte, string, error) {
	if discoverFile != "" {
		data, err := os.ReadFile(discoverFile)
		if err != nil {
			return nil, "", eris.Wrapf(err, "read listing file %s", discoverFile)
		}
		return data, discoverURL, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, discoverURL, nil)
	if err != nil {
		return nil, "", eris.Wrap(err, "create listing request")
	}
	req.Header.Set("User-Agent", cfg.Fetch.UserAgent)

	client := &http.Client{Timeout: time.Duration(cfg.Fetch.TimeoutSecs) * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, "", eris.Wrapf(err, "fetch listing %s", discoverURL)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, "", eris.Errorf("listing fetch: http %d from %s", resp.StatusCode, discoverURL)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, "", eris.Wrap(err, "read listing body")
	}
	return data, discoverURL, nil
}

func init() {
	discoverCmd.Flags().StringVar(&discoverCategory, "category", "", "category of the listing (gpu, cpu, psu, ram, storage, monitor)")
	discoverCmd.Flags().StringVar(&discoverURL, "url", "", "listing page URL to fetch")
	discoverCmd.Flags().StringVar(&discoverFile, "file", "", "local listing HTML file (use --url for link resolution)")
	rootCmd.AddCommand(discoverCmd)
}
