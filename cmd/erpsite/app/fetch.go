package app

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/ledgerline/erpsite/internal/config"
	"github.com/ledgerline/erpsite/loading"
	"github.com/ledgerline/erpsite/pagedata"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	retryWaitMin = 100 * time.Millisecond
	retryWaitMax = 2 * time.Second
)

func newFetchCmd(v *viper.Viper) *cobra.Command {
	def := config.Default()
	var refetch bool

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Load page data from a content API",
		Long: `Load page data from the content API at --endpoint the way the landing page
does: several consumers load at once and share a single request. The
resulting page state is printed as JSON. If the content API cannot be
reached, the built-in dataset is printed and the state is marked degraded.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(v)
			if err != nil {
				return err
			}

			src, err := pagedata.NewHTTPSource(cfg.Endpoint, pagedata.WithRetries(cfg.RetryMax, retryWaitMin, retryWaitMax))
			if err != nil {
				return err
			}
			coord, err := loading.New(
				loading.WithDrainDelay(cfg.DrainDelay),
				loading.WithWatchdog(cfg.Watchdog))
			if err != nil {
				return err
			}
			o, err := pagedata.New(src,
				pagedata.WithCoordinator(coord),
				pagedata.WithCacheTTL(cfg.CacheTTL))
			if err != nil {
				return err
			}

			changes, cancel := coord.OnChange()
			defer cancel()
			go func() {
				for busy := range changes {
					log.Debugw("Loading indicator changed", "loading", busy)
				}
			}()

			ctx := cmd.Context()
			var wg sync.WaitGroup
			wg.Add(cfg.Consumers)
			for i := 0; i < cfg.Consumers; i++ {
				go func() {
					defer wg.Done()
					o.Load(ctx)
				}()
			}
			wg.Wait()
			if refetch {
				o.Refetch(ctx)
			}

			st := o.State()
			if st.Degraded {
				log.Warnw("Using fallback page data", "err", st.Err)
			}
			log.Infow("Loaded page data", "source", src, "consumers", cfg.Consumers,
				"services", len(st.Services), "testimonials", len(st.Testimonials))

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(st)
		},
	}

	flags := cmd.Flags()
	flags.String(config.KeyEndpoint, def.Endpoint, "Base URL of the content API")
	flags.Duration(config.KeyCacheTTL, def.CacheTTL, "How long loaded page data is reused")
	flags.Duration(config.KeyDrainDelay, def.DrainDelay, "How long the loading indicator stays on after the last load ends")
	flags.Duration(config.KeyWatchdog, def.Watchdog, "Longest time the loading indicator can stay on")
	flags.Int(config.KeyRetryMax, def.RetryMax, "Retries for a failed page data request")
	flags.Int(config.KeyConsumers, def.Consumers, "Number of concurrent page data loads")
	flags.BoolVar(&refetch, "refetch", false, "Refetch page data once after the initial loads")
	bindFlags(v, flags, config.KeyEndpoint, config.KeyCacheTTL, config.KeyDrainDelay,
		config.KeyWatchdog, config.KeyRetryMax, config.KeyConsumers)

	return cmd
}
