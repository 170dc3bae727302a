// Command erpsite serves the landing page content API and loads page data
// from it.
package main

import (
	"os"

	"github.com/ledgerline/erpsite/cmd/erpsite/app"
)

func main() {
	if err := app.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
