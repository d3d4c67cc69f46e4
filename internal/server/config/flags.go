package config

import (
	"flag"
	"os"

	"github.com/dmitrijs2005/vaultrelay/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags:
//
//	-h string       listen host (e.g., "0.0.0.0")
//	-p int          listen port
//	-d string       PostgreSQL DSN; empty keeps the in-memory store
//	-s string       admin bearer secret
//	-b string       blob storage, "db" or "s3"
//	-activation     require activation keys for new vaults (use -activation=false to disable)
//
// Notes:
//   - os.Args is first filtered with flagx.FilterArgs so that flags owned by
//     other parsers (-c/-config) do not trip this FlagSet.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-h", "-p", "-d", "-s", "-b", "-activation"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.Host, "h", config.Host, "host to listen on")
	fs.IntVar(&config.Port, "p", config.Port, "port to listen on")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.AdminSecret, "s", config.AdminSecret, "admin secret")
	fs.StringVar(&config.BlobStorage, "b", config.BlobStorage, "blob storage (db or s3)")
	fs.BoolVar(&config.RequireActivation, "activation", config.RequireActivation, "require activation key for new vaults")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}
}
