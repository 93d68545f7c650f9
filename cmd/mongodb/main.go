// Command mongodb manages the MongoDB migrations of an application.
//
//	mongodb migration:status [--connection name]
//	mongodb migration:run [--connection name]
//	mongodb make:migration <name>
//
// The configuration is read from property.yaml (property-<env>.yaml when ENVIRONMENT is DEV,
// STAGE or PROD) in the --config directory.
package main

import (
	"os"
)

func main() {
	if err := newRootCommand(os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}
