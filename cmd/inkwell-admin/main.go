// Command inkwell-admin manages the blog database from the shell: create
// the schema, add or remove users, and maintain categories and tags.
//
//	inkwell-admin migrate
//	inkwell-admin user create alice alice@example.com --password s3cret
//	inkwell-admin category create "Release notes" --slug release-notes
//	inkwell-admin tag list --json
//
// The database comes from --db, else DATABASE_URL (read from the
// environment or .env).
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
