// Command savload bulk-loads SPSS system files and CSV files into database
// tables, resuming from whatever each table already holds.
//
// Usage:
//
//	savload run --config savload.yaml files.txt
//	savload names files.txt
//	savload describe survey.sav
//	savload validate --config savload.yaml
package main

import (
	"errors"
	"fmt"
	"os"

	// register all backends with the storage factory; config picks one.
	_ "savload/internal/storage/all"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "savload:", err)
		var ee exitError
		if errors.As(err, &ee) {
			os.Exit(ee.code)
		}
		os.Exit(1)
	}
}

// exitError carries a specific exit code.
type exitError struct {
	code int
	msg  string
}

func (e exitError) Error() string { return e.msg }
