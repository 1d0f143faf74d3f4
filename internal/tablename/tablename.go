// Package tablename derives destination table names from source file paths.
//
// The derivation is a boundary contract: the same path must always produce
// the same name, across runs and across machines, because the table name is
// how a later run finds the checkpoint left by an earlier one.
//
// Examples:
//
//	G:\Onderwijs\CITOTAB.sav                                       -> CITO_
//	G:\Bevolking\GBASCHEIDINGENMASSATAB.sav                        -> GBASCHEIDINGENMASSA_
//	G:\Bevolking\GBASCHEIDINGENMASSATAB\2013\140710 GBASCHEIDINGENMASSATAB 2013V1.sav
//	                                                               -> GBASCHEIDINGENMASSA2013V1_
package tablename

import "strings"

// Terminator is appended to every derived name.
const Terminator = "_"

// datePrefixLen is the width of the yymmdd stamp that prefixes versioned
// file names.
const datePrefixLen = 6

// markers are removed wherever they occur, in this order.
var markers = []string{".sav", ".csv", " ", "tab", "bus"}

// Derive returns the table name for path.
//
// Rules, applied in order:
//  1. lower-case the path;
//  2. keep only the part after the last path separator (\ or /);
//  3. remove every occurrence of ".sav", ".csv", spaces, "tab" and "bus";
//  4. if the remainder starts with '1', drop its leading date stamp
//     (six characters);
//  5. upper-case and append Terminator.
func Derive(path string) string {
	name := strings.ToLower(path)

	if i := strings.LastIndexAny(name, `\/`); i >= 0 {
		name = name[i+1:]
	}

	for _, m := range markers {
		name = strings.ReplaceAll(name, m, "")
	}

	if strings.HasPrefix(name, "1") {
		if len(name) > datePrefixLen {
			name = name[datePrefixLen:]
		} else {
			name = ""
		}
	}

	return strings.ToUpper(name) + Terminator
}
