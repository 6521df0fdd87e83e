/*
   a09 - Command-line argument scanner.

   Copyright (c) 2024, Richard Cornwell

   Permission is hereby granted, free of charge, to any person obtaining a
   copy of this software and associated documentation files (the "Software"),
   to deal in the Software without restriction, including without limitation
   the rights to use, copy, modify, merge, publish, distribute, sublicense,
   and/or sell copies of the Software, and to permit persons to whom the
   Software is furnished to do so, subject to the following conditions:

   The above copyright notice and this permission notice shall be included in
   all copies or substantial portions of the Software.

   THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
   IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
   FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT.  IN NO EVENT SHALL
   RICHARD CORNWELL BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER LIABILITY, WHETHER
   IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM, OUT OF OR IN
   CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE SOFTWARE.
*/

// Package cli scans the command line described in spec.md §6.1 into an
// Options value. It is the assembler's only dependency on os.Args: callers
// pass the raw argument slice in and get back a value internal/assembler and
// cmd/a09 can act on without touching flag parsing themselves.
package cli

import (
	"fmt"
	"os"
	"strings"

	getopt "github.com/pborman/getopt/v2"
)

// Options is the parsed command line.
type Options struct {
	IncludeDirs []string // -I, repeatable
	MakeDeps    bool     // -M
	RunTests    bool     // -T: run tests, TAP-14 output
	PlainTests  bool     // -t: run tests, plain output
	CoreFile    string   // -c
	Debug       bool     // -d
	ListingOpts string   // -e
	Format      string   // -f
	Help        bool     // -h
	ListingFile string   // -l
	DisableWarn []string // -n Wxxxx[,Wxxxx...]
	OutputFile  string   // -o
	Randomize   bool     // -r
	FailOnWarn  bool     // -w
	Source      string   // the trailing file operand

	// BackendArgs collects flags neither this package nor getopt recognized
	// but the active back-end accepted via BackendOffer.
	BackendArgs map[string]string
}

// BackendOffer is consulted for any flag this package does not recognize,
// per §6.1's "unknown flags are offered to the active back-end before
// failing". ok is false if the back-end doesn't want it either.
type BackendOffer func(flag, value string) (ok bool, err error)

// shortFlags lists every single-letter flag this package owns, getopt
// short-option syntax: a trailing ':' means the flag takes a value.
const shortFlags = "I:MTc:de:f:hl:n:o:rtw"

// longFlags maps every long name this package owns to its short rune, so the
// unknown-flag pre-scan can tell a back-end flag from one of ours.
var longFlags = map[string]rune{
	"include":      'I',
	"make-deps":    'M',
	"tap":          'T',
	"core":         'c',
	"debug":        'd',
	"listing-opts": 'e',
	"format":       'f',
	"help":         'h',
	"listing":      'l',
	"no-warn":      'n',
	"output":       'o',
	"randomize":    'r',
	"plain-tests":  't',
	"fail-on-warn": 'w',
}

// Parse scans args (normally os.Args[1:]) into an Options value. Any flag
// neither this package nor getopt recognizes is first offered to offer
// (typically the selected back-end's CmdLine method); only once that refuses
// it too does Parse report an error.
func Parse(args []string, offer BackendOffer) (*Options, error) {
	remaining, backendArgs, err := extractBackendFlags(args, offer)
	if err != nil {
		return nil, err
	}

	set := getopt.New()
	include := set.ListLong("include", 'I', "add an include directory")
	makeDeps := set.BoolLong("make-deps", 'M', "print a Make dependency line and exit")
	runTests := set.BoolLong("tap", 'T', "run tests, TAP-14 output")
	core := set.StringLong("core", 'c', "", "write emulator core dump to file after tests")
	debug := set.BoolLong("debug", 'd', "enable debug diagnostics")
	listOpts := set.StringLong("listing-opts", 'e', "", "listing cycle/flag options (c d f t)")
	format := set.StringLong("format", 'f', "bin", "output back-end (bin|rsdos|srec|basic|dragon)")
	help := set.BoolLong("help", 'h', "usage")
	listing := set.StringLong("listing", 'l', "", "listing file path")
	noWarn := set.StringLong("no-warn", 'n', "", "disable warnings Wxxxx[,Wxxxx...]")
	output := set.StringLong("output", 'o', "a09.obj", "output path")
	randomize := set.BoolLong("randomize", 'r', "randomize test order")
	plainTests := set.BoolLong("plain-tests", 't', "run tests, plain output")
	failOnWarn := set.BoolLong("fail-on-warn", 'w', "fail if any warning was emitted")

	if err := set.Getopt(append([]string{"a09"}, remaining...), nil); err != nil {
		return nil, fmt.Errorf("%w", err)
	}

	opts := &Options{
		IncludeDirs: append(envIncludeDirs(), []string(*include)...),
		MakeDeps:    *makeDeps,
		RunTests:    *runTests,
		CoreFile:    *core,
		Debug:       *debug,
		ListingOpts: *listOpts,
		Format:      *format,
		Help:        *help,
		ListingFile: *listing,
		OutputFile:  *output,
		Randomize:   *randomize,
		PlainTests:  *plainTests,
		FailOnWarn:  *failOnWarn,
		BackendArgs: backendArgs,
	}
	if *noWarn != "" {
		opts.DisableWarn = strings.Split(*noWarn, ",")
	}

	rest := set.Args()
	if len(rest) > 0 {
		opts.Source = rest[0]
	}
	return opts, nil
}

// envIncludeDirs splits A09_INCLUDE_PATH the way $PATH is split: ':' on
// Unix, ';' on Windows.
func envIncludeDirs() []string {
	v := os.Getenv("A09_INCLUDE_PATH")
	if v == "" {
		return nil
	}
	sep := ":"
	if os.PathSeparator == '\\' {
		sep = ";"
	}
	return strings.Split(v, sep)
}

// extractBackendFlags walks args looking for options that are neither a
// known short rune nor a known long name, offering each to offer in turn.
// An accepted flag (and its value, if any) is removed from the slice handed
// back to getopt; a refused one is left in place so getopt's own "unknown
// option" error fires naturally, satisfying "offered... before failing".
func extractBackendFlags(args []string, offer BackendOffer) ([]string, map[string]string, error) {
	out := make([]string, 0, len(args))
	backendArgs := map[string]string{}
	for i := 0; i < len(args); i++ {
		a := args[i]
		name, hasValue, inlineValue, recognized := classify(a)
		if recognized {
			out = append(out, a)
			continue
		}
		if offer == nil {
			out = append(out, a)
			continue
		}
		value := inlineValue
		consumedNext := false
		if hasValue && !strings.Contains(a, "=") && i+1 < len(args) {
			value = args[i+1]
			consumedNext = true
		}
		ok, err := offer(name, value)
		if err != nil {
			return nil, nil, err
		}
		if !ok {
			out = append(out, a)
			continue
		}
		backendArgs[name] = value
		if consumedNext {
			i++
		}
	}
	return out, backendArgs, nil
}

// classify reports whether arg names a flag this package owns. name is the
// flag's bare name (without dashes); hasValue reports whether an unrecognized
// flag of this shape takes a value (every flag does, long or short: the
// following argument unless "=value" is attached); inlineValue is any
// "=value" suffix already present.
func classify(arg string) (name string, hasValue bool, inlineValue string, recognized bool) {
	if !strings.HasPrefix(arg, "-") {
		return "", false, "", true // not a flag at all; pass through untouched
	}
	body := strings.TrimPrefix(arg, "--")
	body = strings.TrimPrefix(body, "-")
	if eq := strings.IndexByte(body, '='); eq >= 0 {
		return body[:eq], true, body[eq+1:], isKnown(body[:eq])
	}
	if len(arg) > 1 && arg[1] != '-' && len(body) >= 1 {
		r := rune(body[0])
		return string(r), true, "", strings.ContainsRune(shortFlags, r)
	}
	return body, true, "", isKnown(body)
}

func isKnown(name string) bool {
	_, ok := longFlags[name]
	return ok
}
