/*
   a09 - Command-line argument scanner tests.

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
package cli

import "testing"

func TestClassifyKnownShortFlag(t *testing.T) {
	name, hasValue, _, recognized := classify("-f")
	if name != "f" || !hasValue || !recognized {
		t.Errorf("classify(-f) = %q %v _ %v, want f true _ true", name, hasValue, recognized)
	}
}

func TestClassifyUnknownLongFlag(t *testing.T) {
	name, _, _, recognized := classify("--symbol-case")
	if name != "symbol-case" || recognized {
		t.Errorf("classify(--symbol-case) = %q recognized=%v, want unrecognized", name, recognized)
	}
}

func TestClassifyInlineValue(t *testing.T) {
	name, hasValue, value, recognized := classify("--symbol-case=fold")
	if name != "symbol-case" || !hasValue || value != "fold" || recognized {
		t.Errorf("classify(--symbol-case=fold) = %q %v %q %v", name, hasValue, value, recognized)
	}
}

func TestClassifyPositional(t *testing.T) {
	_, _, _, recognized := classify("main.asm")
	if !recognized {
		t.Error("a bare positional argument must never be treated as an unknown flag")
	}
}

func TestExtractBackendFlagsAcceptedIsRemoved(t *testing.T) {
	offered := map[string]string{}
	offer := func(flag, value string) (bool, error) {
		offered[flag] = value
		return flag == "symbol-case", nil
	}
	remaining, backendArgs, err := extractBackendFlags(
		[]string{"-f", "bin", "--symbol-case", "fold", "main.asm"}, offer)
	if err != nil {
		t.Fatalf("extractBackendFlags: %v", err)
	}
	want := []string{"-f", "bin", "main.asm"}
	if len(remaining) != len(want) {
		t.Fatalf("remaining = %v, want %v", remaining, want)
	}
	for i := range want {
		if remaining[i] != want[i] {
			t.Errorf("remaining[%d] = %q, want %q", i, remaining[i], want[i])
		}
	}
	if backendArgs["symbol-case"] != "fold" {
		t.Errorf("backendArgs = %v, want symbol-case=fold", backendArgs)
	}
}

func TestExtractBackendFlagsRefusedIsKept(t *testing.T) {
	offer := func(flag, value string) (bool, error) { return false, nil }
	remaining, backendArgs, err := extractBackendFlags([]string{"--bogus", "x", "main.asm"}, offer)
	if err != nil {
		t.Fatalf("extractBackendFlags: %v", err)
	}
	if len(backendArgs) != 0 {
		t.Errorf("backendArgs = %v, want none accepted", backendArgs)
	}
	found := false
	for _, a := range remaining {
		if a == "--bogus" {
			found = true
		}
	}
	if !found {
		t.Errorf("remaining = %v, want refused flag left in place for getopt to reject", remaining)
	}
}

func TestEnvIncludeDirsEmpty(t *testing.T) {
	t.Setenv("A09_INCLUDE_PATH", "")
	if dirs := envIncludeDirs(); dirs != nil {
		t.Errorf("envIncludeDirs() = %v, want nil", dirs)
	}
}

func TestEnvIncludeDirsSplitsOnColon(t *testing.T) {
	t.Setenv("A09_INCLUDE_PATH", "/a:/b:/c")
	dirs := envIncludeDirs()
	want := []string{"/a", "/b", "/c"}
	if len(dirs) != len(want) {
		t.Fatalf("envIncludeDirs() = %v, want %v", dirs, want)
	}
	for i := range want {
		if dirs[i] != want[i] {
			t.Errorf("dirs[%d] = %q, want %q", i, dirs[i], want[i])
		}
	}
}
