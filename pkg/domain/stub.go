package domain

import (
	"bufio"
	"strings"
)

// StubMarker prefixes the line of a stub loader that names its binary.
const StubMarker = "# hpyharness-stub: "

// StubTarget extracts the binary file name a stub loader points at.
func StubTarget(src string) (string, bool) {
	sc := bufio.NewScanner(strings.NewReader(src))
	for sc.Scan() {
		if target, ok := strings.CutPrefix(sc.Text(), StubMarker); ok {
			target = strings.TrimSpace(target)
			return target, target != ""
		}
	}
	return "", false
}
