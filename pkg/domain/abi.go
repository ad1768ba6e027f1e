package domain

import (
	"fmt"
	"strings"
)

// ABI selects the compatibility mode an extension is built for.
type ABI string

const (
	ABICPython   ABI = "cpython"
	ABIUniversal ABI = "universal"
	ABIDebug     ABI = "debug"
)

// ArtifactKind tells which build output is the loadable one.
type ArtifactKind string

const (
	// ArtifactNative is a shared library loaded directly.
	ArtifactNative ArtifactKind = "native"
	// ArtifactStub is a thin loader source that pulls in the universal binary.
	ArtifactStub ArtifactKind = "stub"
)

// ParseABI validates a mode selector. Matching is case-insensitive.
func ParseABI(s string) (ABI, error) {
	abi := ABI(strings.ToLower(strings.TrimSpace(s)))
	if !abi.Valid() {
		return "", fmt.Errorf("unknown abi %q (want cpython, universal or debug)", s)
	}
	return abi, nil
}

// Valid reports whether abi is a recognised mode.
func (a ABI) Valid() bool {
	switch a {
	case ABICPython, ABIUniversal, ABIDebug:
		return true
	}
	return false
}

// ArtifactKind returns the kind of output a build in this mode is loaded from.
func (a ABI) ArtifactKind() ArtifactKind {
	if a == ABICPython {
		return ArtifactNative
	}
	return ArtifactStub
}

// Defines returns the preprocessor macros that pin a translation unit to this mode.
func (a ABI) Defines() []string {
	switch a {
	case ABICPython:
		return []string{"HPY_ABI_CPYTHON"}
	case ABIUniversal:
		return []string{"HPY_ABI_UNIVERSAL", "HPY_UNIVERSAL_ABI"}
	case ABIDebug:
		return []string{"HPY_ABI_UNIVERSAL", "HPY_UNIVERSAL_ABI", "HPY_ABI_DEBUG"}
	}
	return nil
}

// Matches reports whether an output path is of this kind.
func (k ArtifactKind) Matches(path string) bool {
	isStub := strings.HasSuffix(path, ".py")
	if k == ArtifactStub {
		return isStub
	}
	return !isStub
}
