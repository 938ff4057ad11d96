// Package platform identifies the board the reporter runs on and refuses boards the Grove
// close-call kit was never wired for.
package platform

import (
	"bytes"
	"os"
	"runtime"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"go.viam.com/utils"
)

// ExitInvalidPlatform is the process exit status for an unsupported board. It matches mraa's
// MRAA_ERROR_INVALID_PLATFORM.
const ExitInvalidPlatform = 10

// ErrUnsupportedPlatform is returned by Check when no board identity is supported.
var ErrUnsupportedPlatform = errors.New("unsupported platform")

// Platform is a supported board family.
type Platform int

// The boards the close-call kit supports.
const (
	Unknown Platform = iota
	GalileoGen1
	GalileoGen2
	EdisonFabC
	// Custom is a board accepted through configuration rather than by name.
	Custom
)

func (p Platform) String() string {
	switch p {
	case GalileoGen1:
		return "Intel Galileo Gen 1"
	case GalileoGen2:
		return "Intel Galileo Gen 2"
	case EdisonFabC:
		return "Intel Edison FAB C"
	case Custom:
		return "custom"
	default:
		return "unknown"
	}
}

// knownBoards maps DMI board names reported by the firmware to platforms.
var knownBoards = map[string]Platform{
	"Galileo":     GalileoGen1,
	"GalileoGen2": GalileoGen2,
	"BODEGA BAY":  EdisonFabC,
	"SALT BAY":    EdisonFabC,
}

const (
	dmiBoardNamePath = "/sys/devices/virtual/dmi/id/board_name"
	compatiblePath   = "/proc/device-tree/compatible"
)

// Identify returns the board identities of the running machine: the DMI board name on x86 and
// the device-tree compatible strings on ARM.
func Identify() (utils.StringSet, error) {
	return identify(runtime.GOARCH, dmiBoardNamePath, compatiblePath)
}

func identify(arch, dmiPath, dtPath string) (utils.StringSet, error) {
	switch {
	case arch == "386" || strings.HasPrefix(arch, "amd"):
		return stringSetFromX86(dmiPath)
	case strings.HasPrefix(arch, "arm"):
		return stringSetFromARM(dtPath)
	default:
		return nil, noBoardError(arch)
	}
}

func stringSetFromARM(path string) (utils.StringSet, error) {
	compatiblesRd, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, noBoardError("arm")
		}
		return nil, err
	}

	compatiblesStr := string(compatiblesRd)
	// Remove any initial or final null bytes, then split on the rest of them.
	compatiblesStr = strings.Trim(compatiblesStr, "\x00")
	return utils.NewStringSet(strings.Split(compatiblesStr, "\x00")...), nil
}

func stringSetFromX86(path string) (utils.StringSet, error) {
	boardName, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, noBoardError("x86")
		}
		return nil, err
	}
	return utils.NewStringSet(string(bytes.TrimSpace(boardName))), nil
}

func noBoardError(arch string) error {
	return errors.Errorf("could not determine board model on %s", arch)
}

// Check returns the platform matching one of `identities`. `extra` lists additional board
// identities accepted as Custom. ErrUnsupportedPlatform is returned when nothing matches.
func Check(identities utils.StringSet, extra []string) (Platform, error) {
	names := lo.Keys(identities)
	sort.Strings(names)

	for _, id := range names {
		if p, ok := knownBoards[id]; ok {
			return p, nil
		}
	}
	allowed := utils.NewStringSet(extra...)
	for _, id := range names {
		if _, ok := allowed[id]; ok {
			return Custom, nil
		}
	}
	return Unknown, errors.Wrapf(ErrUnsupportedPlatform, "board %q", strings.Join(names, ", "))
}
