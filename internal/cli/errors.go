package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/glabrego/selfoss-cli/internal/entrylist"
	"github.com/glabrego/selfoss-cli/internal/selfoss"
	"github.com/glabrego/selfoss-cli/internal/storage"
)

var ErrInvalidInput = errors.New("invalid input")

const (
	exitInternal     = 1
	exitInvalidInput = 2
	exitNotFound     = 3
	exitAuth         = 4
	exitNetwork      = 5
)

func errorKind(err error) (string, int) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		return "invalid-input", exitInvalidInput
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, entrylist.ErrEntryNotLoaded):
		return "not-found", exitNotFound
	case selfoss.IsAuthError(err):
		return "auth", exitAuth
	case selfoss.IsNetworkError(err):
		return "network", exitNetwork
	default:
		return "internal", exitInternal
	}
}

func ErrorExitCode(err error) int {
	if err == nil {
		return 0
	}
	_, code := errorKind(err)
	return code
}

func FormatError(err error) string {
	if err == nil {
		return ""
	}
	kind, _ := errorKind(err)
	return fmt.Sprintf("Error [%s]: %v", kind, err)
}

func PrintError(err error) {
	if err == nil {
		return
	}
	fmt.Fprintln(os.Stderr, FormatError(err))
}
