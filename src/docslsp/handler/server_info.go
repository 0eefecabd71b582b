package handler

import (
	"fmt"
	"os"
	"strconv"

	"github.com/docsys/docs-lsp/src/docslsp/internal/serverinfofile"
)

const (
	_infoFileKeyPID        = "pid"
	_infoFileKeyExecutable = "executable"
)

// Output process identity to the server info file so that IDE plugins can
// confirm they are talking to a live daemon before dialing it.
// The JSON-RPC inbound independently adds its listen address to the same file.
func outputProcessInfo(infofile serverinfofile.ServerInfoFile) error {
	if err := infofile.UpdateField(_infoFileKeyPID, strconv.Itoa(os.Getpid())); err != nil {
		return fmt.Errorf("outputting pid to info file: %w", err)
	}

	executable, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolving executable path: %w", err)
	}
	if err := infofile.UpdateField(_infoFileKeyExecutable, executable); err != nil {
		return fmt.Errorf("outputting executable path to info file: %w", err)
	}

	return nil
}
