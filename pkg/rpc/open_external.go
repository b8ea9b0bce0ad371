package rpc

import (
	"os/exec"
	"runtime"

	"github.com/koharu-go/koharu/pkg/kerr"
)

// openExternal hands a URL to the OS's default handler, the same way the
// reference desktop shell's "open in browser" affordance works. It has no
// Resources dependency, so it lives beside the dispatcher rather than in
// pkg/ops.
func openExternal(url string) error {
	if url == "" {
		return kerr.New(kerr.BadInput, "empty url")
	}
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	if err := cmd.Start(); err != nil {
		return kerr.Wrap(kerr.IOFailure, "open external url", err)
	}
	return nil
}
