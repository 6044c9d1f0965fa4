package deeplink

import (
	"fmt"
	"os/exec"
	"runtime"
)

// openBrowser hands the URL to the default browser.
func openBrowser(url string) error {
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
		return fmt.Errorf("launch browser: %w", err)
	}
	// Detach; the browser outlives us and we don't care about its exit.
	go cmd.Wait()
	return nil
}
