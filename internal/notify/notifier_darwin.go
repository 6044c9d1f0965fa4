//go:build darwin

package notify

import (
	"fmt"
	"os/exec"
	"strings"

	"redraftd/internal/logging"
)

// osascriptNotifier posts notifications through the scripting bridge. The
// daemon has no app bundle of its own, so the system notification center is
// reached via osascript rather than UNUserNotificationCenter.
type osascriptNotifier struct {
	log *logging.Logger
}

func newPlatformNotifier(log *logging.Logger) Notifier {
	if log == nil {
		log = logging.Default()
	}
	return &osascriptNotifier{log: log}
}

func (n *osascriptNotifier) Notify(event Event) error {
	script := fmt.Sprintf("display notification %q with title %q",
		sanitize(event.Message), sanitize(event.Title))

	cmd := exec.Command("osascript", "-e", script)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("osascript: %v (%s)", err, strings.TrimSpace(string(out)))
	}
	return nil
}

// sanitize strips characters that would break out of the AppleScript string
// literal.
func sanitize(s string) string {
	s = strings.ReplaceAll(s, `"`, "'")
	s = strings.ReplaceAll(s, "\\", "")
	return s
}
