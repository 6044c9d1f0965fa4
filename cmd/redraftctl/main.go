// redraftctl - command-line control for the redraftd daemon.
package main

import (
	"fmt"
	"os"
	"time"

	"redraftd/internal/config"
	"redraftd/internal/ipc"
	"redraftd/internal/notify"
	"redraftd/internal/version"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "status":
		err = cmdStatus()
	case "login":
		err = cmdLogin()
	case "logout":
		err = cmdLogout()
	case "tone":
		if len(os.Args) < 3 {
			err = fmt.Errorf("usage: redraftctl tone <tone>")
		} else {
			err = cmdTone(os.Args[2])
		}
	case "enable":
		err = cmdToggleShortcut(true)
	case "disable":
		err = cmdToggleShortcut(false)
	case "deeplink":
		if len(os.Args) < 3 {
			err = fmt.Errorf("usage: redraftctl deeplink <url>")
		} else {
			err = cmdDeepLink(os.Args[2])
		}
	case "watch":
		err = cmdWatch()
	case "version":
		fmt.Printf("%s %s\n", version.Name, version.Version)
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "redraftctl: unknown command %q\n\n", os.Args[1])
		usage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "redraftctl: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Println(`redraftctl - control the redraftd daemon

Usage:
  redraftctl status           Show daemon and account status
  redraftctl login            Open the browser sign-in flow
  redraftctl logout           Remove the stored credential
  redraftctl tone <tone>      Set the rewrite tone (e.g. professional, casual)
  redraftctl enable           Enable the global shortcut
  redraftctl disable          Disable the global shortcut
  redraftctl deeplink <url>   Forward an OS-delivered redraft:// callback
  redraftctl watch            Stream daemon notifications to the terminal
  redraftctl version          Print the version
  redraftctl help             Show this help`)
}

// connect dials the daemon using the configured socket path.
func connect() (*ipc.Client, error) {
	cfg, err := config.Load("")
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	client := ipc.NewClient(cfg.IPC.SocketPath, 5*time.Second)
	if err := client.Connect(); err != nil {
		return nil, fmt.Errorf("is redraftd running? %w", err)
	}
	return client, nil
}

func cmdStatus() error {
	client, err := connect()
	if err != nil {
		return err
	}
	defer client.Close()

	resp, err := client.Request(ipc.MsgStatus, nil)
	if err != nil {
		return err
	}

	var status ipc.StatusResponse
	if err := ipc.Decode(resp.Payload, &status); err != nil {
		return err
	}

	fmt.Printf("redraftd %s, up %s\n", status.Version,
		(time.Duration(status.UptimeSeconds) * time.Second).String())
	if status.SignedIn {
		fmt.Printf("Account:   %s <%s>\n", status.UserName, status.UserEmail)
	} else {
		fmt.Println("Account:   not signed in")
	}
	if status.Encrypted {
		fmt.Printf("Vault:     encrypted (%s)\n", status.SealerName)
	} else {
		fmt.Println("Vault:     NOT encrypted at rest")
	}
	state := "enabled"
	if !status.ShortcutEnabled {
		state = "disabled"
	}
	fmt.Printf("Shortcut:  %s (%s)\n", status.ShortcutBinding, state)
	fmt.Printf("Tone:      %s\n", status.Tone)
	if status.Usage != nil {
		fmt.Printf("Usage:     %d of %d rewrites left today\n",
			status.Usage.RemainingToday, status.Usage.DailyLimit)
	}
	if status.Plan != "" {
		fmt.Printf("Plan:      %s\n", status.Plan)
	}
	return nil
}

func cmdLogin() error {
	client, err := connect()
	if err != nil {
		return err
	}
	defer client.Close()

	resp, err := client.Request(ipc.MsgLogin, nil)
	if err != nil {
		return err
	}

	var login ipc.LoginResponse
	if err := ipc.Decode(resp.Payload, &login); err != nil {
		return err
	}
	if !login.Started {
		return fmt.Errorf("sign-in could not start: %s", login.Error)
	}
	fmt.Println("Opened the browser. Finish signing in there; the daemon picks up the result.")
	return nil
}

func cmdLogout() error {
	client, err := connect()
	if err != nil {
		return err
	}
	defer client.Close()

	resp, err := client.Request(ipc.MsgLogout, nil)
	if err != nil {
		return err
	}

	var logout ipc.LogoutResponse
	if err := ipc.Decode(resp.Payload, &logout); err != nil {
		return err
	}
	if !logout.Success {
		return fmt.Errorf("logout failed: %s", logout.Error)
	}
	fmt.Println("Signed out.")
	return nil
}

func cmdTone(tone string) error {
	client, err := connect()
	if err != nil {
		return err
	}
	defer client.Close()

	resp, err := client.Request(ipc.MsgSetTone, &ipc.SetToneRequest{Tone: tone})
	if err != nil {
		return err
	}

	var set ipc.SetToneResponse
	if err := ipc.Decode(resp.Payload, &set); err != nil {
		return err
	}
	if !set.Success {
		return fmt.Errorf("setting tone failed: %s", set.Error)
	}
	fmt.Printf("Tone set to %q.\n", tone)
	return nil
}

func cmdToggleShortcut(enabled bool) error {
	client, err := connect()
	if err != nil {
		return err
	}
	defer client.Close()

	resp, err := client.Request(ipc.MsgToggleShortcut,
		&ipc.ToggleShortcutRequest{Enabled: enabled})
	if err != nil {
		return err
	}

	var toggle ipc.ToggleShortcutResponse
	if err := ipc.Decode(resp.Payload, &toggle); err != nil {
		return err
	}
	if toggle.Enabled {
		fmt.Println("Shortcut enabled.")
	} else {
		fmt.Println("Shortcut disabled.")
	}
	return nil
}

// cmdDeepLink forwards a redraft:// URL to the daemon. The OS invokes this
// subcommand when the protocol handler fires during sign-in.
func cmdDeepLink(rawURL string) error {
	client, err := connect()
	if err != nil {
		return err
	}
	defer client.Close()

	resp, err := client.Request(ipc.MsgDeepLink, &ipc.DeepLinkRequest{URL: rawURL})
	if err != nil {
		return err
	}

	var dl ipc.DeepLinkResponse
	if err := ipc.Decode(resp.Payload, &dl); err != nil {
		return err
	}
	if !dl.Accepted {
		return fmt.Errorf("callback rejected: %s", dl.Error)
	}
	fmt.Println("Signed in.")
	return nil
}

func cmdWatch() error {
	client, err := connect()
	if err != nil {
		return err
	}
	defer client.Close()

	fmt.Println("Watching daemon notifications (Ctrl-C to stop)...")
	return client.Stream(func(e notify.Event) {
		fmt.Printf("[%s] %s: %s\n", e.Type, e.Title, e.Message)
	})
}
