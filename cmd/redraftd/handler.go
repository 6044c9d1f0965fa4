package main

import (
	"context"
	"errors"
	"time"

	"redraftd/internal/config"
	"redraftd/internal/deeplink"
	"redraftd/internal/hotkey"
	"redraftd/internal/ipc"
	"redraftd/internal/logging"
	"redraftd/internal/orchestrator"
	"redraftd/internal/rewrite"
	"redraftd/internal/store"
	"redraftd/internal/vault"
	"redraftd/internal/version"
)

// daemonState is the IPC request handler. It owns no goroutines of its own;
// every method is a short request/response hop into the daemon's components.
type daemonState struct {
	startedAt time.Time
	cfg       *config.Config
	store     *store.Store
	vault     *vault.Vault
	auth      *deeplink.Handler
	hotkey    *hotkey.Manager
	client    *rewrite.Client
	log       *logging.Logger
}

func (d *daemonState) HandleMessage(ctx context.Context, msg *ipc.Message) (*ipc.Message, error) {
	switch msg.Header.Type {
	case ipc.MsgStatus:
		return d.handleStatus(msg)
	case ipc.MsgLogin:
		return d.handleLogin(msg)
	case ipc.MsgLogout:
		return d.handleLogout(msg)
	case ipc.MsgDeepLink:
		return d.handleDeepLink(msg)
	case ipc.MsgSetTone:
		return d.handleSetTone(msg)
	case ipc.MsgToggleShortcut:
		return d.handleToggleShortcut(msg)
	default:
		return nil, nil
	}
}

func (d *daemonState) handleStatus(msg *ipc.Message) (*ipc.Message, error) {
	status := &ipc.StatusResponse{
		Version:         version.Version,
		StartedAt:       d.startedAt,
		UptimeSeconds:   int64(time.Since(d.startedAt).Seconds()),
		Encrypted:       d.vault.Encrypted(),
		SealerName:      d.vault.SealerName(),
		ShortcutBinding: d.hotkey.Binding().String(),
		ShortcutEnabled: d.hotkey.Enabled(),
		Tone:            d.currentTone(),
	}

	rec, err := d.vault.Load()
	switch {
	case err == nil:
		status.SignedIn = true
		status.UserName = rec.UserName
		status.UserEmail = rec.UserEmail
		d.fillUsage(status, rec)
	case errors.Is(err, vault.ErrNotSignedIn):
	default:
		return nil, err
	}

	return ipc.NewResponse(ipc.MsgStatusResp, msg.Header.RequestID, status)
}

// fillUsage asks the service for the account's allowance. Best effort:
// status stays useful offline.
func (d *daemonState) fillUsage(status *ipc.StatusResponse, rec *vault.Record) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	outcome := d.client.Subscription(ctx,
		rewrite.Credentials{UserID: rec.UserID, Token: rec.Token})
	if outcome.Kind != rewrite.KindSuccess {
		return
	}
	if outcome.Usage != nil {
		status.Usage = &ipc.UsageInfo{
			RemainingToday: outcome.Usage.RemainingToday,
			DailyLimit:     outcome.Usage.DailyLimit,
		}
	}
	if outcome.Plan != nil {
		status.Plan = outcome.Plan.Name
	}
}

func (d *daemonState) handleLogin(msg *ipc.Message) (*ipc.Message, error) {
	resp := &ipc.LoginResponse{Started: true}
	if err := d.auth.Begin(); err != nil {
		d.log.Error("starting sign-in failed", "error", err)
		resp.Started = false
		resp.Error = err.Error()
	}
	return ipc.NewResponse(ipc.MsgLoginResp, msg.Header.RequestID, resp)
}

func (d *daemonState) handleLogout(msg *ipc.Message) (*ipc.Message, error) {
	resp := &ipc.LogoutResponse{Success: true}
	if err := d.vault.Clear(); err != nil {
		resp.Success = false
		resp.Error = err.Error()
	}
	return ipc.NewResponse(ipc.MsgLogoutResp, msg.Header.RequestID, resp)
}

func (d *daemonState) handleDeepLink(msg *ipc.Message) (*ipc.Message, error) {
	var req ipc.DeepLinkRequest
	if err := ipc.Decode(msg.Payload, &req); err != nil {
		return nil, err
	}

	resp := &ipc.DeepLinkResponse{Accepted: true}
	if err := d.auth.HandleCallback(req.URL); err != nil {
		resp.Accepted = false
		resp.Error = err.Error()
	}
	return ipc.NewResponse(ipc.MsgDeepLinkResp, msg.Header.RequestID, resp)
}

func (d *daemonState) handleSetTone(msg *ipc.Message) (*ipc.Message, error) {
	var req ipc.SetToneRequest
	if err := ipc.Decode(msg.Payload, &req); err != nil {
		return nil, err
	}
	if req.Tone == "" {
		req.Tone = orchestrator.DefaultTone
	}

	resp := &ipc.SetToneResponse{Success: true}
	if err := d.store.SetSetting(store.SettingTone, req.Tone); err != nil {
		resp.Success = false
		resp.Error = err.Error()
	} else {
		d.log.Info("tone changed", "tone", req.Tone)
	}
	return ipc.NewResponse(ipc.MsgSetToneResp, msg.Header.RequestID, resp)
}

func (d *daemonState) handleToggleShortcut(msg *ipc.Message) (*ipc.Message, error) {
	var req ipc.ToggleShortcutRequest
	if err := ipc.Decode(msg.Payload, &req); err != nil {
		return nil, err
	}

	d.hotkey.SetEnabled(req.Enabled)
	d.log.Info("shortcut toggled", "enabled", req.Enabled)
	return ipc.NewResponse(ipc.MsgToggleShortcutResp, msg.Header.RequestID,
		&ipc.ToggleShortcutResponse{Enabled: d.hotkey.Enabled()})
}

func (d *daemonState) currentTone() string {
	tone, found, err := d.store.GetSetting(store.SettingTone)
	if err != nil || !found || tone == "" {
		return orchestrator.DefaultTone
	}
	return tone
}

// applyConfig handles a config hot reload. Only the shortcut enable flag can
// change without a restart; a new binding or socket path needs one.
func (d *daemonState) applyConfig(updated *config.Config) {
	if updated.Shortcut.Enabled != d.hotkey.Enabled() {
		d.hotkey.SetEnabled(updated.Shortcut.Enabled)
		d.log.Info("shortcut enable flag reloaded", "enabled", updated.Shortcut.Enabled)
	}
	if updated.Shortcut.Binding != d.cfg.Shortcut.Binding {
		d.log.Warn("shortcut binding changed; restart to apply",
			"binding", updated.Shortcut.Binding)
	}
	d.cfg = updated
}
