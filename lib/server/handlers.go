// Copyright 2026 The Tessera Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"context"

	"github.com/tessera-engine/tessera/lib/session"
	"github.com/tessera-engine/tessera/lib/transport"
)

// Titles of the messages sent when an administrator request fails or
// completes without a dedicated reply.
const (
	TitleScenarioFailed   = "Scenario change failed"
	TitleScriptFailed     = "Script failed"
	TitleExportFailed     = "Entity export failed"
	TitleEntitiesExported = "Entities exported"
	TitleReadFailed       = "File read failed"
)

func (l *Loop) handleEvent(ctx context.Context, event transport.Event) {
	switch event.Kind {
	case transport.EventConnect:
		l.logger.Debug("client connected", "client", int(event.Number), "addr", event.Addr.String())
	case transport.EventDisconnect:
		l.sessions.Logout(event.Number)
	case transport.EventMessage:
		l.handleMessage(ctx, event)
	}
}

func (l *Loop) handleMessage(ctx context.Context, event transport.Event) {
	number := event.Number
	frame := event.Frame

	switch frame.Kind {
	case transport.LoginRequest:
		l.login(number, event)

	case transport.RequestPrivateEdit:
		if _, err := l.sessions.RequestPrivateEdit(number); err != nil {
			l.logger.Warn("private edit request from unknown client", "client", int(number), "error", err)
		}

	case transport.RestartMap:
		if !l.requireAdmin(number, frame.Kind) {
			return
		}
		if err := l.lifecycle.Restart(ctx); err != nil {
			l.sender.Send(number, transport.ShowMessage, TitleScenarioFailed, err.Error())
		}

	case transport.SetMap:
		if !l.requireAdmin(number, frame.Kind) {
			return
		}
		activityID, assetID := frame.Text(0), frame.Text(1)
		if assetID == "" {
			l.sender.Send(number, transport.ShowMessage, TitleScenarioFailed, "no asset requested")
			return
		}
		if err := l.lifecycle.SetScenario(ctx, activityID, assetID); err != nil {
			l.sender.Send(number, transport.ShowMessage, TitleScenarioFailed, err.Error())
		}

	case transport.RunScript:
		if !l.requireAdmin(number, frame.Kind) {
			return
		}
		output, err := l.world.RunScript(frame.Text(0))
		if err != nil {
			l.sender.Send(number, transport.ShowMessage, TitleScriptFailed, err.Error())
			return
		}
		l.sender.Send(number, transport.ScriptResult, output)

	case transport.ExportEntities:
		if !l.requireAdmin(number, frame.Kind) {
			return
		}
		path, err := l.lifecycle.ExportEntities(frame.Text(0))
		if err != nil {
			l.sender.Send(number, transport.ShowMessage, TitleExportFailed, err.Error())
			return
		}
		l.sender.Send(number, transport.ShowMessage, TitleEntitiesExported, path)

	case transport.ReadFile:
		if !l.requireAdmin(number, frame.Kind) {
			return
		}
		name := frame.Text(0)
		content, err := l.lifecycle.ReadFile(name)
		if err != nil {
			l.sender.Send(number, transport.ShowMessage, TitleReadFailed, err.Error())
			return
		}
		l.sender.Send(number, transport.FileContent, name, content)

	default:
		l.logger.Warn("unexpected message from client", "client", int(number), "kind", frame.Kind.String())
	}
}

// login admits or refuses a connection. A refusal is shown to the
// client and flushed before the connection is kicked.
func (l *Loop) login(number transport.Number, event transport.Event) {
	identity := session.Identity{
		Username: event.Frame.Text(0),
		UserID:   event.Frame.Text(1),
		Token:    event.Frame.Text(2),
	}
	decision := l.sessions.Login(number, event.Addr, identity)
	if !decision.Accepted {
		l.sender.Send(number, transport.ShowMessage, session.TitleLoginFailure, decision.Reason)
		l.sender.ForceFlush()
		l.sender.Kick(number, decision.Reason)
		return
	}
	l.sender.Send(number, transport.LoginResponse, true, decision.Local)
	l.lifecycle.SendCurrent(number)
}

// requireAdmin reports whether number is a logged-in administrator,
// telling the client when it is not.
func (l *Loop) requireAdmin(number transport.Number, kind transport.Kind) bool {
	client, err := l.sessions.Get(number)
	if err == nil && client.Admin {
		return true
	}
	l.logger.Warn("refusing administrator request", "client", int(number), "kind", kind.String())
	l.sender.Send(number, transport.ShowMessage, session.TitleRequestDenied, session.ReasonNotAdministrator)
	return false
}
