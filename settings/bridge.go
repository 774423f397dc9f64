// Package settings persists the connection info and display mode between
// runs on top of a generic key-value store.
package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/bawdo/sqldivider/connection"
)

// Setting keys.
const (
	KeyConnectInfo = "connectInfo"
	KeyDisplayMode = "displayMode"
)

// DisplayMode is the result table theme.
type DisplayMode string

// Display modes.
const (
	Light DisplayMode = "light"
	Dark  DisplayMode = "dark"
)

// ParseDisplayMode accepts "light" or "dark" in any case.
func ParseDisplayMode(s string) (DisplayMode, error) {
	switch m := DisplayMode(strings.ToLower(strings.TrimSpace(s))); m {
	case Light, Dark:
		return m, nil
	}
	return "", fmt.Errorf("unknown display mode %q (use light or dark)", s)
}

// Loaded is what Load found. Nil fields were absent.
type Loaded struct {
	ConnectInfo *connection.Info
	DisplayMode *DisplayMode
}

// Bridge reads and writes the workbench settings.
type Bridge struct {
	store  Store
	logger *slog.Logger
}

var _ connection.InfoSaver = (*Bridge)(nil)

// NewBridge creates a bridge over store. A nil logger discards.
func NewBridge(store Store, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Bridge{store: store, logger: logger}
}

// Load reads every known key. Absent keys are left nil; values that do not
// decode are logged and treated as absent.
func (b *Bridge) Load(ctx context.Context) (Loaded, error) {
	var out Loaded

	var info connection.Info
	ok, err := b.get(ctx, KeyConnectInfo, &info)
	if err != nil {
		return Loaded{}, err
	}
	if ok {
		out.ConnectInfo = &info
	}

	var mode DisplayMode
	ok, err = b.get(ctx, KeyDisplayMode, &mode)
	if err != nil {
		return Loaded{}, err
	}
	if ok {
		if m, perr := ParseDisplayMode(string(mode)); perr == nil {
			out.DisplayMode = &m
		} else {
			b.logger.Warn("ignoring stored display mode", "error", perr)
		}
	}
	return out, nil
}

func (b *Bridge) get(ctx context.Context, key string, v any) (bool, error) {
	raw, ok, err := b.store.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("load %s: %w", key, err)
	}
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		b.logger.Warn("ignoring unreadable setting", "key", key, "error", err)
		return false, nil
	}
	return true, nil
}

// Save stores v as JSON under key.
func (b *Bridge) Save(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	if err := b.store.Set(ctx, key, raw); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	b.logger.Debug("setting saved", "key", key)
	return nil
}

// SaveConnectInfo stores the connection info, password included.
func (b *Bridge) SaveConnectInfo(ctx context.Context, info connection.Info) error {
	return b.Save(ctx, KeyConnectInfo, info)
}

// SaveDisplayMode stores the display mode.
func (b *Bridge) SaveDisplayMode(ctx context.Context, mode DisplayMode) error {
	return b.Save(ctx, KeyDisplayMode, mode)
}
