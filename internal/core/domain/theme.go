package domain

import (
	"fmt"
	"strings"
)

// ThemeMode selects the presentation colour scheme.
type ThemeMode string

const (
	ThemeLight  ThemeMode = "light"
	ThemeDark   ThemeMode = "dark"
	ThemeSystem ThemeMode = "system"
)

// ParseThemeMode accepts the mode names case-insensitively.
func ParseThemeMode(s string) (ThemeMode, error) {
	switch mode := ThemeMode(strings.ToLower(strings.TrimSpace(s))); mode {
	case ThemeLight, ThemeDark, ThemeSystem:
		return mode, nil
	default:
		return "", fmt.Errorf("unknown theme mode %q", s)
	}
}

// IsDark resolves the mode against the platform preference.
func (m ThemeMode) IsDark(systemDark bool) bool {
	switch m {
	case ThemeLight:
		return false
	case ThemeDark:
		return true
	default:
		return systemDark
	}
}
