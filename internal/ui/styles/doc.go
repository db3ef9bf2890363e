// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles provides the colours and lipgloss styles for gemchat's terminal UI.

All colours are lipgloss AdaptiveColor values, so they follow the terminal's
light or dark background unless the theme is forced with ui.theme.

# Color System (colors.go)

  - Purple - assistant label and the active session
  - Cyan - brand, user label and key hints
  - Amber - streaming indicator and warnings
  - Rose - error replies
  - Emerald - success

Status lines printed by the CLI use RenderSuccess, RenderError, RenderWarning
and RenderInfo, which prefix an ASCII marker so they read without colour.

# Theme (theme.go)

NewTheme builds every style once. The chat model calls SetSize on resize and
uses SidebarWidth to hide the session list on narrow terminals.
*/
package styles
