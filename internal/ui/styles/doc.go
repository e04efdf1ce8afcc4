// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles provides the visual styling for the ulm selector.

All colors use Lip Gloss AdaptiveColor for automatic light/dark terminal
detection.

# Colors (colors.go)

  - Purple - selection marker and header
  - Cyan - command text
  - Emerald - safe commands and success status
  - Amber - moderate commands
  - Rose - destructive commands and errors

RiskColor and RiskMarker map a model.RiskLevel to its color and to an ASCII
badge, so risk is readable on terminals without color.

# Theme (theme.go)

	theme := styles.NewTheme()
	line := theme.Command.Render(cmd) + theme.Risk(level).Render(styles.RiskMarker(level))
*/
package styles
