// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/jeranaias/gemchat/internal/model"
	"github.com/jeranaias/gemchat/internal/util"
)

// TitleMaxRunes is how many characters of the opening message become the title.
const TitleMaxRunes = 50

// DeriveTitle turns the opening message of a session into its title: the
// trimmed text, cut to TitleMaxRunes characters with "..." appended if it was
// longer. The title is always a byte prefix of the input. When the cut would
// separate a base character from its combining marks it moves back to the
// start of that sequence.
func DeriveTitle(content string) string {
	content = strings.TrimSpace(content)
	if content == "" {
		return model.DefaultTitle
	}
	cut, n := -1, 0
	for i := range content {
		if n == TitleMaxRunes {
			cut = i
			break
		}
		n++
	}
	if cut < 0 {
		return content
	}
	if norm.NFC.FirstBoundaryInString(content[cut:]) != 0 {
		if b := norm.NFC.LastBoundary([]byte(content[:cut])); b > 0 {
			cut = b
		}
	}
	return content[:cut] + util.Ellipsis
}

// ShouldAutoTitle reports whether s has just received its first message and
// so is due for DeriveTitle.
func ShouldAutoTitle(s model.ChatSession) bool {
	return len(s.Messages) == 1
}
