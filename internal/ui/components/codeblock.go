// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	chromaStyles "github.com/alecthomas/chroma/v2/styles"
)

// =============================================================================
// STREAMING CODE HIGHLIGHTER
// =============================================================================

// HighlightFences colours the code inside ``` fences of a partial reply and
// leaves the prose alone. An unclosed fence, the usual case mid-stream, is
// highlighted up to the end of the text. Fence lines themselves are kept.
func HighlightFences(text string, dark bool) string {
	if !strings.Contains(text, "```") {
		return text
	}

	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	var code []string
	var language string
	inCode := false

	flush := func() {
		if len(code) == 0 {
			return
		}
		out = append(out, highlightCode(strings.Join(code, "\n"), language, dark))
		code = nil
	}

	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			if inCode {
				flush()
				language = ""
			} else {
				language = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "```"))
			}
			inCode = !inCode
			out = append(out, line)
			continue
		}
		if inCode {
			code = append(code, line)
		} else {
			out = append(out, line)
		}
	}
	flush()

	return strings.Join(out, "\n")
}

// highlightCode applies chroma highlighting for a terminal. It returns code
// unchanged when tokenising fails.
func highlightCode(code, language string, dark bool) string {
	lexer := lexers.Get(language)
	if lexer == nil {
		lexer = lexers.Analyse(code)
	}
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	styleName := "monokai"
	if !dark {
		styleName = "github"
	}
	style := chromaStyles.Get(styleName)
	if style == nil {
		style = chromaStyles.Fallback
	}

	formatter := formatters.Get("terminal256")
	if formatter == nil {
		formatter = formatters.Fallback
	}

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return code
	}

	var buf strings.Builder
	if err := formatter.Format(&buf, style, iterator); err != nil {
		return code
	}
	return strings.TrimSuffix(buf.String(), "\n")
}
