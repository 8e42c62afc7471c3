package database

import (
	"encoding/json"
	"fmt"
	"strings"

	"gorm.io/datatypes"
)

// documentNode is one node of the rich-text tree stored by pre-markdown posts.
type documentNode struct {
	Type    string         `json:"type"`
	Text    string         `json:"text"`
	Attrs   map[string]any `json:"attrs"`
	Content []documentNode `json:"content"`
}

// LegacyContentToMarkdown converts the pre-markdown content column to
// markdown. The column may hold a JSON string, a document tree, or plain text.
func LegacyContentToMarkdown(raw datatypes.JSON) string {
	if len(raw) == 0 {
		return ""
	}

	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		return asString
	}

	if !json.Valid(raw) {
		return string(raw)
	}

	var root documentNode
	if err := json.Unmarshal(raw, &root); err != nil || root.Content == nil {
		return ""
	}
	return strings.TrimSpace(renderChildren(root.Content))
}

// encodeLegacyContent prepares markdown for a legacy content column.
func encodeLegacyContent(markdown string, isJSON bool) any {
	if !isJSON {
		return markdown
	}
	// Marshal cannot fail for a plain string.
	encoded, _ := json.Marshal(markdown)
	return datatypes.JSON(encoded)
}

func renderChildren(nodes []documentNode) string {
	var b strings.Builder
	for _, n := range nodes {
		b.WriteString(renderNode(n))
	}
	return b.String()
}

func renderNode(n documentNode) string {
	switch n.Type {
	case "text":
		return n.Text
	case "hardBreak":
		return "\n"
	case "paragraph":
		text := renderChildren(n.Content)
		if strings.TrimSpace(text) == "" {
			return "\n"
		}
		return text + "\n\n"
	case "heading":
		level := min(max(intAttr(n.Attrs, "level", 1), 1), 6)
		return strings.Repeat("#", level) + " " + renderChildren(n.Content) + "\n\n"
	case "blockquote":
		text := strings.TrimSpace(renderChildren(n.Content))
		if text == "" {
			return ""
		}
		lines := strings.Split(text, "\n")
		for i, line := range lines {
			if line == "" {
				lines[i] = ">"
			} else {
				lines[i] = "> " + line
			}
		}
		return strings.Join(lines, "\n") + "\n\n"
	case "bulletList", "orderedList":
		items := make([]string, 0, len(n.Content))
		for i, child := range n.Content {
			marker := "-"
			if n.Type == "orderedList" {
				marker = fmt.Sprintf("%d.", i+1)
			}
			items = append(items, marker+" "+strings.TrimSpace(renderChildren(child.Content)))
		}
		if len(items) == 0 {
			return ""
		}
		return strings.Join(items, "\n") + "\n\n"
	case "codeBlock":
		language := strings.TrimSpace(stringAttr(n.Attrs, "language"))
		return "```" + language + "\n" + renderChildren(n.Content) + "\n```\n\n"
	case "image":
		src := strings.TrimSpace(stringAttr(n.Attrs, "src"))
		if src == "" {
			return ""
		}
		out := "@[image](" + src + ")"
		if alt := strings.TrimSpace(stringAttr(n.Attrs, "alt")); alt != "" {
			out += `{alt="` + alt + `"}`
		}
		return out + "\n\n"
	default:
		return renderChildren(n.Content)
	}
}

func stringAttr(attrs map[string]any, key string) string {
	v, ok := attrs[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

func intAttr(attrs map[string]any, key string, fallback int) int {
	switch v := attrs[key].(type) {
	case float64:
		return int(v)
	case string:
		var n int
		if _, err := fmt.Sscanf(v, "%d", &n); err == nil {
			return n
		}
	}
	return fallback
}
