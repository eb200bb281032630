package provider

import "strings"

const (
	thinkOpen  = "<think>\n"
	thinkClose = "</think>\n\n"
)

// ExtractThinking splits a completion that opens with a <think> block into
// its thinking and final answer. The split happens at the last closing tag.
// Content without the block comes back unchanged with nil thinking.
func ExtractThinking(content string) (thinking *string, value string) {
	if !strings.HasPrefix(content, thinkOpen) {
		return nil, content
	}
	pos := strings.LastIndex(content, thinkClose)
	if pos < len(thinkOpen) {
		return nil, content
	}
	t := content[len(thinkOpen):pos]
	return &t, content[pos+len(thinkClose):]
}
