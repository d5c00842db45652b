package flow

import "strings"

// conversation is the decoded form of a persisted dialogue state. The wire
// format is pipe-delimited: the flow name first, then the answers collected
// so far. A state that waits for the next answer ends with an empty trailing
// segment ("add|date|"), so the incoming text lands in its own token.
type conversation struct {
	kind string
	args []string
}

// parseConversation decodes a stored state string. Returns false for an
// empty string, which means no dialogue is active.
func parseConversation(state string) (conversation, bool) {
	if state == "" {
		return conversation{}, false
	}
	tokens := strings.Split(state, "|")
	return conversation{kind: tokens[0], args: tokens[1:]}, true
}

func (c conversation) encode() string {
	if len(c.args) == 0 {
		return c.kind
	}
	return c.kind + "|" + strings.Join(c.args, "|")
}

// hold returns the encoded state with an open slot for the next answer.
func (c conversation) hold() *string {
	s := c.encode() + "|"
	return &s
}

// tokens returns the flat token view: kind followed by args.
func (c conversation) tokens() []string {
	return append([]string{c.kind}, c.args...)
}

// truncated keeps the first n tokens, dropping later answers. Used to
// re-ask a question after a rejected answer.
func (c conversation) truncated(n int) conversation {
	if n <= 1 {
		return conversation{kind: c.kind}
	}
	if n-1 >= len(c.args) {
		return c
	}
	return conversation{kind: c.kind, args: c.args[:n-1]}
}

// withText appends the raw incoming text to the encoded state, the way
// answers accumulate between prompts.
func (c conversation) withText(text string) (conversation, bool) {
	return parseConversation(c.encode() + text)
}
