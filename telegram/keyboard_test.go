package telegram

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReplyButtonsLayout(t *testing.T) {
	markup := ReplyButtons([]string{"Add"}, []string{"Statistics"})
	require.True(t, markup.ResizeKeyboard)
	require.Len(t, markup.ReplyKeyboard, 2)
	require.Equal(t, "Add", markup.ReplyKeyboard[0][0].Text)
	require.Equal(t, "Statistics", markup.ReplyKeyboard[1][0].Text)
}

func TestOneTimeReplyButtons(t *testing.T) {
	markup := OneTimeReplyButtons("pick one", []string{"Yes", "No"})
	require.True(t, markup.OneTimeKeyboard)
	require.Equal(t, "pick one", markup.Placeholder)
	require.Len(t, markup.ReplyKeyboard, 1)
	require.Len(t, markup.ReplyKeyboard[0], 2)
}

func TestChunkLabels(t *testing.T) {
	rows := ChunkLabels([]string{"a", "b", "c", "d", "e"}, 2)
	require.Equal(t, [][]string{{"a", "b"}, {"c", "d"}, {"e"}}, rows)

	rows = ChunkLabels([]string{"a", "b"}, 1)
	require.Equal(t, [][]string{{"a"}, {"b"}}, rows)

	require.Empty(t, ChunkLabels(nil, 2))
}
