package sender

// MaxMessageLength is the Bot API limit for a single message text.
const MaxMessageLength = 4096

// SplitText breaks text into segments not exceeding limit characters.
// When a segment would be cut mid-text, the break falls on the last line
// boundary within the window, else the last space, else a hard cut. The
// boundary character itself is consumed, not carried into the next segment.
func SplitText(text string, limit int) []string {
	if limit <= 0 {
		limit = MaxMessageLength
	}
	runes := []rune(text)
	if len(runes) <= limit {
		return []string{text}
	}

	var segments []string
	index := 0
	for index < len(runes) {
		end := index + limit
		if end > len(runes) {
			end = len(runes)
		}
		window := runes[index:end]

		skip := 0
		if len(window) == limit {
			cut := lastIndexRune(window, '\n')
			if cut == -1 {
				cut = lastIndexRune(window, ' ')
			}
			if cut != -1 {
				window = window[:cut]
				skip = 1
			}
		}

		if len(window) > 0 {
			segments = append(segments, string(window))
		}
		index += len(window) + skip
	}
	return segments
}

func lastIndexRune(runes []rune, r rune) int {
	for i := len(runes) - 1; i >= 0; i-- {
		if runes[i] == r {
			return i
		}
	}
	return -1
}
