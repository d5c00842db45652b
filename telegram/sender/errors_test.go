package sender

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"
)

func TestClassifyError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"deadline", context.DeadlineExceeded, "timeout"},
		{"dns", &net.DNSError{Err: "no such host"}, "dns"},
		{"dns timeout", &net.DNSError{Err: "timeout", IsTimeout: true}, "timeout"},
		{"dial", &net.OpError{Op: "dial", Err: errors.New("refused")}, "dial"},
		{"url wrapped timeout", &url.Error{Op: "Post", Err: context.DeadlineExceeded}, "timeout"},
		{"api 500", &tele.Error{Code: 502}, "http_5xx"},
		{"api 400", &tele.Error{Code: 404}, "http_4xx"},
		{"flood", tele.FloodError{}, "http_4xx"},
		{"plain", errors.New("weird"), "unknown"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, classifyError(tc.err))
		})
	}
}

func TestSanitizeErrorMessageRedactsToken(t *testing.T) {
	err := fmt.Errorf("Post \"https://api.telegram.org/bot12345:AAefghIJK-lmn_opq/sendMessage\": boom")
	msg := sanitizeErrorMessage(err)
	require.NotContains(t, msg, "12345:AAefghIJK")
	require.Contains(t, msg, "bot<redacted>")
}

func TestSanitizeErrorMessageNil(t *testing.T) {
	require.Empty(t, sanitizeErrorMessage(nil))
}

func TestHTTPStatusFromTrailingCode(t *testing.T) {
	require.Equal(t, 429, httpStatusFromError(errors.New("telegram: retry after 5 (429)")))
	require.Equal(t, 0, httpStatusFromError(errors.New("no code here")))
}
