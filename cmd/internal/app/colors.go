package app

import (
	"log/slog"
	"regexp"
	"strconv"
)

const (
	ansiReset   = "\x1b[0m"
	ansiBright  = "\x1b[1m"
	ansiDim     = "\x1b[2m"
	ansiRed     = "\x1b[31m"
	ansiGreen   = "\x1b[32m"
	ansiYellow  = "\x1b[33m"
	ansiBlue    = "\x1b[34m"
	ansiMagenta = "\x1b[35m"
	ansiCyan    = "\x1b[36m"
)

var ansiRe = regexp.MustCompile(`\x1b\[[0-9;]*m`)

func stripANSI(s string) string { return ansiRe.ReplaceAllString(s, "") }

func paint(s, color string, on bool) string {
	if !on {
		return s
	}
	return color + s + ansiReset
}

func colorizeHTTPMethod(m string, on bool) string {
	switch m {
	case "GET", "HEAD":
		return paint(m, ansiBlue, on)
	case "POST":
		return paint(m, ansiGreen, on)
	case "PUT", "PATCH":
		return paint(m, ansiYellow, on)
	case "DELETE":
		return paint(m, ansiRed, on)
	default:
		return paint(m, ansiMagenta, on)
	}
}

func colorizeStatusCode(code int, on bool) string {
	return paint(strconv.Itoa(code), statusColor(code), on)
}

func colorizeStatusClass(class string, on bool) string {
	if len(class) == 3 && class[1:] == "xx" {
		return paint(class, statusColor(int(class[0]-'0')*100), on)
	}
	return class
}

func statusColor(code int) string {
	switch {
	case code >= 500:
		return ansiRed
	case code >= 400:
		return ansiYellow
	case code >= 300:
		return ansiCyan
	default:
		return ansiGreen
	}
}

func colorizeDurationMS(ms int64, on bool) string {
	s := strconv.FormatInt(ms, 10) + "ms"
	switch {
	case ms >= 1000:
		return paint(s, ansiRed, on)
	case ms >= 250:
		return paint(s, ansiYellow, on)
	default:
		return paint(s, ansiDim, on)
	}
}

func colorizeResult(result string, on bool) string {
	switch result {
	case "success", "ok":
		return paint(result, ansiGreen, on)
	case "redirect":
		return paint(result, ansiCyan, on)
	case "client_error", "rejected":
		return paint(result, ansiYellow, on)
	case "server_error", "error":
		return paint(result, ansiRed, on)
	default:
		return result
	}
}

func valueToInt64(v slog.Value) (int64, bool) {
	switch v.Kind() {
	case slog.KindInt64:
		return v.Int64(), true
	case slog.KindUint64:
		return int64(v.Uint64()), true
	case slog.KindFloat64:
		return int64(v.Float64()), true
	case slog.KindString:
		n, err := strconv.ParseInt(v.String(), 10, 64)
		return n, err == nil
	default:
		return 0, false
	}
}
