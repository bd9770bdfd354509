package parser

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Nginx combined log format:
//
//	$remote_addr - $remote_user [$time_local] "$request" $status $body_bytes_sent "$http_referer" "$http_user_agent"
//
// e.g. 192.168.1.100 - - [01/Jan/2024:12:00:00 +0000] "GET /api/test HTTP/1.1" 200 1234 "-" "Mozilla/5.0"
var nginxCombined = regexp.MustCompile(
	`^(?P<remote_addr>\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3})\s+` +
		`-\s+` +
		`(?P<remote_user>\S+)\s+` +
		`\[(?P<time_local>[^\]]+)\]\s+` +
		`"(?P<request>[^"]*)"\s+` +
		`(?P<status>\d+)\s+` +
		`(?P<body_bytes_sent>\d+)\s+` +
		`"(?P<http_referer>[^"]*)"\s+` +
		`"(?P<http_user_agent>[^"]*)"`)

// Common format, without referer and user agent.
var nginxCommon = regexp.MustCompile(
	`^(?P<remote_addr>\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3})\s+` +
		`-\s+` +
		`(?P<remote_user>\S+)\s+` +
		`\[(?P<time_local>[^\]]+)\]\s+` +
		`"(?P<request>[^"]*)"\s+` +
		`(?P<status>\d+)\s+` +
		`(?P<body_bytes_sent>\d+)`)

const nginxTimeLayout = "02/Jan/2006:15:04:05"

func parseNginxLine(line string, now time.Time) (*Event, bool) {
	line = strings.TrimSpace(line)

	re := nginxCombined
	m := re.FindStringSubmatch(line)
	if m == nil {
		re = nginxCommon
		m = re.FindStringSubmatch(line)
	}
	if m == nil {
		return nil, false
	}
	fields := namedGroups(re, m)

	method, path := splitRequestLine(fields["request"])

	// time_local carries a zone offset we drop for simplicity, matching
	// the timestamps agents submit.
	ts := now
	local, _, _ := strings.Cut(fields["time_local"], " ")
	if parsed, err := time.Parse(nginxTimeLayout, local); err == nil {
		ts = parsed
	}

	status, _ := strconv.Atoi(fields["status"])
	bytesSent, _ := strconv.ParseInt(fields["body_bytes_sent"], 10, 64)

	userAgent := dashToEmpty(fields["http_user_agent"])
	referer := dashToEmpty(fields["http_referer"])

	action, severity := httpActionSeverity(status)

	meta := map[string]interface{}{
		"remote_user":  dashToEmpty(fields["remote_user"]),
		"request_full": fields["request"],
	}
	if referer != "" {
		meta["referer"] = referer
	}

	return &Event{
		SourceType: SourceNginx,
		Timestamp:  ts,
		SrcIP:      fields["remote_addr"],
		Method:     method,
		Path:       path,
		StatusCode: status,
		BytesSent:  bytesSent,
		UserAgent:  userAgent,
		Action:     action,
		Severity:   severity,
		RawLog:     line,
		Metadata:   meta,
	}, true
}

// httpActionSeverity derives the canonical action and severity from an
// HTTP status code.
func httpActionSeverity(status int) (string, string) {
	switch {
	case status >= 500:
		return "deny", "high"
	case status == 403:
		return "deny", "medium"
	case status == 429:
		return "rate_limit", "medium"
	case status >= 400:
		return "deny", "low"
	default:
		return "allow", "low"
	}
}

func splitRequestLine(request string) (method, path string) {
	parts := strings.Split(request, " ")
	if len(parts) > 0 {
		method = parts[0]
	}
	if len(parts) > 1 {
		path = parts[1]
	}
	return method, path
}

func dashToEmpty(s string) string {
	if s == "-" {
		return ""
	}
	return s
}

func namedGroups(re *regexp.Regexp, match []string) map[string]string {
	fields := make(map[string]string, len(match))
	for i, name := range re.SubexpNames() {
		if name != "" && i < len(match) {
			fields[name] = match[i]
		}
	}
	return fields
}
