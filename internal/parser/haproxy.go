package parser

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// HAProxy HTTP log format:
//
//	<client_ip>:<client_port> [<accept_date>] <frontend> <backend>/<server>
//	<Tq>/<Tw>/<Tc>/<Tr>/<Tt> <status> <bytes_read> ... "<http_request>"
//
// e.g. 192.168.1.100:54321 [01/Jan/2024:12:00:00.000] fe be/srv1 0/0/0/12/12 200 1234 - - ---- 1/1/0/0/0 0/0 "GET /api/test HTTP/1.1"
var haproxyLine = regexp.MustCompile(
	`^(?P<client_ip>\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}):(?P<client_port>\d+)\s+` +
		`\[(?P<timestamp>[^\]]+)\]\s+` +
		`(?P<frontend>\S+)\s+` +
		`(?P<backend>\S+)/(?P<server>\S+)\s+` +
		`(?P<tq>-?\d+)/(?P<tw>-?\d+)/(?P<tc>-?\d+)/(?P<tr>-?\d+)/(?P<tt>\d+)\s+` +
		`(?P<status>\d+)\s+` +
		`(?P<bytes_read>\d+)\s+` +
		`.*?` +
		`"(?P<http_request>[^"]*)"`)

const haproxyTimeLayout = "02/Jan/2006:15:04:05"

func parseHAProxyLine(line string, now time.Time) (*Event, bool) {
	line = strings.TrimSpace(line)

	m := haproxyLine.FindStringSubmatch(line)
	if m == nil {
		return nil, false
	}
	fields := namedGroups(haproxyLine, m)

	method, path := splitRequestLine(fields["http_request"])

	// accept_date carries milliseconds we drop.
	ts := now
	stamp, _, _ := strings.Cut(fields["timestamp"], ".")
	if parsed, err := time.Parse(haproxyTimeLayout, stamp); err == nil {
		ts = parsed
	}

	port, _ := strconv.Atoi(fields["client_port"])
	status, _ := strconv.Atoi(fields["status"])
	bytesRead, _ := strconv.ParseInt(fields["bytes_read"], 10, 64)

	action, severity := httpActionSeverity(status)

	timingInt := func(name string) int {
		v, _ := strconv.Atoi(fields[name])
		return v
	}

	return &Event{
		SourceType: SourceHAProxy,
		SourceHost: fields["server"],
		Timestamp:  ts,
		SrcIP:      fields["client_ip"],
		SrcPort:    port,
		Method:     method,
		Path:       path,
		StatusCode: status,
		BytesSent:  bytesRead,
		Action:     action,
		Severity:   severity,
		RawLog:     line,
		Metadata: map[string]interface{}{
			"frontend": fields["frontend"],
			"backend":  fields["backend"],
			"timings": map[string]interface{}{
				"tq": timingInt("tq"),
				"tw": timingInt("tw"),
				"tc": timingInt("tc"),
				"tr": timingInt("tr"),
				"tt": timingInt("tt"),
			},
		},
	}, true
}
