package parser

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Fail2ban action lines come in several shapes depending on version and
// configuration:
//
//	2024-01-01 12:00:00,123 fail2ban.actions [1234]: NOTICE [sshd] Ban 192.168.1.100
//	[sshd] Ban 192.168.1.100
//	2024-01-01 12:00:00 fail2ban.actions: [nginx] Ban 192.168.1.100 (duration: 3600s)
//
// Matching is case-insensitive; anything that is not a ban/unban action
// is not a security event and is dropped.
var (
	fail2banFull = regexp.MustCompile(
		`(?i)^(?P<timestamp>\d{4}-\d{2}-\d{2}\s+\d{2}:\d{2}:\d{2})[,\s]+.*?` +
			`\[(?P<jail>[^\]]+)\]\s+` +
			`(?P<action>ban|unban)\s+` +
			`(?P<ip>\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3})`)

	fail2banShort = regexp.MustCompile(
		`(?i)^\[(?P<jail>[^\]]+)\]\s+` +
			`(?P<action>ban|unban)\s+` +
			`(?P<ip>\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3})`)

	// Stripped-down lines like "2024-01-01 Ban 203.0.113.5" carry no
	// jail and sometimes only a date.
	fail2banBare = regexp.MustCompile(
		`(?i)^(?:(?P<timestamp>\d{4}-\d{2}-\d{2}(?:\s+\d{2}:\d{2}:\d{2})?)\s+)?` +
			`(?P<action>ban|unban)\s+` +
			`(?P<ip>\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3})`)

	fail2banDuration = regexp.MustCompile(`duration:\s*(\d+)s`)
)

const (
	fail2banTimeLayout = "2006-01-02 15:04:05"
	fail2banDateLayout = "2006-01-02"
)

// jailNames maps common jails to descriptive reasons.
var jailNames = map[string]string{
	"sshd":            "SSH Brute Force",
	"nginx-limit-req": "Nginx Rate Limit",
	"nginx-botsearch": "Nginx Bot Search",
	"apache-auth":     "Apache Authentication",
	"dovecot":         "Dovecot Mail",
	"postfix":         "Postfix SMTP",
}

func parseFail2banLine(line string, now time.Time) (*Event, bool) {
	line = strings.TrimSpace(line)

	re := fail2banFull
	m := re.FindStringSubmatch(line)
	if m == nil {
		re = fail2banShort
		m = re.FindStringSubmatch(line)
	}
	if m == nil {
		re = fail2banBare
		m = re.FindStringSubmatch(line)
	}
	if m == nil {
		return nil, false
	}
	fields := namedGroups(re, m)

	ts := now
	if stamp := fields["timestamp"]; stamp != "" {
		if parsed, err := time.Parse(fail2banTimeLayout, stamp); err == nil {
			ts = parsed
		} else if parsed, err := time.Parse(fail2banDateLayout, stamp); err == nil {
			ts = parsed
		}
	}

	rawAction := strings.ToLower(fields["action"])
	action, severity := "ban", "high"
	if rawAction == "unban" {
		action, severity = "allow", "low"
	}

	jail := fields["jail"]
	reason := "Fail2ban"
	if jail != "" {
		var ok bool
		if reason, ok = jailNames[jail]; !ok {
			reason = "Fail2ban: " + jail
		}
	}

	meta := map[string]interface{}{
		"jail":            jail,
		"fail2ban_action": rawAction,
	}
	if dm := fail2banDuration.FindStringSubmatch(line); dm != nil {
		seconds, _ := strconv.Atoi(dm[1])
		meta["duration_seconds"] = seconds
	}

	return &Event{
		SourceType: SourceFail2ban,
		Timestamp:  ts,
		SrcIP:      fields["ip"],
		Action:     action,
		Severity:   severity,
		Reason:     reason,
		RawLog:     line,
		Metadata:   meta,
	}, true
}
