package parser

import (
	"strings"
	"time"

	json "github.com/goccy/go-json"
)

// crowdsecActions maps decision types to canonical actions. Unknown
// types still represent an enforcement decision and fall back to deny.
var crowdsecActions = map[string]string{
	"ban":      "ban",
	"captcha":  "challenge",
	"throttle": "rate_limit",
}

// parseCrowdSec handles the three body shapes CrowdSec bouncers send: a
// single decision object, a bare array of decisions, or an envelope
// {"decisions": [...], "server_name": "..."}.
func (r *Registry) parseCrowdSec(body []byte) (*Output, error) {
	var decisions []map[string]interface{}
	host := ""

	var raw interface{}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, ErrMalformed
	}

	switch v := raw.(type) {
	case []interface{}:
		for _, item := range v {
			if d, ok := item.(map[string]interface{}); ok {
				decisions = append(decisions, d)
			}
		}
	case map[string]interface{}:
		if s, ok := v["server_name"].(string); ok {
			host = s
		}
		if list, ok := v["decisions"].([]interface{}); ok {
			for _, item := range list {
				if d, ok := item.(map[string]interface{}); ok {
					decisions = append(decisions, d)
				}
			}
		} else {
			decisions = append(decisions, v)
		}
	default:
		return nil, ErrMalformed
	}

	out := &Output{Source: SourceCrowdSec}
	now := r.now()
	for _, decision := range decisions {
		ev, ok := parseCrowdSecDecision(decision, now)
		if !ok {
			continue
		}
		if host != "" {
			ev.SourceHost = host
		}
		out.Events = append(out.Events, *ev)
	}
	return out, nil
}

// parseCrowdSecDecision converts one decision object. Objects without
// the value/type pair are not actionable and are dropped.
func parseCrowdSecDecision(decision map[string]interface{}, now time.Time) (*Event, bool) {
	srcIP, _ := decision["value"].(string)
	decisionType, _ := decision["type"].(string)
	if srcIP == "" || decisionType == "" {
		return nil, false
	}

	action, ok := crowdsecActions[strings.ToLower(decisionType)]
	if !ok {
		action = "deny"
	}

	scenario, _ := decision["scenario"].(string)
	severity := crowdsecSeverity(scenario)

	reason := scenario
	if reason == "" {
		reason = "Unknown scenario"
	}

	origin, _ := decision["origin"].(string)
	host := origin
	if host == "" {
		host = "crowdsec"
	}

	rawLog, err := json.Marshal(decision)
	if err != nil {
		return nil, false
	}

	duration, _ := decision["duration"].(string)
	scope, _ := decision["scope"].(string)
	if scope == "" {
		scope = "Ip"
	}

	return &Event{
		SourceType: SourceCrowdSec,
		SourceHost: host,
		// Decisions do not reliably carry a timestamp.
		Timestamp: now,
		SrcIP:     srcIP,
		Action:    action,
		Severity:  severity,
		Reason:    reason,
		RawLog:    string(rawLog),
		Metadata: map[string]interface{}{
			"decision_id": decision["id"],
			"duration":    duration,
			"scope":       scope,
			"scenario":    scenario,
			"origin":      origin,
		},
	}, true
}

func crowdsecSeverity(scenario string) string {
	s := strings.ToLower(scenario)
	switch {
	case strings.Contains(s, "exploit") || strings.Contains(s, "cve"):
		return "critical"
	case strings.Contains(s, "attack") || strings.Contains(s, "scan"):
		return "high"
	default:
		return "medium"
	}
}
