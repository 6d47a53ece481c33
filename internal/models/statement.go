// Cursus - Learner Activity Analytics and Safety Monitoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cursus

package models

import (
	"strings"
	"time"

	json "github.com/goccy/go-json"
)

// RawStatement is the wire shape of an xAPI-style learner activity statement
// as delivered on the queue. Fields not listed here survive in the raw
// payload, which is stored verbatim alongside the normalized row.
type RawStatement struct {
	ID        string      `json:"id"`
	Actor     RawActor    `json:"actor"`
	Verb      RawVerb     `json:"verb"`
	Object    RawObject   `json:"object"`
	Result    *RawResult  `json:"result,omitempty"`
	Context   *RawContext `json:"context,omitempty"`
	Timestamp string      `json:"timestamp,omitempty"`
}

// RawActor is the heterogeneous actor block. Exactly one of Mbox, Account,
// or OpenID is expected to be set.
type RawActor struct {
	Name    string      `json:"name,omitempty"`
	Mbox    string      `json:"mbox,omitempty"`
	OpenID  string      `json:"openid,omitempty"`
	Account *RawAccount `json:"account,omitempty"`
}

type RawAccount struct {
	HomePage string `json:"homePage"`
	Name     string `json:"name"`
}

type RawVerb struct {
	ID      string            `json:"id"`
	Display map[string]string `json:"display,omitempty"`
}

type RawObject struct {
	ID         string         `json:"id"`
	Definition *RawDefinition `json:"definition,omitempty"`
}

type RawDefinition struct {
	Name        map[string]string `json:"name,omitempty"`
	Description map[string]string `json:"description,omitempty"`
}

type RawResult struct {
	Score      *RawScore `json:"score,omitempty"`
	Success    *bool     `json:"success,omitempty"`
	Completion *bool     `json:"completion,omitempty"`
	Response   string    `json:"response,omitempty"`
}

type RawScore struct {
	Scaled *float64 `json:"scaled,omitempty"`
	Raw    *float64 `json:"raw,omitempty"`
}

type RawContext struct {
	Platform     string    `json:"platform,omitempty"`
	Language     string    `json:"language,omitempty"`
	Registration string    `json:"registration,omitempty"`
	Team         *RawGroup `json:"team,omitempty"`
	Group        *RawGroup `json:"group,omitempty"`
}

type RawGroup struct {
	Name string `json:"name,omitempty"`
}

// DisplayName returns the verb display string, preferring "en-US" then "en",
// then any available language.
func (v RawVerb) DisplayName() string {
	if v.Display == nil {
		return ""
	}
	if s, ok := v.Display["en-US"]; ok {
		return s
	}
	if s, ok := v.Display["en"]; ok {
		return s
	}
	for _, s := range v.Display {
		return s
	}
	return ""
}

// ObjectName returns the object definition name with the same language
// preference as DisplayName.
func (o RawObject) ObjectName() string {
	if o.Definition == nil || o.Definition.Name == nil {
		return ""
	}
	if s, ok := o.Definition.Name["en-US"]; ok {
		return s
	}
	if s, ok := o.Definition.Name["en"]; ok {
		return s
	}
	for _, s := range o.Definition.Name {
		return s
	}
	return ""
}

// Statement is the normalized, identity-enriched warehouse row for one
// learner activity event. Immutable once written.
type Statement struct {
	StatementID  string          `json:"statement_id"`
	ActorID      string          `json:"actor_id"`
	ActorName    string          `json:"actor_name,omitempty"`
	ActorEmail   string          `json:"actor_email,omitempty"`
	VerbID       string          `json:"verb_id"`
	VerbDisplay  string          `json:"verb_display,omitempty"`
	ObjectID     string          `json:"object_id"`
	ObjectName   string          `json:"object_name,omitempty"`
	ScoreScaled  *float64        `json:"score_scaled,omitempty"`
	ScoreRaw     *float64        `json:"score_raw,omitempty"`
	Success      *bool           `json:"success,omitempty"`
	Completion   *bool           `json:"completion,omitempty"`
	Response     string          `json:"response,omitempty"`
	Platform     string          `json:"platform,omitempty"`
	Language     string          `json:"language,omitempty"`
	Registration string          `json:"registration,omitempty"`
	Team         string          `json:"team,omitempty"`
	Group        string          `json:"group,omitempty"`
	CohortID     string          `json:"cohort_id,omitempty"`
	Source       string          `json:"source"` // "xapi", "csv", "historical"
	Timestamp    time.Time       `json:"timestamp"`
	RawPayload   json.RawMessage `json:"raw_payload,omitempty"`
}

// SearchBlob concatenates every text-bearing field of the statement plus the
// raw payload into a single lowercase string for keyword matching. False
// positives are acceptable here; false negatives are not.
func (s *Statement) SearchBlob() string {
	var b strings.Builder
	b.Grow(len(s.RawPayload) + 128)
	for _, part := range []string{
		s.ActorName, s.ActorEmail, s.VerbDisplay, s.ObjectName,
		s.Response, s.Platform, s.Team, s.Group,
	} {
		if part != "" {
			b.WriteString(part)
			b.WriteByte(' ')
		}
	}
	b.Write(s.RawPayload)
	return strings.ToLower(b.String())
}
