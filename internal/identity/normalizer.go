// Cursus - Learner Activity Analytics and Safety Monitoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cursus

package identity

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	json "github.com/goccy/go-json"

	"github.com/tomtom215/cursus/internal/models"
)

// Source identifiers recorded on merged profiles.
const (
	SourceXAPI = "xapi"
	SourceCSV  = "csv"
)

// Normalizer extracts canonical user identities from raw actors and
// import rows. Safe for concurrent use.
type Normalizer struct {
	validate *validator.Validate
}

// NewNormalizer creates a Normalizer.
func NewNormalizer() *Normalizer {
	return &Normalizer{
		validate: validator.New(),
	}
}

// Normalize extracts a UserProfile fragment from a raw actor block.
// Identifier precedence: mbox, then account, then openid. The fragment
// carries ActivityCount=1 and both seen timestamps set to now so it can be
// merged directly into an existing profile.
func (n *Normalizer) Normalize(actor models.RawActor) models.UserProfile {
	now := time.Now().UTC()
	profile := models.UserProfile{
		Name:          strings.TrimSpace(actor.Name),
		Sources:       []string{SourceXAPI},
		FirstSeen:     now,
		LastSeen:      now,
		ActivityCount: 1,
	}

	switch {
	case actor.Mbox != "":
		email := n.NormalizeEmail(actor.Mbox)
		profile.UserID = email
		profile.Email = email
	case actor.Account != nil:
		profile.UserID = actor.Account.HomePage + "::" + actor.Account.Name
		if profile.Name == "" {
			profile.Name = actor.Account.Name
		}
	case actor.OpenID != "":
		profile.UserID = actor.OpenID
	}

	return profile
}

// NormalizeEmail lowercases, trims, and strips the mailto: scheme from a
// mailbox identifier. A value that still fails format validation after that
// is not an email at all; it is returned trimmed but otherwise untouched,
// so opaque identifiers smuggled through the mbox field keep their exact
// form as the key.
func (n *Normalizer) NormalizeEmail(mbox string) string {
	raw := strings.TrimSpace(mbox)
	email := strings.TrimPrefix(strings.ToLower(raw), "mailto:")
	if err := n.validate.Var(email, "email"); err != nil {
		return raw
	}
	return email
}

// Merge folds src into dst additively and returns the result. Neither
// argument is mutated. Rules: earliest first-seen wins, latest last-seen
// wins, activity counts sum, the non-empty or longer name wins, source sets
// union, metadata blobs append.
func Merge(dst, src models.UserProfile) models.UserProfile {
	out := dst

	if out.UserID == "" {
		out.UserID = src.UserID
	}
	if out.Email == "" {
		out.Email = src.Email
	}
	if len(src.Name) > len(out.Name) {
		out.Name = src.Name
	}
	if src.FirstSeen.Before(out.FirstSeen) || out.FirstSeen.IsZero() {
		out.FirstSeen = src.FirstSeen
	}
	if src.LastSeen.After(out.LastSeen) {
		out.LastSeen = src.LastSeen
	}
	if out.Team == "" {
		out.Team = src.Team
	}
	if out.Group == "" {
		out.Group = src.Group
	}
	out.ActivityCount = dst.ActivityCount + src.ActivityCount

	out.Sources = append([]string(nil), dst.Sources...)
	for _, s := range src.Sources {
		if !containsString(out.Sources, s) {
			out.Sources = append(out.Sources, s)
		}
	}

	out.Metadata = append(append([]json.RawMessage(nil), dst.Metadata...), src.Metadata...)

	return out
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
