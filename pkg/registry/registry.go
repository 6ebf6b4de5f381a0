// Package registry holds the wire formats spoken with the Docker registry:
// the notification envelope delivered to the webhook endpoint and the
// authorization scope grammar of the token protocol.
package registry

import "strings"

// Notification is the event envelope POSTed by the registry. Only the
// fields this service consumes are mapped; the envelope carries more
// (actor, request, source) which is ignored.
type Notification struct {
	Events []Event `json:"events"`
}

type Event struct {
	Id        string  `json:"id"`
	Timestamp string  `json:"timestamp"`
	Action    string  `json:"action"`
	Target    *Target `json:"target"`
}

type Target struct {
	Repository string `json:"repository"`
	Digest     string `json:"digest"`
	Tag        string `json:"tag"`
	Length     int64  `json:"length"`
}

// IsPush reports whether the event describes a push. Registries are not
// consistent about the action string ("push", "manifest.push", ...), so the
// match is a case-insensitive substring check.
func (e Event) IsPush() bool {
	action := strings.ToLower(e.Action)
	return strings.Contains(action, "push") || strings.Contains(action, "manifest")
}

func (e Event) HasTag() bool {
	return e.Target != nil && strings.TrimSpace(e.Target.Tag) != ""
}

func (e Event) HasDigest() bool {
	return e.Target != nil && strings.TrimSpace(e.Target.Digest) != ""
}

// IsTagPush reports whether the event is a complete, applicable tag push:
// a push-like action addressing a repository with both tag and digest set.
// Anything else is dropped by the sync path.
func (e Event) IsTagPush() bool {
	return e.Target != nil && e.Target.Repository != "" && e.IsPush() && e.HasTag() && e.HasDigest()
}
