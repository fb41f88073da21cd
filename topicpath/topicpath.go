// Package topicpath provides the topic-path collaborator the session engine
// validates PUBLISH destinations and SUBSCRIBE/UNSUBSCRIBE filters against.
package topicpath

import (
	"errors"
	"strings"
)

// ErrWildcardInTopicName is returned by ToTopicName when s contains a
// wildcard character, which is only legal in a subscription filter.
var ErrWildcardInTopicName = errors.New("topicpath: topic name must not contain wildcard")

// TopicName is a PUBLISH destination: a concrete topic with no wildcards.
type TopicName string

// Path returns the topic as a plain string.
func (t TopicName) Path() string { return string(t) }

// TopicPath is a SUBSCRIBE/UNSUBSCRIBE filter: wildcards (+ and #) allowed.
type TopicPath string

// Path returns the filter as a plain string.
func (t TopicPath) Path() string { return string(t) }

// ToTopicName validates s as a PUBLISH destination: free of the '+' and '#'
// wildcard characters. An empty string is accepted.
func ToTopicName(s string) (TopicName, error) {
	if strings.ContainsAny(s, "+#") {
		return "", ErrWildcardInTopicName
	}
	return TopicName(s), nil
}

// ToTopicPath builds a subscription filter. Wildcards are always legal here,
// and s is not validated at all (an empty string is accepted too).
func ToTopicPath(s string) TopicPath {
	return TopicPath(s)
}
