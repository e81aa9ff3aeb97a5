// Package allowlist holds the fixed set of media hosts the proxy may fetch from.
package allowlist

import "strings"

// Default is the set of Twitter media hosts served by the proxy.
var Default = New(
	"pbs.twimg.com",
	"abs.twimg.com",
	"ton.twimg.com",
	"video.twimg.com",
)

// Set is an immutable host allowlist. Membership is an exact, case-sensitive
// string match on the hostname (no port, no suffix matching).
type Set struct {
	hosts []string
	index map[string]struct{}
}

// New builds a Set from hosts, keeping their order for display and dropping duplicates.
func New(hosts ...string) Set {
	s := Set{index: make(map[string]struct{}, len(hosts))}
	for _, h := range hosts {
		if _, dup := s.index[h]; dup || h == "" {
			continue
		}
		s.index[h] = struct{}{}
		s.hosts = append(s.hosts, h)
	}
	return s
}

// Allows reports whether host is a member of the set.
func (s Set) Allows(host string) bool {
	_, ok := s.index[host]
	return ok
}

// Hosts returns a copy of the allowed hosts in declaration order.
func (s Set) Hosts() []string {
	out := make([]string, len(s.hosts))
	copy(out, s.hosts)
	return out
}

// Len returns the number of allowed hosts.
func (s Set) Len() int {
	return len(s.hosts)
}

// String joins the hosts with ", ".
func (s Set) String() string {
	return strings.Join(s.hosts, ", ")
}
