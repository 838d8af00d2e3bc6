package protocol

import (
	"bytes"
	"fmt"

	"github.com/roach88/persontime/event"
	"github.com/roach88/persontime/expose"
	"github.com/roach88/persontime/merge"
	"github.com/roach88/persontime/timeline"
)

// Protocol is a compiled study protocol: a named set of stage
// configurations, each nil when the protocol does not declare it.
type Protocol struct {
	Name     string
	Exposure *expose.Spec
	Merge    *merge.Spec
	Event    *event.Spec
}

// Fingerprint returns the domain-separated content hash covering the name
// and every declared stage. Two protocols producing the same stage specs
// under the same name hash identically regardless of CUE formatting.
func (p *Protocol) Fingerprint() string {
	var b bytes.Buffer
	fmt.Fprintf(&b, "protocol=%s\n", p.Name)
	if p.Exposure != nil {
		fmt.Fprintf(&b, "exposure=%s\n", p.Exposure.Fingerprint())
	}
	if p.Merge != nil {
		fmt.Fprintf(&b, "merge=%s\n", p.Merge.Fingerprint())
	}
	if p.Event != nil {
		fmt.Fprintf(&b, "event=%s\n", p.Event.Fingerprint())
	}
	return timeline.Fingerprint(timeline.DomainSpec, b.Bytes())
}
