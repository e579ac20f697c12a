package transport

import (
	"strings"

	"github.com/pion/ice/v4"
	"github.com/pion/sdp/v3"
)

// Census summarizes the candidates embedded in an SDP body.
type Census struct {
	Total    int
	MDNS     int            // host candidates with a .local address
	Routable int            // candidates with a concrete IP address
	ByType   map[string]int // host, srflx, prflx, relay
}

// MDNSOnly reports whether every candidate needs mDNS resolution. Remote
// peers that cannot resolve .local names will be unreachable.
func (c Census) MDNSOnly() bool {
	return c.MDNS > 0 && c.Routable == 0
}

// CountCandidates inspects the a=candidate lines of an SDP body. Bodies that
// do not parse as SDP are scanned line by line instead.
func CountCandidates(body string) Census {
	c := Census{ByType: make(map[string]int)}

	var desc sdp.SessionDescription
	if err := desc.Unmarshal([]byte(body)); err != nil {
		for _, line := range strings.Split(body, "\n") {
			line = strings.TrimSpace(line)
			if strings.HasPrefix(line, "a=candidate:") {
				c.add(strings.TrimPrefix(line, "a="))
			}
		}
		return c
	}

	for _, attr := range desc.Attributes {
		if attr.Key == sdp.AttrKeyCandidate {
			c.add(attr.Value)
		}
	}
	for _, media := range desc.MediaDescriptions {
		for _, attr := range media.Attributes {
			if attr.Key == sdp.AttrKeyCandidate {
				c.add(attr.Value)
			}
		}
	}
	return c
}

func (c *Census) add(value string) {
	c.Total++

	cand, err := ice.UnmarshalCandidate(value)
	if err != nil {
		if strings.Contains(value, ".local") {
			c.MDNS++
		} else {
			c.Routable++
		}
		return
	}

	c.ByType[cand.Type().String()]++
	if strings.HasSuffix(cand.Address(), ".local") {
		c.MDNS++
	} else {
		c.Routable++
	}
}
