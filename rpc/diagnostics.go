package rpc

import "github.com/kasvtv/capnp-rpc-engine/rpc/diag"

// Snapshot captures a point-in-time view of c's bookkeeping tables.
// It takes c.mu, so it briefly blocks message dispatch; callers
// driving it on a timer should keep that interval modest.
func (c *Conn) Snapshot(takenUnixNano int64) diag.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := diag.Snapshot{
		TakenUnixNano:     takenUnixNano,
		LocalAddr:         c.localAddr,
		Imports:           len(c.imports),
		Provisions:        len(c.provides),
		ThirdPartyPending: len(c.pendingAwaits) + len(c.pendingAnswers),
	}
	for _, q := range c.questions {
		if q != nil {
			s.Questions++
		}
	}
	for _, a := range c.answers {
		if a != nil {
			s.Answers++
		}
	}
	for _, e := range c.exports {
		if e != nil {
			s.Exports++
		}
	}
	for _, e := range c.embargoes {
		if e != nil {
			s.Embargoes++
		}
	}

	const sampleLimit = 4
	for i, q := range c.questions {
		if len(s.Sample) >= sampleLimit {
			break
		}
		if q == nil {
			continue
		}
		s.Sample = append(s.Sample, diag.Entry{Table: "question", ID: uint32(i)})
	}
	for k, a := range c.answers {
		if len(s.Sample) >= sampleLimit {
			break
		}
		if a != nil {
			s.Sample = append(s.Sample, diag.Entry{Table: "answer", ID: uint32(k)})
		}
	}
	return s
}
