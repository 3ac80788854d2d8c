package app

import "quizcast-service/internal/protocol"

// broadcastLocked serializes msg once and writes the same bytes to every
// registered handle in registration order. A failed write is logged and
// isolated to that participant; removal is driven only by the connection
// layer's own close notification, never by delivery failure here.
func (s *Session) broadcastLocked(msg protocol.Outbound) {
	data, err := protocol.Encode(msg)
	if err != nil {
		s.log.Error().Err(err).Msg("encode broadcast")
		return
	}
	for _, p := range s.reg.all() {
		if err := p.handle.Send(data); err != nil {
			s.log.Warn().
				Err(err).
				Str("participant", p.id.String()).
				Str("name", p.displayName).
				Msg("broadcast delivery failed")
		}
	}
}

// unicastLocked sends msg to a single participant, with the same failure
// isolation as broadcast.
func (s *Session) unicastLocked(p *participant, msg protocol.Outbound) {
	data, err := protocol.Encode(msg)
	if err != nil {
		s.log.Error().Err(err).Msg("encode unicast")
		return
	}
	if err := p.handle.Send(data); err != nil {
		s.log.Warn().
			Err(err).
			Str("participant", p.id.String()).
			Str("name", p.displayName).
			Msg("unicast delivery failed")
	}
}
