package motor

import "github.com/rs/zerolog"

// LogReporter writes one human-readable line per telemetry outcome.
type LogReporter struct {
	Logger zerolog.Logger
}

func (r LogReporter) Report(s Sample) {
	r.Logger.Info().
		Int8("mode", s.Mode).
		Msgf("Velocity: %.3f rps, I term: %.3f Nm", s.Velocity, s.GainTerm)
}

func (r LogReporter) NoResponse() {
	r.Logger.Warn().Msg("no response")
}

func (r LogReporter) Malformed(err error) {
	r.Logger.Warn().Err(err).Msg("malformed reply")
}
