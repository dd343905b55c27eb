package attendance

import "errors"

// Rejection is a user-facing refusal: the request was understood and turned
// down for a stated reason. Rejections are surfaced to the invoker verbatim
// and are never logged as faults or retried. Everything else coming out of
// this package is an infrastructure error and propagates wrapped.
type Rejection struct {
	msg string
}

func (r *Rejection) Error() string { return r.msg }

var (
	ErrWrongChannel              = &Rejection{"This only works in the designated channel."}
	ErrMissingRole               = &Rejection{"You don't have the required role."}
	ErrVoiceChannelMisconfigured = &Rejection{"Voice channel not found. Check VOICE_CHANNEL_ID."}
	ErrNobodyPresent             = &Rejection{"Nobody is in the voice channel right now."}
	ErrDaysOutOfRange            = &Rejection{"Pick days between 1 and 60 so the report stays readable."}
	ErrNoData                    = &Rejection{"No data for the selected period."}
)

// IsRejection reports whether err is (or wraps) a user-facing rejection.
func IsRejection(err error) bool {
	var r *Rejection
	return errors.As(err, &r)
}

// ErrNoVoiceChannel is returned by an OccupancyProvider when the configured
// channel cannot be resolved or is not a voice channel. The recorder maps it
// to ErrVoiceChannelMisconfigured.
var ErrNoVoiceChannel = errors.New("voice channel missing or not a voice channel")
