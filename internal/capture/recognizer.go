package capture

import "context"

// RecognitionOptions configures one recognition session.
type RecognitionOptions struct {
	Locale string
	// Interim partial results are never surfaced; adapters always request
	// a single finalized alternative.
	Interim         bool
	MaxAlternatives int
}

// RecognitionListener receives the terminal events of a recognition
// session. Exactly one of them ends the session from the engine's side.
type RecognitionListener interface {
	// OnResult delivers the finalized transcript.
	OnResult(transcript string)
	// OnError reports an engine failure.
	OnError(err error)
	// OnEnd reports that the engine stopped. It may follow OnResult or
	// OnError; on its own it means a silent timeout or cancel.
	OnEnd()
}

// Recognition is a live recognition session.
type Recognition interface {
	Stop()
}

// Recognizer is the host speech-to-text capability. Start may deliver
// events from any goroutine, including synchronously.
type Recognizer interface {
	Start(ctx context.Context, opts RecognitionOptions, l RecognitionListener) (Recognition, error)
}
