package main

// Worker goroutines talk to the control thread only through these messages.
// Payloads are copied in; no message carries a mutable shared reference.
// Every message is tagged with the originating session id so the control
// thread can drop anything from a superseded session.

type daemonMsg interface {
	sessionID() string
}

// audioLevelMsg reports the loudness of one captured chunk.
type audioLevelMsg struct {
	session string
	level   float64
}

func (m audioLevelMsg) sessionID() string { return m.session }

// interimMsg carries a partial transcript from a streaming session.
// Each one supersedes the previous; nothing is appended.
type interimMsg struct {
	session string
	text    string
}

func (m interimMsg) sessionID() string { return m.session }

// transcriptMsg is the terminal result of transcription. text and err are
// mutually exclusive; noSpeech marks the synthesized empty result when the
// provider was never called.
type transcriptMsg struct {
	session  string
	text     string
	err      error
	noSpeech bool
}

func (m transcriptMsg) sessionID() string { return m.session }

// refinedMsg delivers the refine outcome. Refinement never fails, so there
// is no error field; on any failure text is the raw transcript.
type refinedMsg struct {
	session string
	text    string
}

func (m refinedMsg) sessionID() string { return m.session }
