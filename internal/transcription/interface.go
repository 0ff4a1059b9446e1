package transcription

type Transcriber interface {
	SendAudio(data []byte) error
	Close() error
}
