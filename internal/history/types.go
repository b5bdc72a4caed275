package history

// Greeting is the synthetic opening line every fresh history starts with.
// Most completion models behave better when the transcript is not empty.
const Greeting = "Hello"

// Message is a single transcript entry
type Message struct {
	Speaker string `json:"speaker"`
	Body    string `json:"body"`
}

// String renders the message in transcript form: "speaker:\nbody"
func (m Message) String() string {
	return m.Speaker + ":\n" + m.Body
}

// IsFrom reports whether the message was authored by the given speaker
func (m Message) IsFrom(speaker string) bool {
	return m.Speaker == speaker
}
