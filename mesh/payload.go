package mesh

// Payload is the only value type carried across mesh calls. It is a closed
// union of a structured/text variant and a raw binary variant. The router
// treats payloads as opaque: it neither parses nor validates their contents.
type Payload interface {
	isPayload()
}

// JSONPayload carries a structured payload as its raw JSON text.
type JSONPayload struct {
	Text string `json:"text"`
}

func (JSONPayload) isPayload() {}

// BinaryPayload carries an opaque byte slice.
type BinaryPayload struct {
	Data []byte `json:"data"`
}

func (BinaryPayload) isPayload() {}

// JSON constructs a JSON payload from raw JSON text.
func JSON(text string) Payload { return JSONPayload{Text: text} }

// Binary constructs a binary payload.
func Binary(data []byte) Payload { return BinaryPayload{Data: data} }
