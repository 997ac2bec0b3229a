package ccasession

import (
	"bytes"
	"encoding/base64"

	"github.com/fiorix/go-diameter/diam"
	"github.com/fiorix/go-diameter/diam/dict"
)

// Blob is a stored protocol message: either absent or raw serialized bytes.
type Blob struct {
	Present bool
	Raw     []byte
}

func encodeBlob(raw []byte) string {
	return base64.StdEncoding.EncodeToString(raw)
}

func decodeBlob(s string) (Blob, error) {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return Blob{}, err
	}
	return Blob{Present: true, Raw: raw}, nil
}

// Message parses the blob as a Diameter message.
func (b Blob) Message(parser *dict.Parser) (*diam.Message, error) {
	return diam.ReadMessage(bytes.NewReader(b.Raw), parser)
}
