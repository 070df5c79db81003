package channel

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/gowebpki/jcs"
	"golang.org/x/crypto/sha3"

	"github.com/c360/telelog/errors"
)

// Schema is the canonical description of a channel's message format.
type Schema struct {
	// Name identifies the schema to the viewer.
	Name string
	// Encoding is the schema encoding, e.g. "jsonschema" or "protobuf".
	Encoding string
	// Data is the opaque schema definition.
	Data []byte
}

// Equal reports structural equality of two schemas for de-duplication
// purposes. Identity is (Encoding, Data); the name does not participate.
func (s Schema) Equal(other Schema) bool {
	return s.Encoding == other.Encoding && bytes.Equal(s.Data, other.Data)
}

// normalizeSchema turns a user-supplied schema description into the canonical
// (messageEncoding, Schema) pair.
//
// An explicit Schema record requires an explicit message encoding and is used
// as-is. A structured object description (or nil) with message encoding ""
// or "json" is serialized canonically and named deterministically; anything
// that is not an object description is rejected.
func normalizeSchema(messageEncoding string, explicit *Schema, description map[string]any) (string, Schema, error) {
	if explicit != nil {
		if messageEncoding == "" {
			return "", Schema{}, errors.WrapInvalid(errors.ErrEncodingRequired,
				"Channel", "New", "normalize schema")
		}
		return messageEncoding, *explicit, nil
	}

	if messageEncoding != "" && messageEncoding != "json" {
		return "", Schema{}, errors.WrapInvalid(
			fmt.Errorf("%w: got %q", errors.ErrEncodingMismatch, messageEncoding),
			"Channel", "New", "normalize schema")
	}

	// A missing or empty description is the canonical empty JSON schema:
	// schemaless logging of arbitrary object or array payloads.
	if len(description) == 0 {
		return "json", Schema{
			Name:     generatedSchemaName(nil),
			Encoding: "jsonschema",
		}, nil
	}

	if typ, ok := description["type"].(string); !ok || typ != "object" {
		return "", Schema{}, errors.WrapInvalid(errors.ErrSchemaInvalid,
			"Channel", "New", "normalize schema")
	}

	raw, err := json.Marshal(description)
	if err != nil {
		return "", Schema{}, errors.WrapInvalid(err, "Channel", "New", "serialize schema")
	}
	// Canonicalize (RFC 8785) so the generated name is a pure function of the
	// description's content, independent of map iteration order.
	data, err := jcs.Transform(raw)
	if err != nil {
		return "", Schema{}, errors.WrapInvalid(err, "Channel", "New", "canonicalize schema")
	}

	// A title names the schema whenever the key is present, even when empty;
	// only an absent (or non-string) title gets the generated name.
	name, ok := description["title"].(string)
	if !ok {
		name = generatedSchemaName(data)
	}

	return "json", Schema{
		Name:     name,
		Encoding: "jsonschema",
		Data:     data,
	}, nil
}

// generatedSchemaName provides a consistent, readable, and reasonably unique
// name for a given schema so the viewer can identify it to the user. The name
// is a pure function of the schema content: a short SHAKE-128 content hash in
// URL-safe base64.
func generatedSchemaName(data []byte) string {
	shake := sha3.NewShake128()
	shake.Write(data)
	digest := make([]byte, 6)
	shake.Read(digest)
	return "schema-" + base64.URLEncoding.EncodeToString(digest)
}
