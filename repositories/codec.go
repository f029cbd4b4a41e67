package repositories

import (
	"chat-broker/domain"
	"fmt"
	"time"

	"github.com/google/uuid"
	"google.golang.org/protobuf/encoding/protowire"
)

// Stored records use the protobuf wire format so that the layout stays
// readable by any protobuf decoder and unknown fields are skipped.
//
//	message StoredMessage {
//	  string id = 1;
//	  string channel = 2;
//	  string author_id = 3;
//	  string content = 4;
//	  int64  created_at = 5; // unix nanoseconds
//	  string code_language = 6;
//	  string code_content = 7;
//	}
const (
	fieldID           protowire.Number = 1
	fieldChannel      protowire.Number = 2
	fieldAuthorID     protowire.Number = 3
	fieldContent      protowire.Number = 4
	fieldCreatedAt    protowire.Number = 5
	fieldCodeLanguage protowire.Number = 6
	fieldCodeContent  protowire.Number = 7
)

func encodeMessage(message domain.Message) []byte {
	var b []byte
	b = appendString(b, fieldID, message.ID.String())
	b = appendString(b, fieldChannel, string(message.Channel))
	b = appendString(b, fieldAuthorID, message.AuthorID)
	b = appendString(b, fieldContent, message.Content)
	b = protowire.AppendTag(b, fieldCreatedAt, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(message.CreatedAt.UnixNano()))
	if message.Code != nil {
		b = appendString(b, fieldCodeLanguage, message.Code.Language)
		b = appendString(b, fieldCodeContent, message.Code.Content)
	}
	return b
}

func appendString(b []byte, num protowire.Number, value string) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, value)
}

func decodeMessage(b []byte) (domain.Message, error) {
	var (
		message domain.Message
		code    domain.CodeSnippet
		hasCode bool
	)
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return domain.Message{}, protowire.ParseError(n)
		}
		b = b[n:]

		switch {
		case typ == protowire.BytesType && num != fieldCreatedAt:
			value, n := protowire.ConsumeString(b)
			if n < 0 {
				return domain.Message{}, protowire.ParseError(n)
			}
			b = b[n:]
			switch num {
			case fieldID:
				id, err := uuid.Parse(value)
				if err != nil {
					return domain.Message{}, fmt.Errorf("stored message id: %w", err)
				}
				message.ID = id
			case fieldChannel:
				message.Channel = domain.Channel(value)
			case fieldAuthorID:
				message.AuthorID = value
			case fieldContent:
				message.Content = value
			case fieldCodeLanguage:
				code.Language = value
				hasCode = true
			case fieldCodeContent:
				code.Content = value
				hasCode = true
			}
		case typ == protowire.VarintType && num == fieldCreatedAt:
			value, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return domain.Message{}, protowire.ParseError(n)
			}
			b = b[n:]
			message.CreatedAt = time.Unix(0, int64(value)).UTC()
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return domain.Message{}, protowire.ParseError(n)
			}
			b = b[n:]
		}
	}
	if hasCode {
		message.Code = &code
	}
	return message, nil
}

// DecodeRecord exposes the record codec to read-only tooling.
func DecodeRecord(value []byte) (domain.Message, error) {
	return decodeMessage(value)
}
