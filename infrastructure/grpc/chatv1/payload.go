package chatv1

import (
	"chat-broker/api"
	"chat-broker/domain"
	"chat-broker/errors"
	"fmt"
	"math"
	"time"

	"github.com/samber/lo"
	"google.golang.org/protobuf/types/known/structpb"
)

// MessageToStruct renders a message with the field names of the JSON API.
func MessageToStruct(m domain.Message) (*structpb.Struct, error) {
	return structpb.NewStruct(messageFields(m))
}

func messageFields(m domain.Message) map[string]any {
	fields := map[string]any{
		"id":        m.ID.String(),
		"authorId":  m.AuthorID,
		"channel":   m.Channel.String(),
		"content":   m.Content,
		"createdAt": m.CreatedAt.Format(time.RFC3339Nano),
	}
	if m.Code != nil {
		fields["code"] = map[string]any{
			"language": m.Code.Language,
			"content":  m.Code.Content,
		}
	}
	return fields
}

func MessagesToStruct(messages []domain.Message) (*structpb.Struct, error) {
	list := lo.Map(messages, func(m domain.Message, _ int) any {
		return messageFields(m)
	})
	return structpb.NewStruct(map[string]any{"messages": list})
}

// StructToMessage is used by clients reading PostMessage, GetMessages and Connect payloads.
func StructToMessage(s *structpb.Struct) (api.Message, error) {
	fields := s.GetFields()
	createdAt, err := time.Parse(time.RFC3339Nano, fields["createdAt"].GetStringValue())
	if err != nil {
		return api.Message{}, fmt.Errorf("createdAt: %w", err)
	}
	res := api.Message{
		ID:        fields["id"].GetStringValue(),
		AuthorID:  fields["authorId"].GetStringValue(),
		Channel:   fields["channel"].GetStringValue(),
		Content:   fields["content"].GetStringValue(),
		CreatedAt: createdAt,
	}
	if code := fields["code"].GetStructValue(); code != nil {
		res.Code = &api.Code{
			Language: code.GetFields()["language"].GetStringValue(),
			Content:  code.GetFields()["content"].GetStringValue(),
		}
	}
	return res, nil
}

func StructToMessages(s *structpb.Struct) ([]api.Message, error) {
	values := s.GetFields()["messages"].GetListValue().GetValues()
	res := make([]api.Message, 0, len(values))
	for _, v := range values {
		m, err := StructToMessage(v.GetStructValue())
		if err != nil {
			return nil, err
		}
		res = append(res, m)
	}
	return res, nil
}

func PostMessageRequest(channel, content string, code *api.Code) (*structpb.Struct, error) {
	fields := map[string]any{"channel": channel, "content": content}
	if code != nil {
		fields["code"] = map[string]any{"language": code.Language, "content": code.Content}
	}
	return structpb.NewStruct(fields)
}

// GetMessagesRequest leaves before out when nil and limit out when zero.
func GetMessagesRequest(channel string, before *time.Time, limit int) (*structpb.Struct, error) {
	fields := map[string]any{"channel": channel}
	if before != nil {
		fields["before"] = before.UTC().Format(time.RFC3339Nano)
	}
	if limit != 0 {
		fields["limit"] = limit
	}
	return structpb.NewStruct(fields)
}

// ReadPostMessage extracts the submission from a PostMessage request.
func ReadPostMessage(s *structpb.Struct) (channel, content string, code *domain.CodeSnippet) {
	fields := s.GetFields()
	if c := fields["code"].GetStructValue(); c != nil {
		code = &domain.CodeSnippet{
			Language: c.GetFields()["language"].GetStringValue(),
			Content:  c.GetFields()["content"].GetStringValue(),
		}
	}
	return fields["channel"].GetStringValue(), fields["content"].GetStringValue(), code
}

// ReadGetMessages extracts the page request, before must be RFC 3339.
// ReadGetMessages applies the same rules as the HTTP query: limit is a
// non-negative integer and before an RFC 3339 timestamp.
func ReadGetMessages(s *structpb.Struct) (channel string, before *time.Time, limit int, err error) {
	fields := s.GetFields()
	channel = fields["channel"].GetStringValue()
	if value, ok := fields["limit"]; ok {
		raw := value.GetNumberValue()
		if raw < 0 || raw != math.Trunc(raw) || raw > math.MaxInt32 {
			return "", nil, 0, fmt.Errorf("%w: limit must be a positive integer", errors.ErrInvalidRequest)
		}
		limit = int(raw)
	}
	if raw := fields["before"].GetStringValue(); raw != "" {
		parsed, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return "", nil, 0, fmt.Errorf("%w: before must be an RFC 3339 timestamp", errors.ErrInvalidRequest)
		}
		before = &parsed
	}
	return channel, before, limit, nil
}
