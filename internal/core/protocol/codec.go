package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/hay-kot/scribble/internal/core/validate"
)

// Sentinel errors returned by Decode.
var (
	ErrMalformed   = errors.New("invalid message format")
	ErrUnknownType = errors.New("unknown message type")
	ErrInvalid     = errors.New("invalid message")
)

var decoders = map[Type]func([]byte) (Message, error){
	TypeJoin:        decodeAs[Join],
	TypeJoined:      decodeAs[Joined],
	TypeUserJoined:  decodeAs[UserJoined],
	TypeUserLeft:    decodeAs[UserLeft],
	TypeDraw:        decodeAs[Draw],
	TypeCursor:      decodeAs[Cursor],
	TypeUndo:        decodeAs[Undo],
	TypeRedo:        decodeAs[Redo],
	TypeClear:       decodeAs[Clear],
	TypeSyncRequest: decodeAs[SyncRequest],
	TypeCanvasSync:  decodeAs[CanvasSync],
	TypePing:        decodeAs[Ping],
	TypePong:        decodeAs[Pong],
	TypeError:       decodeAs[Error],
}

// inbound lists the types a client may send to the server.
var inbound = []Type{
	TypeJoin,
	TypeDraw,
	TypeCursor,
	TypeUndo,
	TypeRedo,
	TypeClear,
	TypeSyncRequest,
	TypePing,
}

var structs = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	// Registration only fails on an empty tag or nil func.
	_ = v.RegisterValidation("ident", func(fl validator.FieldLevel) bool {
		return validate.Identifier(fl.Field().String()) == nil
	})

	return v
}

// Types returns every known message type.
func Types() []Type {
	types := make([]Type, 0, len(decoders))
	for t := range decoders {
		types = append(types, t)
	}
	return types
}

// InboundTypes returns the message types a client may send.
func InboundTypes() []Type {
	out := make([]Type, len(inbound))
	copy(out, inbound)
	return out
}

// Decode parses a single JSON message. The returned error wraps ErrMalformed,
// ErrUnknownType or ErrInvalid.
func Decode(data []byte) (Message, error) {
	var env struct {
		Type Type `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if env.Type == "" {
		return nil, fmt.Errorf("%w: missing type", ErrMalformed)
	}

	decode, ok := decoders[env.Type]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownType, env.Type)
	}
	return decode(data)
}

// Encode serializes msg with its type discriminator as the first field.
func Encode(msg Message) ([]byte, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", msg.Type(), err)
	}

	head := `{"type":"` + string(msg.Type()) + `"`
	if len(body) > 2 {
		head += ","
	}
	return append([]byte(head), body[1:]...), nil
}

func decodeAs[T Message](data []byte) (Message, error) {
	var msg T
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := structs.Struct(msg); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalid, describe(err))
	}
	return msg, nil
}

func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}

	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s failed %s=%s", fe.Field(), fe.Tag(), fe.Param()))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
	}
	return strings.Join(parts, "; ")
}
